package command

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uniconv/uniconv/pkg/buildinfo"
)

var interruptChannel = make(chan os.Signal, 1)

// interruptHandle exits immediately with status 128+signal on Ctrl+C or
// SIGTERM. Deferred cleanup in a running command, such as removal of the run
// workspace, does not run.
var interruptHandle = func() {
	sig := <-interruptChannel
	if sig != nil {
		os.Exit(128 + int(sig.(syscall.Signal)))
	}
}

func init() {
	signal.Notify(interruptChannel, syscall.SIGINT, syscall.SIGTERM)
}

// NewRootCmd builds the uniconv command tree.
func NewRootCmd() *cobra.Command {
	go interruptHandle()

	root := newRunCmd()
	root.AddCommand(newPluginCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "uniconv %s (%s, built %s)\n", buildinfo.Version, buildinfo.SHA, buildinfo.Date)
			return nil
		},
	}
}
