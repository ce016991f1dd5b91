package command

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aunum/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/uniconv/uniconv/pkg/executor"
	"github.com/uniconv/uniconv/pkg/pipeline"
)

// newRunCmd is the root command's own handler:
// `uniconv [options] <source> | <pipeline>`, with the "|" as its own argument.
// It owns its flag parsing because the pipeline expression carries its own
// core options (-o/--output, -f/--force, --json, ...) interleaved with the
// source argument, which cobra's flag parser cannot split from its own args.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:                   "uniconv [options] <source> | <pipeline-expression>",
		Short:                 "Convert a file through a pipeline of plugins",
		DisableFlagParsing:    true,
		Args:                  cobra.ArbitraryArgs,
		DisableFlagsInUseLine: true,
		RunE:                  runPipeline,
	}
	return cmd
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		return cmd.Help()
	}

	p, err := pipeline.ParseArgs(args)
	if err != nil {
		return errors.Wrap(err, "parsing pipeline expression")
	}

	switch {
	case p.Core.Verbose:
		log.SetLevel(log.DebugLevel)
	case p.Core.Quiet:
		log.SetLevel(log.ErrorLevel)
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	ex := executor.New(a.plugins, a.resolver, a.workspaceBaseDir())
	result := ex.Execute(context.Background(), p)

	if p.Core.JSONOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(result))
	}

	if !result.Success {
		os.Exit(1)
	}
	return nil
}
