package command

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/uniconv/uniconv/pkg/etl"
)

func newPluginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugin",
		Short: "Inspect discovered plugins",
	}
	cmd.AddCommand(newPluginListCmd(), newPluginInfoCmd())
	return cmd
}

func newPluginListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every discovered plugin",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			infos := a.registry.List()
			sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tVERSION\tTARGETS")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.ID, info.Version, joinTargets(info.Targets))
			}
			return w.Flush()
		},
	}
}

func newPluginInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <target>",
		Short: "Show every plugin that supports a given conversion target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			target := args[0]
			var matched []etl.Info
			for _, info := range a.registry.List() {
				if containsFold(info.Targets, target) {
					matched = append(matched, info)
				}
			}
			sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

			if len(matched) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no plugin supports target %q\n", target)
				return nil
			}

			for _, info := range matched {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", info.ID, info.ETL)
				fmt.Fprintf(cmd.OutOrStdout(), "  version: %s\n", info.Version)
				if info.Description != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", info.Description)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  input formats: %s\n", joinTargets(info.InputFormats))
			}
			return nil
		},
	}
}

func joinTargets(ts []string) string {
	if len(ts) == 0 {
		return "-"
	}
	out := ts[0]
	for _, t := range ts[1:] {
		out += ", " + t
	}
	return out
}

func containsFold(list []string, want string) bool {
	for _, v := range list {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
