package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/equidex/internal/domain/agent"
)

func newAgentsCmd() *cobra.Command {
	var set string
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List the analysis agents of a set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := agent.ParseSet(set)
			if err != nil {
				return err
			}
			agents, err := agent.DefaultRegistry().Select(s)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			name := color.New(color.FgCyan, color.Bold).SprintFunc()
			for i, a := range agents {
				if _, err := fmt.Fprintf(out, "%2d. %s\n    %s\n", i+1, name(a.Name()), a.Query()); err != nil {
					return err
				}
			}
			_, err = fmt.Fprintf(out, "%d agents in set %q\n", len(agents), s)
			return err
		},
	}
	cmd.Flags().StringVarP(&set, "set", "s", string(agent.SetPrimary), "agent set: primary, extended or all")
	return cmd
}
