package main

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/hazard-predict/internal/config"
	"github.com/spf13/cobra"
)

func (e *env) newHazardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hazards",
		Short: "List hazard types and their input shapes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return &exitError{code: exitRejected, msg: fmt.Sprintf("config: %v", err)}
			}
			table, err := loadTable(cfg)
			if err != nil {
				return &exitError{code: exitRejected, msg: err.Error()}
			}

			out := cmd.OutOrStdout()
			for i, s := range table.Specs() {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "%s\n", s.Label)
				fmt.Fprintf(out, "  type:     %s\n", s.Type)
				fmt.Fprintf(out, "  endpoint: POST %s%s\n", cfg.PredictBaseURL, s.Path)
				fmt.Fprintf(out, "  shape:    %d columns, 1 or %d rows\n", s.Columns, s.WindowRows)
				if s.Example != "" {
					fmt.Fprintf(out, "  example:  %s\n", strings.ReplaceAll(s.Example, "\n", "\n            "))
				}
			}
			return nil
		},
	}
}
