package main

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/couchcryptid/hazard-predict/internal/tui"
	"github.com/spf13/cobra"
)

func (e *env) newFormCmd() *cobra.Command {
	var hazard string

	cmd := &cobra.Command{
		Use:   "form",
		Short: "Open the interactive prediction form",
		Long: `Opens a terminal form with a hazard selector and an input area.
tab switches hazard, ctrl+s submits and esc quits. Logs go to LOG_FILE
when set and are discarded otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.newApp(io.Discard, hazard)
			if err != nil {
				return err
			}
			defer a.close()

			a.startOpsServer()
			return tui.Run(cmd.Context(), a.ctrl,
				tea.WithInput(e.stdin),
				tea.WithOutput(e.stdout),
				tea.WithAltScreen(),
			)
		},
	}

	cmd.Flags().StringVarP(&hazard, "hazard", "H", "", "initially selected hazard type")
	return cmd
}
