package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"impractical.co/reach"
	"impractical.co/reach/internal/tui"
)

func newFormCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "form",
		Short: "Fill in the metrics form in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			revision, err := reach.ParseRevision(a.cfg.UI.Revision)
			if err != nil {
				return err
			}
			ctx := reach.LoggingContext(cmd.Context(), a.logger)
			model := tui.New(ctx, a.predictionClient(), a.cfg.Prediction.Timeout, revision.Animated())
			_, err = tea.NewProgram(model, tea.WithContext(ctx)).Run()
			return err
		},
	}
}
