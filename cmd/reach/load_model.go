package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoadModelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load-model",
		Short: "Ask the prediction service to load its model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			msg, err := a.predictionClient().LoadModel(cmd.Context())
			if err != nil {
				return err
			}
			if msg == "" {
				msg = "model loaded"
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}
