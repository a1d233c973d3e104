// Command reach serves the impression prediction form and drives the
// prediction service from the terminal.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"impractical.co/reach/internal/config"
	"impractical.co/reach/internal/prediction"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// app is what every subcommand needs, filled in before any of them runs.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func (a *app) predictionClient() *prediction.Client {
	return prediction.NewClient(a.cfg.Prediction.Endpoint, a.cfg.Prediction.Timeout)
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "reach",
		Short:         "Predict the impressions of a social media post",
		Long:          `reach serves a form that sends a post's engagement metrics to a prediction service and shows the predicted impressions.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("endpoint") {
				cfg.Prediction.Endpoint, _ = cmd.Flags().GetString("endpoint")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger, err := cfg.Log.NewLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a.cfg, a.logger = cfg, logger
			return nil
		},
	}

	defaultConfig := os.Getenv("REACH_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "reach.yaml"
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfig, "Path to the YAML config file")
	cmd.PersistentFlags().String("endpoint", "", "Prediction service URL (overrides prediction.endpoint)")

	cmd.AddCommand(newServeCommand(a))
	cmd.AddCommand(newPredictCommand(a))
	cmd.AddCommand(newFormCommand(a))
	cmd.AddCommand(newLoadModelCommand(a))
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
