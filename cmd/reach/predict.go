package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"impractical.co/reach"
	"impractical.co/reach/internal/prediction"
	"impractical.co/reach/internal/tui"
)

// errPredictFailed is returned once the failure has been logged, so the
// service's own message isn't printed a second time.
var errPredictFailed = errors.New("prediction failed")

func newPredictCommand(a *app) *cobra.Command {
	var metrics prediction.Metrics
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the impressions for one set of metrics",
		Example: `  reach predict --likes 162 --saves 98 --comments 9 --shares 5 \
    --profile-visits 65 --follows 12`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range []string{"likes", "saves", "comments", "shares", "profile-visits", "follows"} {
				if !cmd.Flags().Changed(name) {
					return fmt.Errorf("%w: --%s is required", prediction.ErrInvalidMetrics, name)
				}
			}
			if err := metrics.Validate(); err != nil {
				return err
			}
			return a.predict(cmd.Context(), cmd, metrics)
		},
	}
	flags := cmd.Flags()
	flags.Float64Var(&metrics.Likes, "likes", 0, "Number of likes")
	flags.Float64Var(&metrics.Saves, "saves", 0, "Number of saves")
	flags.Float64Var(&metrics.Comments, "comments", 0, "Number of comments")
	flags.Float64Var(&metrics.Shares, "shares", 0, "Number of shares")
	flags.Float64Var(&metrics.ProfileVisits, "profile-visits", 0, "Number of profile visits")
	flags.Float64Var(&metrics.Follows, "follows", 0, "Number of follows")
	return cmd
}

func (a *app) predict(ctx context.Context, cmd *cobra.Command, metrics prediction.Metrics) error {
	revision, err := reach.ParseRevision(a.cfg.UI.Revision)
	if err != nil {
		return err
	}
	resp, err := a.predictionClient().Predict(ctx, metrics)
	if err != nil {
		a.logger.ErrorContext(ctx, "prediction failed", "error", err)
		fmt.Fprintln(cmd.OutOrStdout(), tui.RenderFailure(revision.Animated()))
		return errPredictFailed
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.RenderPrediction(metrics, resp.Impression, revision.Animated()))
	return nil
}
