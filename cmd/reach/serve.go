package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"impractical.co/reach"
	"impractical.co/reach/internal/history"
	"impractical.co/reach/internal/photos"
	"impractical.co/reach/internal/server"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

func newServeCommand(a *app) *cobra.Command {
	var (
		port     int
		revision string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the prediction form",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("revision") {
				a.cfg.UI.Revision = revision
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides server.port)")
	cmd.Flags().StringVar(&revision, "revision", "", "Form revision to serve: classic, themed or animated")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	ctx = reach.LoggingContext(ctx, logger)

	revision, err := reach.ParseRevision(cfg.UI.Revision)
	if err != nil {
		return err
	}
	theme, _ := reach.ParseTheme(cfg.UI.DefaultTheme)

	templates := reach.BuiltinTemplates()
	if cfg.UI.TemplatesDir != "" {
		templates = os.DirFS(cfg.UI.TemplatesDir)
		if _, err := fs.Stat(templates, "layout.html.tmpl"); err != nil {
			return fmt.Errorf("templates dir %s: %w", cfg.UI.TemplatesDir, err)
		}
	}
	site := reach.NewFormSite(templates, cfg.UI.Title, revision, theme)

	predictor := a.predictionClient()
	if cfg.Prediction.LoadModelOnStart {
		msg, err := predictor.LoadModel(ctx)
		if err != nil {
			return fmt.Errorf("load model: %w", err)
		}
		logger.InfoContext(ctx, "model loaded", "message", msg)
	}

	opts := server.Options{
		Site:        site,
		Predictor:   predictor,
		RecentLimit: cfg.History.Recent,
		Limiter:     server.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
		Logger:      logger,
	}
	if revision.Themed() && cfg.Photos.Enabled() {
		client := photos.NewClient(cfg.Photos.APIURL, cfg.Photos.AccessKey, cfg.Photos.Query, cfg.Photos.Timeout)
		opts.Background = photos.NewRotator(client, cfg.Photos.Refresh, reach.Logger)
	}
	if cfg.History.Path != "" {
		store, err := history.Open(ctx, cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.ErrorContext(ctx, "error closing history", "error", err)
			}
		}()
		opts.History = store
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           server.New(opts).Routes(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.InfoContext(ctx, "listening", "addr", httpServer.Addr, "revision", revision.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		logger.InfoContext(ctx, "shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		opts.Limiter.Run(ctx, sweepInterval)
		return nil
	})
	if cfg.UI.Reload {
		group.Go(func() error {
			return server.WatchTemplates(ctx, cfg.UI.TemplatesDir, site, logger)
		})
	}
	return group.Wait()
}
