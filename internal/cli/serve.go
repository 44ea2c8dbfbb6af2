package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apphttp "keuangan/internal/http"
	"keuangan/internal/log"
	"keuangan/internal/services"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		port  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web ledger",
		Long: `Serve the ledger page, its htmx partials and the JSON API. With --watch the
process also consumes ledger events and mirrors the ledger to Google Sheets.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd, true)
			if err != nil {
				return err
			}
			defer s.Close()
			if port != "" {
				s.cfg.Port = port
			}
			return runServe(cmd.Context(), s, watch)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Override the configured HTTP port")
	cmd.Flags().BoolVar(&watch, "watch", false, "Also mirror ledger events to Google Sheets")
	return cmd
}

func runServe(parent context.Context, s *session, watch bool) error {
	if watch {
		if err := watchable(s); err != nil {
			return err
		}
	}

	ctx, cancel := ShutdownContext(parent, s.logger)
	defer cancel()

	srv := apphttp.NewServer(apphttp.Config{
		Addr:            s.cfg.Addr(),
		RateLimitPerMin: s.cfg.RateLimitPerMin,
		RequestTimeout:  s.cfg.RequestTimeout,
		MaxRestoreBytes: int64(s.cfg.MaxRestoreSizeMiB) << 20,
		SheetsEnabled:   s.cfg.SheetsEnabled(),
	}, s.ledger, s.metrics, s.logger)

	// Configure server timeouts and limits
	srv.ReadTimeout = 30 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("Starting keuangan server", "addr", srv.Addr, "backend", s.cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown error", log.FieldError, err)
			return err
		}
		s.logger.Info("Server stopped gracefully")
		return nil
	})
	if watch {
		g.Go(func() error {
			return runMirror(gctx, s, services.DefaultMirrorConfig())
		})
	}
	return g.Wait()
}

func newWatchCommand(opts *rootOptions) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Mirror ledger events to Google Sheets",
		Long: `Consume ledger events from the AMQP queue and re-export the persisted ledger
to the configured spreadsheet. Bursts of events are debounced into one export.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := watchable(s); err != nil {
				return err
			}
			ctx, cancel := ShutdownContext(cmd.Context(), s.logger)
			defer cancel()
			// this process takes no writes, so each pass reads the slot
			return runMirror(ctx, s, services.MirrorConfig{Debounce: debounce, Reload: true})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", services.DefaultMirrorConfig().Debounce, "Wait this long after an event before exporting")
	return cmd
}

// watchable reports why the session cannot mirror, if it cannot.
func watchable(s *session) error {
	switch {
	case !s.cfg.AMQPEnabled():
		return errors.New("watch needs amqp_url to be configured")
	case !s.cfg.SheetsEnabled():
		return errors.New("watch needs google_spreadsheet_id to be configured")
	case s.consumer == nil:
		return errors.New("amqp client unavailable")
	}
	return nil
}

// runMirror feeds queue events into a sheets mirror until ctx ends.
func runMirror(ctx context.Context, s *session, cfg services.MirrorConfig) error {
	mirror := services.NewMirror(s.ledger, cfg)
	if err := mirror.Start(ctx); err != nil {
		return err
	}
	// first pass so the sheet reflects the slot even without events
	mirror.MarkDirty()

	err := s.consumer.Consume(ctx, mirror.HandleEvent)

	stopCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if serr := mirror.Stop(stopCtx); serr != nil {
		s.logger.Warn("Mirror stop failed", log.FieldError, serr)
	}
	s.logger.Info("Mirror finished", "exports", mirror.Synced())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
