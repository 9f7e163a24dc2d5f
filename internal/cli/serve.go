package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"clinic-booking-server/internal/lifecycle"
	"clinic-booking-server/internal/middleware"
	"clinic-booking-server/internal/routes"
)

func serveCmd() *cobra.Command {
	var sweepInterval time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("sweep-interval") {
				sweepInterval = a.cfg.Sweep.Interval
			}
			return runServer(a, sweepInterval)
		},
	}
	cmd.Flags().DurationVar(&sweepInterval, "sweep-interval", 0, "run the stale-appointment sweep on this interval (0 disables)")
	return cmd
}

func newRouter(a *app) *gin.Engine {
	if a.cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(a.log), middleware.Recovery(a.log))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{a.cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Deps{
		Store:     a.store,
		Lifecycle: a.lifecycle,
		Clinical:  a.clinical,
		Gateway:   a.gateway,
		Config:    a.cfg,
		Log:       a.log,
	})
	return router
}

func runServer(a *app, sweepInterval time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if sweepInterval > 0 {
		go runSweeper(ctx, a, sweepInterval)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", a.cfg.Port),
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.dispatcher.Wait()
	a.log.Info().Msg("server stopped")
	return nil
}

func runSweeper(ctx context.Context, a *app, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	a.log.Info().Dur("interval", interval).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logSweep(a, runSweep(ctx, a.lifecycle))
		}
	}
}

type sweepOutcome struct {
	res lifecycle.SweepResult
	err error
}

func runSweep(ctx context.Context, mgr *lifecycle.Manager) sweepOutcome {
	res, err := mgr.ExpireStale(ctx)
	return sweepOutcome{res: res, err: err}
}

func logSweep(a *app, out sweepOutcome) {
	if out.err != nil {
		a.log.Error().Err(out.err).Msg("sweep failed")
		return
	}
	evt := a.log.Info()
	if len(out.res.Failures) > 0 {
		evt = a.log.Warn().Int("failed", len(out.res.Failures))
	}
	evt.Int("scanned", out.res.Scanned).Int("missed", out.res.Missed).Int("expired", out.res.Expired).Msg("sweep finished")
}
