// Package daemon runs the pipeline on the configured cron schedule and
// serves the status API until the context is canceled.
package daemon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"afisz/internal/config"
	appLog "afisz/internal/log"
	"afisz/internal/pipeline"
	"afisz/internal/web"
)

// Runner executes one pipeline pass; pipeline.Run wrapped with the deps the
// caller assembled.
type Runner func(ctx context.Context) (*pipeline.Report, error)

// Run blocks until ctx is canceled. One run fires immediately at startup so
// the API has data; subsequent runs follow cfg.RefreshCron.
func Run(ctx context.Context, cfg *config.Config, runner Runner) error {
	server := web.NewServer(cfg)

	runOnce := func() {
		rep, err := runner(ctx)
		if err != nil {
			appLog.Error("scheduled run failed", err)
			return
		}
		server.SetReport(rep)
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.RefreshCron, runOnce); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	runOnce()
	c.Start()
	appLog.Info("scheduler started", "refresh", cfg.RefreshCron)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	cronCtx := c.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
