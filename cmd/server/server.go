package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/301redirect/redirector/cmd"
	"github.com/301redirect/redirector/internal/api"
	"github.com/301redirect/redirector/internal/monitor"
	"github.com/301redirect/redirector/internal/repository"
	"github.com/301redirect/redirector/internal/services"
	"github.com/301redirect/redirector/internal/workers"
)

// ServeCmd starts the redirect server and its background workers.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the redirect server",
	Long: `Connects to the record store, starts the hit workers and the optional
target monitor, then answers every request on the configured address with a
301 redirect or an empty not-found response.`,
	RunE: func(c *cobra.Command, args []string) error {
		cfg, log := cmd.Cfg, cmd.Log

		// A store that cannot be reached leaves the server running: every
		// lookup then ends as NotFound until the process is restarted.
		db, err := repository.OpenDatabase(cfg.Database.DSN, log)
		if err != nil {
			log.Error("failed to connect to the record store, serving without it", zap.Error(err))
			db = nil
		} else if err := repository.Migrate(db); err != nil {
			log.Error("failed to migrate the record store", zap.Error(err))
		}
		defer func() {
			if err := repository.Close(db); err != nil {
				log.Warn("failed to close the record store", zap.Error(err))
			}
		}()

		repo := repository.NewRedirectRepository(db)
		log.Info("record store ready", zap.Bool("available", repo.Available()))

		hits := workers.StartHitWorkers(cfg.Hits.WorkerCount, cfg.Hits.BufferSize, cfg.Hits.Timeout, repo, log)

		cnames, closeResolver, err := cmd.NewResolver()
		if err != nil {
			hits.Stop()
			return err
		}
		defer closeResolver()

		svc := services.NewResolutionService(cnames, repo, hits, cmd.LookupOptions(), log)
		log.Info("resolution service ready",
			zap.String("apex_domain", cfg.Redirect.ApexDomain),
			zap.String("mode", cfg.Resolver.Mode),
			zap.String("endpoint", cfg.Resolver.Endpoint),
			zap.Bool("cache", cfg.Resolver.Cache.Enabled))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if cfg.Monitor.Interval > 0 {
			go monitor.NewTargetMonitor(repo, cfg.Monitor.Interval, log).Start(ctx)
		}

		srv := &http.Server{
			Addr:    cfg.Addr(),
			Handler: api.NewRouter(svc, cfg.NotFoundStatus(), log),
		}

		serveErr := make(chan error, 1)
		go func() {
			log.Info("starting server", zap.String("addr", srv.Addr), zap.Int("not_found_status", cfg.NotFoundStatus()))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
		case err, ok := <-serveErr:
			if ok {
				log.Error("server failed", zap.Error(err))
				hits.Stop()
				return err
			}
		}

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown did not complete", zap.Error(err))
		}

		cancel()
		hits.Stop()
		log.Info("server stopped")
		return nil
	},
}

func init() {
	cmd.RootCmd.AddCommand(ServeCmd)
}
