package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/tokenguard/internal/httpapi"
	"github.com/MrEthical07/tokenguard/sweeper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expired-session sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			sw := sweeper.New(a.sessions, sweeper.WithLogger(log), sweeper.WithGrace(cfg.SweepGrace()))
			if err := sw.Start(ctx, cfg.Sweeper.Schedule); err != nil {
				return err
			}
			defer sw.Stop()

			server := &http.Server{
				Addr:         cfg.HTTP.Addr,
				Handler:      httpapi.NewRouter(a.engine, log),
				ReadTimeout:  cfg.HTTP.ReadTimeout,
				WriteTimeout: cfg.HTTP.WriteTimeout,
				IdleTimeout:  cfg.HTTP.IdleTimeout,
			}

			servers := []*http.Server{server}
			if cfg.HTTP.MetricsAddr != "" {
				servers = append(servers, &http.Server{
					Addr:              cfg.HTTP.MetricsAddr,
					Handler:           httpapi.NewMetricsRouter(a.engine),
					ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
				})
			}

			errCh := make(chan error, len(servers))
			for _, srv := range servers {
				go func(srv *http.Server) {
					log.Info("listener started", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- err
					}
				}(srv)
			}

			var serveErr error
			select {
			case serveErr = <-errCh:
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			for _, srv := range servers {
				if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
					serveErr = err
				}
			}
			return serveErr
		},
	}
}
