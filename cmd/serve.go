package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/driveradar/driveradar/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin analytics backend",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		pg, err := server.NewPostgres(ctx, cfg.Server.DatabaseURL, &server.PoolConfig{
			MaxConns: cfg.Server.MaxConns,
			MinConns: cfg.Server.MinConns,
		})
		if err != nil {
			return err
		}
		defer pg.Close()

		if err := pg.Migrate(ctx); err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}

		srv := server.New(pg, server.Config{
			Addr:           addr,
			AdminPassword:  cfg.Server.AdminPassword,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			LoginPerMinute: cfg.Server.LoginPerMinute,
		})

		httpSrv := &http.Server{
			Addr:    addr,
			Handler: srv.Router(),
		}

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.String("addr", addr))
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		// Graceful shutdown on signal
		g.Go(func() error {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}
