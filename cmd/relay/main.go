package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"securechat/internal/domain"
	"securechat/internal/logging"
	"securechat/internal/relay/server"
	"securechat/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: could not load .env: %v", err)
	}

	root := &cobra.Command{Use: "relay", Short: "securechat relay", SilenceUsage: true}
	root.AddCommand(serveCmd(), tokenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig()
			if err != nil {
				return err
			}
			zl, err := logging.New(cfg.LogLevel, false)
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()
			return serve(cmd.Context(), cfg, zl)
		},
	}
}

func serve(ctx context.Context, cfg server.Config, lg logging.Logger) error {
	var backend domain.Backend
	switch cfg.Store {
	case server.StorePostgres:
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		db, err := store.OpenPostgres(initCtx, cfg.DatabaseURL, nil)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		lg.Info(ctx, "connected to postgres, schema migrated")
		backend = db
	default:
		backend = store.NewMemory(nil)
		lg.Warn(ctx, "using in-memory store, state is lost on exit")
	}
	if cfg.JWTSecret == "" {
		lg.Warn(ctx, "RELAY_JWT_SECRET unset, requests are not authenticated")
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.New(backend, cfg, nil, lg).Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info(ctx, "relay listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	lg.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user>",
		Short: "Issue a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig()
			if err != nil {
				return err
			}
			tok, err := server.IssueToken([]byte(cfg.JWTSecret), domain.UserID(args[0]), time.Now(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
