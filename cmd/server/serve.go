package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/CineMatch/internal/adapters/http"
	"github.com/dkeye/CineMatch/internal/adapters/signal"
	"github.com/dkeye/CineMatch/internal/app"
	"github.com/dkeye/CineMatch/internal/app/orch"
	"github.com/dkeye/CineMatch/internal/app/sessions"
	"github.com/dkeye/CineMatch/internal/auth"
	"github.com/dkeye/CineMatch/internal/config"
	"github.com/dkeye/CineMatch/internal/core"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and real-time session server.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			setupLogger(cfg.Mode, cfg.LogLevel)
			return serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.IntP("port", "p", 8080, "port to listen on (env: CINEMATCH_PORT)")
	fs.String("mode", "release", "gin mode: debug or release (env: CINEMATCH_MODE)")
	fs.String("static-path", "./web", "directory with the web client (env: CINEMATCH_STATIC_PATH)")
	fs.String("public-url", "", "public base URL used in join links (env: CINEMATCH_PUBLIC_URL)")
	fs.String("storage-driver", config.DriverMemory, "memory, sqlite, mongo or dynamodb (env: CINEMATCH_STORAGE_DRIVER)")
	fs.String("sqlite-path", "cinematch.db", "sqlite database file (env: CINEMATCH_STORAGE_SQLITE_PATH)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	tokens, err := auth.NewTokenService(auth.Config{
		Secret: cfg.Auth.Secret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
	})
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("close storage")
		}
	}()

	svc := sessions.NewService(store, sessions.Options{CodeAttempts: cfg.Session.CodeAttempts})
	o := orch.New(app.NewRegistry(), core.NewGroupManager(), app.SimplePolicy{}, svc)
	gate := auth.NewGate(tokens)
	ctl := signal.NewSignalWSController(o, gate,
		signal.NewLikeRateLimiter(cfg.Session.LikeRateLimit, cfg.Session.LikeRateInterval),
		signal.Options{ReadLimit: cfg.ReadLimit, PingPeriod: cfg.PingPeriod, AllowedOrigins: cfg.AllowedOrigins},
	)

	r := router.SetupRouter(ctx, cfg, router.Deps{Orch: o, Gate: gate, Signal: ctl})
	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("storage", cfg.Storage.Driver).Msg("CineMatch server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("Server exited gracefully")
	return nil
}
