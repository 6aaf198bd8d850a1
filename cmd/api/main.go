// Package main wires the Travel Logbook server together: config, the
// chosen persistence backend, the record engine with its sync session,
// and the HTTP surface.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"github.com/pressly/goose/v3"

	"github.com/ldenis/travel-logbook/internal/config"
	"github.com/ldenis/travel-logbook/internal/engine"
	"github.com/ldenis/travel-logbook/internal/handler"
	"github.com/ldenis/travel-logbook/internal/media"
	"github.com/ldenis/travel-logbook/internal/middleware"
	"github.com/ldenis/travel-logbook/internal/store"
	"github.com/ldenis/travel-logbook/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// The backend is decided once, here. Everything downstream sees only
	// the RecordStore and media.Store interfaces.
	var (
		recordStore store.RecordStore
		mediaStore  media.Store
	)
	if cfg.Synced() {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to create database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(context.Background()); err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}

		if err := runMigrations(cfg.DatabaseURL); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}

		recordStore = store.NewPGStore(pool, logger)
		mediaStore = media.NewPGStore(pool, cfg.BaseURL)
		slog.Info("using synced backend", "owner", cfg.OwnerID)
	} else {
		local, err := store.OpenSQLite(cfg.LocalDBPath)
		if err != nil {
			slog.Error("failed to open local database", "error", err)
			os.Exit(1)
		}
		defer local.Close()

		recordStore = local
		mediaStore = media.NewLocalStore(cfg.BaseURL)
		slog.Info("using local backend", "path", cfg.LocalDBPath)
	}

	eng := engine.New(recordStore, mediaStore, nil, cfg.OwnerID, logger)

	session, err := engine.OpenSession(context.Background(), eng)
	if err != nil {
		slog.Error("failed to open sync session", "error", err)
		os.Exit(1)
	}

	// RequestID must run before the slog middleware so every log line
	// carries the request ID.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxUploadBytes))

	srvHandler := handler.NewServer(eng, mediaStore, cfg.OwnerID)
	r.Mount("/", srvHandler.Routes())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// On SIGINT or SIGTERM, in-flight requests get 15 seconds to finish.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	// Stop snapshot delivery before the stores close. Close also clears
	// the in-memory collections, in that order.
	session.Close()
	slog.Info("server stopped")
}

// runMigrations applies the embedded goose migrations to the Postgres
// database. goose needs database/sql, not a pgx pool.
func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return err
	}
	_, err = provider.Up(context.Background())
	return err
}
