/*
main.go - Audit server entry point

PURPOSE:
  Starts the pay-statement audit service: opens the store, seeds rate
  tables, starts the cache refresher and serves the HTTP API.

STARTUP SEQUENCE:
  1. Load .env (if present) and read the environment
  2. Apply command-line flag overrides
  3. Open the SQLite store
  4. Seed the sample bundle and any SEED_BUNDLES files
  5. Start the bundle refresher (loads the cache immediately)
  6. Serve HTTP until SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides PORT)
  -db      SQLite database path (overrides DB_PATH)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  PORT, DB_PATH, CORS_ORIGINS, REFRESH_INTERVAL, SEED_BUNDLES, SEED_SAMPLE
  See config/config.go.

EXAMPLES:
  ./server -db=":memory:"
  SEED_BUNDLES=tables/2026.yaml ./server -port=3000

SEE ALSO:
  - api/server.go: Router configuration
  - api/refresher.go: Rate-table cache refresh
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/slimmugnai-oss/garrison-ledger-sub009/api"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/config"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/metrics"
	"github.com/slimmugnai-oss/garrison-ledger-sub009/store/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[server] Warning: failed to read .env: %v", err)
	}
	cfg := config.FromEnv()

	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	flag.Parse()

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			log.Fatalf("[server] Failed to create database directory: %v", err)
		}
	}

	st, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("[server] Failed to initialize database: %v", err)
	}
	defer st.Close()

	handler := api.NewHandler(st, metrics.New())

	ctx := context.Background()
	if cfg.SeedSample {
		if err := handler.SeedSample(ctx); err != nil {
			log.Fatalf("[server] Failed to seed sample rate table: %v", err)
		}
	}
	for _, path := range cfg.SeedBundles {
		if err := handler.SeedFile(ctx, path); err != nil {
			log.Fatalf("[server] Failed to seed rate table: %v", err)
		}
	}

	refresher := api.NewBundleRefresher(handler, cfg.RefreshInterval)
	if cfg.RefreshInterval <= 0 {
		// No background reloads; populate the cache once.
		if _, err := handler.LoadBundles(ctx); err != nil {
			log.Printf("[server] Warning: failed to load rate tables: %v", err)
		}
	}
	refresher.Start()
	defer refresher.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("[server] Listening on http://localhost%s", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[server] Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] Forced shutdown: %v", err)
	}
	log.Println("[server] Stopped")
}
