package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/plugmart/plugmart/internal/auth"
	"github.com/plugmart/plugmart/internal/config"
	"github.com/plugmart/plugmart/internal/middleware"
	"github.com/plugmart/plugmart/internal/server"
	"github.com/plugmart/plugmart/internal/store"
)

func main() {
	// Parse command-line flags (can override env vars)
	port := flag.Int("port", config.DefaultPort, "Port to listen on")
	dbPath := flag.String("db", config.DefaultDBPath, "Path to SQLite database")
	flag.Parse()

	// A local .env is optional; real deployments configure the environment directly.
	_ = godotenv.Load()

	// Load configuration (env vars + flag overrides)
	cfg, err := config.LoadWithFlags(*port, *dbPath)
	if err != nil {
		log.Fatalf("Configuration error:\n%v", err)
	}

	hasher := auth.NewHasher(cfg.BcryptCost)
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)

	adminHash, err := hasher.Hash(cfg.AdminPassword)
	if err != nil {
		log.Fatalf("Failed to hash admin password: %v", err)
	}

	// Select the backend: probe the durable store, fall back to memory.
	st, err := store.Open(context.Background(), store.Options{
		DBType:            cfg.DBType,
		DSN:               cfg.DSN(),
		MaxConns:          cfg.DBMaxConns,
		ProbeTimeout:      cfg.DBProbeTimeout,
		QueryTimeout:      cfg.DBQueryTimeout,
		AdminUsername:     cfg.AdminUsername,
		AdminPasswordHash: adminHash,
	})
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	var limiter *middleware.RateLimiter
	if cfg.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	app := &server.App{
		Store:   st,
		Tokens:  tokens,
		Hasher:  hasher,
		Limiter: limiter,
		Config:  cfg,
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("server starting", "addr", addr, "database", st.Kind())
	if err := http.ListenAndServe(addr, app.Handler()); err != nil {
		log.Fatal(err)
	}
}
