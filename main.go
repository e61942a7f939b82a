package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/danielhkuo/runecheck/auth"
	"github.com/danielhkuo/runecheck/cliparse"
	"github.com/danielhkuo/runecheck/db"
	"github.com/danielhkuo/runecheck/db/filestore"
	"github.com/danielhkuo/runecheck/db/redisstore"
	"github.com/danielhkuo/runecheck/middleware"
	"github.com/danielhkuo/runecheck/oracle"
	"github.com/danielhkuo/runecheck/registry"
	"github.com/danielhkuo/runecheck/router"
	"github.com/danielhkuo/runecheck/voting"
)

// store is what every backend provides.
type store interface {
	voting.Store
	registry.Store
}

func main() {
	// A missing .env file is fine; the environment may already be set
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("store setup failed", "store", cfg.StoreType, "error", err)
		os.Exit(1)
	}
	defer closeStore()
	slog.Info("Store ready", "store", cfg.StoreType)

	var o oracle.Oracle
	if cfg.OracleFile != "" {
		o, err = oracle.LoadStatic(cfg.OracleFile)
		if err != nil {
			slog.Error("failed to load balances file", "error", err)
			os.Exit(1)
		}
		slog.Info("Using fixed balances", "file", cfg.OracleFile)
	} else {
		o = oracle.NewClient(cfg.OracleURL, nil)
	}

	gate := auth.NewGate(o, cfg.AdminToken, cfg.AdminMinBalance)
	votes := voting.NewService(st, gate, gate, voting.Options{EnforceVotingWindow: cfg.EnforceVotingWindow})
	reg := registry.NewService(st, gate)

	var limiter *middleware.IPRateLimiter
	if cfg.VoteRateLimit > 0 {
		limiter = middleware.NewIPRateLimiter(rate.Limit(cfg.VoteRateLimit), cfg.VoteRateBurst)
		go limiter.Cleanup(ctx, time.Minute, 10*time.Minute)
	}
	if cfg.SweepInterval > 0 {
		go votes.Sweep(ctx, cfg.SweepInterval)
	}
	if len(cfg.TrustedProxies) > 0 {
		slog.Info("trusting forwarded client IPs", "proxies", cfg.TrustedProxies.String())
	}

	// Create router
	mux := router.NewRouter(votes, reg, limiter, cfg)

	// Create server
	server := http.Server{
		Handler:           middleware.CORS(cfg.CORSOrigin)(mux),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		// Wait for Ctrl-C signal
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}

func openStore(ctx context.Context, cfg cliparse.Config) (store, func() error, error) {
	switch cfg.StoreType {
	case cliparse.StoreRedis:
		s, err := redisstore.Open(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, redisstore.DefaultPrefix)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case cliparse.StoreFile:
		s, err := filestore.Open(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	default:
		s, err := db.Open(ctx, cfg.StoreType, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}
