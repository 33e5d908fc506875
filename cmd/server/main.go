package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/verifyhub/internal/api"
	"github.com/ignite/verifyhub/internal/bouncify"
	"github.com/ignite/verifyhub/internal/config"
	"github.com/ignite/verifyhub/internal/pkg/distlock"
	"github.com/ignite/verifyhub/internal/repository/postgres"
	"github.com/ignite/verifyhub/internal/service/credits"
	"github.com/ignite/verifyhub/internal/service/verification"
	"github.com/ignite/verifyhub/internal/storage"
	"github.com/ignite/verifyhub/internal/watcher"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

// checkPortAvailable verifies that the target port is not already in use.
// Prevents confusion from stale/stub processes occupying the port.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("VerifyHub server starting")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Bouncify.APIKey == "" {
		log.Fatal("Bouncify API key is required (bouncify.api_key or BOUNCIFY_API_KEY)")
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", port)

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Database unreachable: %v", err)
	}
	pingCancel()
	log.Println("Connected to PostgreSQL")

	// Redis is optional; without it distributed locks fall back to
	// Postgres advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Redis unreachable (%v), falling back to advisory locks", err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Println("Connected to Redis")
			defer redisClient.Close()
		}
	}

	// Results archive
	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("Results archive: %s", cfg.Storage.Type)

	// Provider client and services
	client := bouncify.NewClient(cfg.Bouncify)
	logRepo := postgres.NewVerificationLogRepo(db)
	ledgerRepo := postgres.NewCreditLedgerRepo(db)
	lockFactory := distlock.NewFactory(redisClient, db)

	verifySvc := verification.NewService(client, logRepo, ledgerRepo, store, verification.Limits{
		MaxUploadBytes: cfg.Upload.MaxBytes,
		AllowedTypes:   cfg.Upload.AllowedTypes,
	})
	creditSvc := credits.NewService(client, ledgerRepo, lockFactory)

	jobWatcher := watcher.New(verifySvc, cfg.Watcher.Interval(), cfg.Watcher.MaxAge())

	handlers := api.NewHandlers(verifySvc, creditSvc, jobWatcher, cfg.Upload)
	server := api.NewServer(cfg.Server, cfg.Auth, handlers)

	if cfg.Auth.DevMode {
		log.Printf("DEV MODE: requests run as user %q without auth", cfg.Auth.DevUserID)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")

	jobWatcher.StopAll()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
