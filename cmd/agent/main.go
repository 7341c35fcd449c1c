package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/pressly/goose/v3"

	"github.com/pushdeck/agent/internal/api"
	"github.com/pushdeck/agent/internal/auth"
	"github.com/pushdeck/agent/internal/bus"
	"github.com/pushdeck/agent/internal/config"
	"github.com/pushdeck/agent/internal/db"
	httphandler "github.com/pushdeck/agent/internal/http"
	"github.com/pushdeck/agent/internal/http/handlers"
	"github.com/pushdeck/agent/internal/inbox"
	"github.com/pushdeck/agent/internal/kv"
	"github.com/pushdeck/agent/internal/push"
	_ "github.com/lib/pq"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open kv store: %v", err)
	}

	eventBus := bus.New()
	cache := inbox.New(store, eventBus)

	// Push transport. Without a broker URL the agent still serves the
	// webhook inbound path, but device binding will time out.
	var listener *push.Listener
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL, nats.Name("pushdeck-agent-"+cfg.Tenant))
		if err != nil {
			log.Fatalf("Failed to connect to push broker: %v", err)
		}
		defer conn.Drain()

		listener = push.NewListener(conn, cache, cfg.Tenant)
		listener.Start(ctx)
		defer listener.Close()
	} else {
		log.Printf("NATS_URL not set; push transport disabled")
		listener = push.NewListener(nil, cache, cfg.Tenant)
	}

	backend := api.New(cfg.APIBaseURL, cfg.CompanyAPIURL, cfg.CompanyAPIBearer, store)
	otpProvider := auth.NewOtpHTTP(cfg.AuthURL, cfg.AuthAnonKey)
	flow := auth.NewFlow(otpProvider, listener, backend, store, cfg.DeviceIDTimeout, auth.ReviewCredentials{
		Email: cfg.ReviewEmail,
		Code:  cfg.ReviewCode,
	})

	authHandler := handlers.NewAuthHandler(flow, cache, backend)
	messagesHandler := handlers.NewMessagesHandler(cache)
	settingsHandler := handlers.NewSettingsHandler(backend)

	router := httphandler.NewRouter(authHandler, messagesHandler, settingsHandler, store)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Agent (%s) listening on port %s", cfg.Tenant, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Agent exited")
}

// openStore builds the configured kv backend.
func openStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.KVBackend {
	case config.BackendMemory:
		log.Printf("Using in-memory kv store; state will not survive a restart")
		return kv.NewMemoryStore(), nil

	case config.BackendRedis:
		return kv.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPrefix)

	case config.BackendPostgres:
		database, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := runMigrations(database); err != nil {
			return nil, err
		}
		return kv.NewPostgresStore(database), nil
	}
	return nil, fmt.Errorf("unknown kv backend %q", cfg.KVBackend)
}

// runMigrations runs database migrations using goose
func runMigrations(database *sql.DB) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	migrationDir := "internal/db/migrations"
	if info, err := os.Stat(migrationDir); err != nil || !info.IsDir() {
		return fmt.Errorf("migrations directory not found (run from the repo root)")
	}

	absDir, _ := filepath.Abs(migrationDir)
	log.Printf("Running migrations from %s", absDir)

	if err := goose.Up(database, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
