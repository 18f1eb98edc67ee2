package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
	"vrp-search-service/internal/adapters/cache"
	"vrp-search-service/internal/adapters/instance"
	"vrp-search-service/internal/adapters/repositories"
	"vrp-search-service/internal/api"
	"vrp-search-service/internal/config"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/platform/db"
	"vrp-search-service/internal/platform/sysinfo"
	"vrp-search-service/internal/ports"
	"vrp-search-service/internal/services"

	"github.com/joho/godotenv"
)

// main is the application composition root.
// It wires concrete adapters (SQLite or Postgres, Redis) behind ports and starts the HTTP server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	databaseURL := config.Get("DATABASE_URL", "sqlite://data/runs.db")
	seedPath := config.Get("SEED_PATH", "data/seeds/best_known.json")
	port := config.Get("PORT", "8080")

	cfg, err := config.Load(os.Getenv("AILS_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatal(err)
	}
	maxSeconds, err := strconv.ParseFloat(config.Get("MAX_SOLVE_SECONDS", "300"), 64)
	if err != nil {
		log.Fatalf("MAX_SOLVE_SECONDS: %v", err)
	}

	conn, err := db.OpenURL(databaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()
	driver := db.Driver(databaseURL)

	// Initialize schema and seed the best-known catalogue on startup for local runs.
	if err := initAndSeed(conn, driver, seedPath); err != nil {
		log.Fatal(err)
	}

	incumbents, closeIncumbents, err := openIncumbents(conn, driver)
	if err != nil {
		log.Fatal(err)
	}
	defer closeIncumbents()

	opts := domain.InstanceOptions{Rounded: cfg.Rounded, KNNLimit: cfg.KNNLimit}
	source := instance.Resolver{Files: instance.FileSource{Dir: config.Get("INSTANCE_DIR", "data/instances"), Options: opts}}
	if mirror := os.Getenv("INSTANCE_MIRROR"); mirror != "" {
		source.HTTP = instance.NewHTTPSource(mirror, opts)
	}

	var runs *repositories.SQLRunRepository
	if driver == "pgx" {
		runs = repositories.NewPostgresRunRepository(conn)
	} else {
		runs = repositories.NewSqliteRunRepository(conn)
	}

	host := sysinfo.Collect()
	log.Printf("host=%q", host.String())

	router := api.NewRouter(api.RouterDeps{
		DB: conn,
		Search: services.RunSearchDeps{
			Source:     source,
			Runs:       runs,
			Incumbents: incumbents,
			Host:       host.Hostname,
		},
		Defaults:   cfg,
		MaxSeconds: maxSeconds,
	})

	// Write timeout covers the longest solve budget the server accepts.
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Duration(maxSeconds*float64(time.Second)) + cfg.ShutdownTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Server listening addr=:%s db=%s", port, driver)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func initAndSeed(conn *sql.DB, driver, seedPath string) error {
	if err := repositories.InitSchema(conn, driver); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}

	if _, err := os.Stat(seedPath); errors.Is(err, os.ErrNotExist) {
		log.Printf("seed file %q not found, best-known catalogue left as is", seedPath)
		return nil
	}
	n, err := repositories.SeedFromJSON(conn, driver, seedPath)
	if err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}
	log.Printf("seeded best_known=%d", n)

	return nil
}

// openIncumbents prefers Redis when REDIS_URL is set, the run database otherwise.
func openIncumbents(conn *sql.DB, driver string) (ports.IncumbentStore, func(), error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		if driver == "pgx" {
			return cache.NewSQLIncumbentStore(conn), func() {}, nil
		}
		return cache.NewSqliteIncumbentStore(conn), func() {}, nil
	}

	client, err := cache.NewRedisClient(redisURL)
	if err != nil {
		return nil, nil, err
	}
	ttl, err := time.ParseDuration(config.Get("INCUMBENT_TTL", "0s"))
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("INCUMBENT_TTL: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return cache.NewRedisIncumbentStore(client, ttl), func() { client.Close() }, nil
}
