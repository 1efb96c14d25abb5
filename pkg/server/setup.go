package server

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"floorpulse/pkg/analytics"
	"floorpulse/pkg/cache"
	badgerstore "floorpulse/pkg/cache/badger"
	"floorpulse/pkg/cache/memory"
	"floorpulse/pkg/cache/sqlite"
	"floorpulse/pkg/config"
	"floorpulse/pkg/export"
	"floorpulse/pkg/fetch"
	"floorpulse/pkg/ingest"
	"floorpulse/pkg/query"
)

// Config holds server configuration.
type Config struct {
	StoreBackend    string
	DataDir         string
	Warehouse       string
	Port            string
	RefreshInterval time.Duration
	RetentionDays   int
	MaxMemoryMB     int64
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() Config {
	backend := getEnv("FLOORPULSE_STORE", "badger")
	warehouse := getEnv("FLOORPULSE_WAREHOUSE", config.DefaultWarehouse)
	refreshSec := getEnvInt("FLOORPULSE_REFRESH_SECONDS", int64(config.DefaultRefreshInterval/time.Second))
	retention := getEnvInt("FLOORPULSE_RETENTION_DAYS", config.DefaultRetentionDays)
	maxMemoryMB := getEnvInt("FLOORPULSE_MAX_MEMORY_MB", config.DefaultMaxMemoryMB)

	dataDir := getEnv("FLOORPULSE_DATA_DIR", "./data/floorpulse")
	if backend != "memory" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	return Config{
		StoreBackend:    backend,
		DataDir:         dataDir,
		Warehouse:       warehouse,
		Port:            getPort(),
		RefreshInterval: time.Duration(refreshSec) * time.Second,
		RetentionDays:   int(retention),
		MaxMemoryMB:     maxMemoryMB,
	}
}

// InitializeStore opens the cache backend named by FLOORPULSE_STORE.
func InitializeStore(cfg Config) (cache.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		log.Println("Using in-memory cache (data is lost on restart)")
		return memory.New(), nil
	case "sqlite":
		path := cfg.DataDir + "/floorpulse.db"
		log.Printf("Opening SQLite cache at %s", path)
		return sqlite.New(path)
	case "badger":
		log.Println("Opening BadgerDB cache with Snappy compression...")
		store, err := badgerstore.New(badgerstore.Config{
			Path:        cfg.DataDir,
			MaxMemoryMB: cfg.MaxMemoryMB,
		})
		if err != nil {
			return nil, err
		}
		log.Println("BadgerDB cache ready")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (want badger, sqlite, or memory)", cfg.StoreBackend)
	}
}

// Handlers bundles every request handler plus the WebSocket hub.
type Handlers struct {
	Ingest    *ingest.Handler
	Query     *query.Handler
	Analytics *analytics.Handler
	Export    *export.Handler
	Hub       *ingest.Hub
}

// InitializeHandlers creates and wires all request handlers.
func InitializeHandlers(store cache.Store) *Handlers {
	hub := ingest.NewHub()
	engine := query.NewEngine(store)

	h := &Handlers{
		Ingest:    ingest.NewHandler(store).WithHub(hub),
		Query:     query.NewHandler(engine),
		Analytics: analytics.NewHandler(store, engine),
		Export:    export.NewHandler(store),
		Hub:       hub,
	}
	log.Println("Handlers created (partitions, range query, analytics, export/import)")
	return h
}

// InitializeScheduler builds the fetch scheduler when a Fetcher is available.
// Without one the service runs push-only and returns nil.
func InitializeScheduler(cfg Config, store cache.Store, fetcher fetch.Fetcher) *fetch.Scheduler {
	if fetcher == nil {
		log.Println("No fetcher configured; running push-only")
		return nil
	}
	policy := cache.NewStalenessPolicy(cfg.RefreshInterval)
	log.Printf("Fetch scheduler ready (refresh %v, parallelism %d)", cfg.RefreshInterval, config.DefaultFetchParallel)
	return fetch.NewScheduler(store, fetcher, policy)
}

// getEnv gets a string from an environment variable or returns the default.
func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// getEnvInt gets an int64 from an environment variable or returns the default.
func getEnvInt(key string, defaultValue int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}

// getPort gets the server port from the PORT environment variable or returns the default.
func getPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return config.DefaultPort
}
