package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"floorpulse/pkg/server"
)

const (
	serverReadTimeout  = 10 * time.Second
	serverWriteTimeout = 30 * time.Second
	shutdownTimeout    = 30 * time.Second
)

func main() {
	log.Println("🚀 Starting FloorPulse Server...")

	cfg := server.LoadConfig()
	log.Printf("⚙️  Configuration: store=%s warehouse=%s refresh=%v retention=%dd",
		cfg.StoreBackend, cfg.Warehouse, cfg.RefreshInterval, cfg.RetentionDays)

	store, err := server.InitializeStore(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize cache store: %v", err)
	}
	defer store.Close()

	handlers := server.InitializeHandlers(store)

	// No portal fetcher ships in this binary; the scraping layer pushes
	// batches through POST /v1/partitions instead.
	scheduler := server.InitializeScheduler(cfg, store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		handlers.Hub.Run(ctx)
	}()
	log.Println("📡 WebSocket hub started for live cache updates")

	wg.Add(1)
	go func() {
		defer wg.Done()
		server.BroadcastStats(ctx, store, handlers.Hub)
	}()
	log.Println("📤 Stats broadcaster started")

	cronJobs := server.StartCron(ctx, cfg, store, scheduler, handlers.Hub)

	router := mux.NewRouter()
	server.SetupRoutes(router, cfg, handlers, scheduler)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
	}

	go func() {
		log.Printf("🌐 Server starting on http://localhost:%s", cfg.Port)
		log.Println("📡 API endpoints:")
		log.Println("   POST   /v1/partitions          - Push a partition batch")
		log.Println("   GET    /v1/partitions          - List cached partitions")
		log.Println("   GET    /v1/query/range         - Date-range queries")
		log.Println("   GET    /v1/analytics/employee  - Peer analytics")
		log.Println("   GET    /v1/cache/stats         - Cache statistics")
		log.Println("   DELETE /v1/cache               - Clear the cache")
		log.Println("   GET    /v1/export              - Backup (JSON/CSV)")
		log.Println("   POST   /v1/import              - Restore a backup")
		log.Println("   GET    /v1/live                - WebSocket updates")
		log.Println("✅ Server ready to accept requests")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutdown signal received...")

	// Cancel before wg.Wait or the hub and broadcaster never exit.
	log.Println("⏸️  Stopping background tasks...")
	cancel()
	cronCtx := cronJobs.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	log.Println("🔄 Gracefully shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  Server shutdown warning: %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		<-cronCtx.Done()
		close(done)
	}()

	select {
	case <-done:
		log.Println("✅ All background tasks stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("⚠️  Some background tasks did not stop in time (forcing exit)")
	}

	log.Println("👋 FloorPulse server exited cleanly")
}
