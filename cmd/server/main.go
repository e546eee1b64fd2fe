package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inboxops/brevo-console/internal/accounts"
	"github.com/inboxops/brevo-console/internal/api"
	"github.com/inboxops/brevo-console/internal/brevo"
	"github.com/inboxops/brevo-console/internal/config"
	"github.com/inboxops/brevo-console/internal/importer"
	"github.com/inboxops/brevo-console/internal/pkg/logger"
	"github.com/inboxops/brevo-console/internal/templates"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// checkPortAvailable verifies that the target port is not already in use.
// This prevents confusion from stale processes occupying the port.
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
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Brevo Console Server (cmd/server/main.go)                 ║")
	log.Println("║  Multi-account management console with bulk import engine  ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	// Load configuration
	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active (storage.type=postgres)")
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.PIIRedactionEnabled())

	// Pre-flight check: verify the target port is available
	host := cfg.Server.GetHost()
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	if err := checkPortAvailable(host, port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}
	log.Printf("Pre-flight check passed: port %d is available", port)

	ctx := context.Background()

	// Initialize the account store
	store, err := accounts.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize account store: %v", err)
	}
	defer store.Close()
	log.Printf("Account store ready (type=%s)", cfg.Storage.Type)

	// Initialize the import engine against the provider API
	engine := importer.New(store, brevo.NewContactImporter(cfg.Brevo), importer.Config{})
	engine.Start()

	// Template preview service
	previewer := templates.NewPreviewer()

	server := api.NewServer(cfg, store, engine, previewer)

	// Setup graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", host, port)
		log.Printf("Starting server on %s (provider %s)", addr, cfg.Brevo.BaseURL)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized — server is ready")

	<-done
	log.Println("Shutting down...")

	// Stop accepting jobs and wait for import loops to exit
	engine.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
