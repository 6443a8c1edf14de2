package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PennStateLefty/services-firm-simulator-sub000/internal/performance"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/config"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/postgres"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/rabbitmq"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/statestore"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[Performance] Starting performance-service...")

	cfg := config.LoadForService("PERFORMANCE")

	db, err := postgres.Connect(cfg.StateStoreURL)
	if err != nil {
		log.Fatalf("[Performance] Failed to connect to state store: %v", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, "performance"); err != nil {
		log.Fatalf("[Performance] Failed to run migrations: %v", err)
	}

	rmqConn, err := rabbitmq.Connect(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("[Performance] Failed to connect to RabbitMQ: %v", err)
	}
	defer rmqConn.Close()

	publisher, err := rabbitmq.NewPublisher(rmqConn)
	if err != nil {
		log.Fatalf("[Performance] Failed to create publisher: %v", err)
	}
	defer publisher.Close()

	handler := performance.NewHandler(statestore.New(db), publisher)
	router := performance.NewRouter(handler)

	srv := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("[Performance] Listening on port %s", cfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Performance] Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Performance] Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[Performance] Server forced to shutdown: %v", err)
	}
	log.Println("[Performance] Server exited gracefully")
}
