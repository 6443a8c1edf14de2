package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PennStateLefty/services-firm-simulator-sub000/internal/offboarding"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/config"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/events"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/postgres"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/rabbitmq"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/statestore"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[Offboarding] Starting offboarding-service...")

	cfg := config.LoadForService("OFFBOARDING")

	db, err := postgres.Connect(cfg.StateStoreURL)
	if err != nil {
		log.Fatalf("[Offboarding] Failed to connect to state store: %v", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, "offboarding"); err != nil {
		log.Fatalf("[Offboarding] Failed to run migrations: %v", err)
	}

	rmqConn, err := rabbitmq.Connect(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("[Offboarding] Failed to connect to RabbitMQ: %v", err)
	}
	defer rmqConn.Close()

	publisher, err := rabbitmq.NewPublisher(rmqConn)
	if err != nil {
		log.Fatalf("[Offboarding] Failed to create publisher: %v", err)
	}
	defer publisher.Close()

	store := statestore.New(db)
	svc := offboarding.NewService(store, publisher)

	consumer := offboarding.NewConsumer(svc)
	consumerCfg := rabbitmq.ConsumerConfig{
		QueueName:    "offboarding.employee.events",
		DLQName:      "dlq.offboarding.employee.events",
		RoutingKeys:  []string{string(events.TypeTerminationRequested)},
		ConsumerName: "offboarding-service",
	}
	if err := rabbitmq.SetupConsumer(rmqConn, consumerCfg, consumer.HandleMessage); err != nil {
		log.Fatalf("[Offboarding] Failed to setup consumer: %v", err)
	}

	handler := offboarding.NewHandler(svc)
	router := offboarding.NewRouter(handler)

	srv := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("[Offboarding] Listening on port %s", cfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Offboarding] Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Offboarding] Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[Offboarding] Server forced to shutdown: %v", err)
	}
	log.Println("[Offboarding] Server exited gracefully")
}
