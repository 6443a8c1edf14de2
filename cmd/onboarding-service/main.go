package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PennStateLefty/services-firm-simulator-sub000/internal/employee"
	"github.com/PennStateLefty/services-firm-simulator-sub000/internal/onboarding"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/config"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/events"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/postgres"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/rabbitmq"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/statestore"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[Onboarding] Starting onboarding-service...")

	cfg := config.LoadForService("ONBOARDING")

	db, err := postgres.Connect(cfg.StateStoreURL)
	if err != nil {
		log.Fatalf("[Onboarding] Failed to connect to state store: %v", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, "onboarding"); err != nil {
		log.Fatalf("[Onboarding] Failed to run migrations: %v", err)
	}

	rmqConn, err := rabbitmq.Connect(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("[Onboarding] Failed to connect to RabbitMQ: %v", err)
	}
	defer rmqConn.Close()

	publisher, err := rabbitmq.NewPublisher(rmqConn)
	if err != nil {
		log.Fatalf("[Onboarding] Failed to create publisher: %v", err)
	}
	defer publisher.Close()

	store := statestore.New(db)
	svc := onboarding.NewService(store, publisher)

	consumer := onboarding.NewConsumer(svc)
	consumerCfg := rabbitmq.ConsumerConfig{
		QueueName:    "onboarding.employee.events",
		DLQName:      "dlq.onboarding.employee.events",
		RoutingKeys:  []string{string(events.TypeEmployeeCreated)},
		ConsumerName: "onboarding-service",
	}
	if err := rabbitmq.SetupConsumer(rmqConn, consumerCfg, consumer.HandleMessage); err != nil {
		log.Fatalf("[Onboarding] Failed to setup consumer: %v", err)
	}

	handler := onboarding.NewHandler(svc, employee.NewClient(cfg.EmployeeServiceURL))
	router := onboarding.NewRouter(handler)

	srv := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("[Onboarding] Listening on port %s", cfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Onboarding] Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Onboarding] Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[Onboarding] Server forced to shutdown: %v", err)
	}
	log.Println("[Onboarding] Server exited gracefully")
}
