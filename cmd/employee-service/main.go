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
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/config"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/events"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/postgres"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/rabbitmq"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/statestore"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[Employee] Starting employee-service...")

	cfg := config.LoadForService("EMPLOYEE")

	db, err := postgres.Connect(cfg.StateStoreURL)
	if err != nil {
		log.Fatalf("[Employee] Failed to connect to state store: %v", err)
	}
	defer db.Close()

	if err := postgres.RunMigrations(db, "employee"); err != nil {
		log.Fatalf("[Employee] Failed to run migrations: %v", err)
	}

	rmqConn, err := rabbitmq.Connect(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("[Employee] Failed to connect to RabbitMQ: %v", err)
	}
	defer rmqConn.Close()

	publisher, err := rabbitmq.NewPublisher(rmqConn)
	if err != nil {
		log.Fatalf("[Employee] Failed to create publisher: %v", err)
	}
	defer publisher.Close()

	store := statestore.New(db)

	// Case completion events drive the employee status state machine.
	consumer := employee.NewConsumer(store, publisher)
	consumerCfg := rabbitmq.ConsumerConfig{
		QueueName:    "employee.lifecycle.events",
		DLQName:      "dlq.employee.lifecycle.events",
		RoutingKeys:  []string{string(events.TypeOnboardingCompleted), string(events.TypeOffboardingCompleted)},
		ConsumerName: "employee-service",
	}
	if err := rabbitmq.SetupConsumer(rmqConn, consumerCfg, consumer.HandleMessage); err != nil {
		log.Fatalf("[Employee] Failed to setup consumer: %v", err)
	}

	handler := employee.NewHandler(store, publisher)
	router := employee.NewRouter(handler)

	srv := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	go func() {
		log.Printf("[Employee] Listening on port %s", cfg.APIPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Employee] Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Employee] Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("[Employee] Server forced to shutdown: %v", err)
	}
	log.Println("[Employee] Server exited gracefully")
}
