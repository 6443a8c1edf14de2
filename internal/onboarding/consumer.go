package onboarding

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/events"
)

// Consumer turns employee.created events into onboarding cases, exactly once
// per employee despite redelivery.
type Consumer struct {
	Service *Service
}

// NewConsumer creates the onboarding consumer.
func NewConsumer(svc *Service) *Consumer {
	return &Consumer{Service: svc}
}

// HandleMessage processes one delivery. Errors surface so the delivery is
// nacked and the broker redelivers or dead-letters it; a handler that failed
// before its write gets retried, one that failed after is covered by the
// idempotency guard.
func (c *Consumer) HandleMessage(delivery amqp.Delivery) error {
	var env events.Envelope
	if err := json.Unmarshal(delivery.Body, &env); err != nil {
		log.Printf("[Onboarding] Failed to unmarshal event: %v correlation_id=%s", err, delivery.CorrelationId)
		return err
	}

	payload, err := env.Decode()
	if err != nil {
		log.Printf("[Onboarding] Rejecting event: %v correlation_id=%s", err, env.CorrelationID)
		return err
	}

	created, ok := payload.(events.EmployeeCreated)
	if !ok {
		log.Printf("[Onboarding] Ignoring event type=%s correlation_id=%s", env.EventType, env.CorrelationID)
		return nil
	}

	log.Printf("[Onboarding] Processing event: type=%s event_id=%s employee_id=%s correlation_id=%s",
		env.EventType, env.EventID, created.EmployeeID, env.CorrelationID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cse, createdNow, err := c.Service.CreateCase(ctx, created.EmployeeID)
	if err != nil {
		log.Printf("[Onboarding] Error creating case: %v correlation_id=%s", err, env.CorrelationID)
		return err
	}
	if !createdNow {
		log.Printf("[Onboarding] Duplicate event skipped: employee_id=%s existing_case=%s correlation_id=%s",
			created.EmployeeID, cse.ID, env.CorrelationID)
		return nil
	}

	log.Printf("[Onboarding] Case created: case_id=%s employee_id=%s tasks=%d correlation_id=%s",
		cse.ID, created.EmployeeID, len(cse.Tasks), env.CorrelationID)
	return nil
}
