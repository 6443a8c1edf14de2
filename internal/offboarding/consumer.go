package offboarding

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/events"
)

// Consumer turns employee.termination_requested events into offboarding
// cases, exactly once per employee despite redelivery.
type Consumer struct {
	Service *Service
}

// NewConsumer creates the offboarding consumer.
func NewConsumer(svc *Service) *Consumer {
	return &Consumer{Service: svc}
}

// HandleMessage processes one delivery. Errors surface so the broker
// redelivers or dead-letters the message.
func (c *Consumer) HandleMessage(delivery amqp.Delivery) error {
	var env events.Envelope
	if err := json.Unmarshal(delivery.Body, &env); err != nil {
		log.Printf("[Offboarding] Failed to unmarshal event: %v correlation_id=%s", err, delivery.CorrelationId)
		return err
	}

	payload, err := env.Decode()
	if err != nil {
		log.Printf("[Offboarding] Rejecting event: %v correlation_id=%s", err, env.CorrelationID)
		return err
	}

	requested, ok := payload.(events.TerminationRequested)
	if !ok {
		log.Printf("[Offboarding] Ignoring event type=%s correlation_id=%s", env.EventType, env.CorrelationID)
		return nil
	}

	log.Printf("[Offboarding] Processing event: type=%s event_id=%s employee_id=%s correlation_id=%s",
		env.EventType, env.EventID, requested.EmployeeID, env.CorrelationID)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cse, createdNow, err := c.Service.CreateCase(ctx, requested.EmployeeID)
	if err != nil {
		log.Printf("[Offboarding] Error creating case: %v correlation_id=%s", err, env.CorrelationID)
		return err
	}
	if !createdNow {
		log.Printf("[Offboarding] Duplicate event skipped: employee_id=%s existing_case=%s correlation_id=%s",
			requested.EmployeeID, cse.ID, env.CorrelationID)
		return nil
	}

	log.Printf("[Offboarding] Case created: case_id=%s employee_id=%s tasks=%d correlation_id=%s",
		cse.ID, requested.EmployeeID, len(cse.Tasks), env.CorrelationID)
	return nil
}
