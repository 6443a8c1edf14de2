package employee

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/events"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/lifecycle"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/models"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/statestore"
)

// Consumer drives the employee status state machine from case completion
// events: onboarding.completed activates a pending employee,
// offboarding.completed terminates an active one.
type Consumer struct {
	Store     *statestore.Client
	Publisher EventPublisher
}

// NewConsumer creates the employee lifecycle consumer.
func NewConsumer(store *statestore.Client, pub EventPublisher) *Consumer {
	return &Consumer{Store: store, Publisher: pub}
}

// HandleMessage processes one case completion event.
func (c *Consumer) HandleMessage(delivery amqp.Delivery) error {
	var env events.Envelope
	if err := json.Unmarshal(delivery.Body, &env); err != nil {
		log.Printf("[Employee] Failed to unmarshal event: %v correlation_id=%s", err, delivery.CorrelationId)
		return err
	}

	payload, err := env.Decode()
	if err != nil {
		log.Printf("[Employee] Rejecting event: %v correlation_id=%s", err, env.CorrelationID)
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch p := payload.(type) {
	case events.OnboardingCompleted:
		return c.transition(ctx, p.EmployeeID, p.CaseID, lifecycle.EmployeeActive, env.CorrelationID)
	case events.OffboardingCompleted:
		return c.transition(ctx, p.EmployeeID, p.CaseID, lifecycle.EmployeeTerminated, env.CorrelationID)
	default:
		log.Printf("[Employee] Ignoring event type=%s correlation_id=%s", env.EventType, env.CorrelationID)
		return nil
	}
}

func (c *Consumer) transition(ctx context.Context, employeeID, caseID string, to lifecycle.EmployeeStatus, correlationID string) error {
	var emp models.Employee
	found, err := c.Store.Get(ctx, "employee:"+employeeID, &emp)
	if err != nil {
		log.Printf("[Employee] Error loading employee %s: %v correlation_id=%s", employeeID, err, correlationID)
		return err
	}
	if !found {
		log.Printf("[Employee] Employee %s not found for transition to %s correlation_id=%s",
			employeeID, to, correlationID)
		return nil // nothing to transition; redelivery won't help
	}

	// Redelivered completion event: the transition already happened.
	if emp.Status == to {
		log.Printf("[Employee] Duplicate transition ignored: id=%s status=%s correlation_id=%s",
			employeeID, to, correlationID)
		return nil
	}

	if err := lifecycle.CheckEmployeeTransition(emp.Status, to); err != nil {
		log.Printf("[Employee] Rejected transition %s -> %s for %s: %v correlation_id=%s",
			emp.Status, to, employeeID, err, correlationID)
		return err
	}

	emp.Status = to
	emp.UpdatedAt = time.Now()
	if err := c.Store.Save(ctx, "employee:"+emp.ID, emp); err != nil {
		log.Printf("[Employee] Error saving employee %s: %v correlation_id=%s", emp.ID, err, correlationID)
		return err
	}

	log.Printf("[Employee] Status changed: id=%s status=%s correlation_id=%s", emp.ID, to, correlationID)

	if to == lifecycle.EmployeeTerminated {
		env, err := events.NewEnvelope(events.TypeEmployeeTerminated, correlationID, events.EmployeeTerminated{
			EmployeeID: emp.ID,
			CaseID:     caseID,
		})
		if err != nil {
			log.Printf("[Employee] Error building terminated event: %v correlation_id=%s", err, correlationID)
			return nil
		}
		body, _ := json.Marshal(env)
		if err := c.Publisher.Publish(string(events.TypeEmployeeTerminated), body, correlationID); err != nil {
			log.Printf("[Employee] Error publishing terminated event: %v correlation_id=%s", err, correlationID)
		}
	}
	return nil
}
