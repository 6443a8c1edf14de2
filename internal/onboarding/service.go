package onboarding

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/apperrors"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/cases"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/events"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/lifecycle"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/statestore"
)

const caseKeyPrefix = "case:onboarding:"

const day = 24 * time.Hour

// Every onboarding case starts from the same task list.
var taskTemplates = []cases.TaskTemplate{
	{Title: "Sign employment contract", DueIn: 3 * day},
	{Title: "Provision laptop and accounts", DueIn: 5 * day},
	{Title: "Complete compliance training", DueIn: 14 * day},
	{Title: "Meet the team", DueIn: 7 * day},
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(routingKey string, body []byte, correlationID string) error
}

// Service owns onboarding cases in the state store.
type Service struct {
	Store     *statestore.Client
	Publisher EventPublisher
}

// NewService creates the onboarding case service.
func NewService(store *statestore.Client, pub EventPublisher) *Service {
	return &Service{Store: store, Publisher: pub}
}

// CreateCase creates an onboarding case for the employee unless one already
// exists. The existence query on the employee id is the idempotency guard
// that makes event redelivery safe: it returns the existing case and
// created=false instead of writing a duplicate.
func (s *Service) CreateCase(ctx context.Context, employeeID string) (*cases.Case, bool, error) {
	existing, err := statestore.QueryAs[cases.Case](ctx, s.Store, statestore.Filter{
		Prefix: caseKeyPrefix,
		Fields: map[string]string{"employee_id": employeeID},
	})
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return &existing[0], false, nil
	}

	c := cases.New(cases.KindOnboarding, employeeID, taskTemplates, time.Now())
	if err := s.Store.Save(ctx, caseKeyPrefix+c.ID, c); err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// GetCase loads a case, rederiving status and completion from its tasks.
func (s *Service) GetCase(ctx context.Context, caseID string) (*cases.Case, error) {
	var c cases.Case
	found, err := s.Store.Get(ctx, caseKeyPrefix+caseID, &c)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFoundf("onboarding case %s not found", caseID)
	}
	c.Recompute()
	return &c, nil
}

// TransitionTask moves one task of the case to a new status, persists the
// whole case as one unit, and emits onboarding.completed when the final task
// resolves.
func (s *Service) TransitionTask(ctx context.Context, caseID, taskID string, to lifecycle.TaskStatus, correlationID string) (*cases.Case, error) {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	if err := c.TransitionTask(taskID, to, time.Now()); err != nil {
		return nil, err
	}
	completedNow := c.Recompute()

	if err := s.Store.Save(ctx, caseKeyPrefix+c.ID, c); err != nil {
		return nil, err
	}

	if completedNow {
		s.publishCompleted(c, correlationID)
	}
	return c, nil
}

func (s *Service) publishCompleted(c *cases.Case, correlationID string) {
	env, err := events.NewEnvelope(events.TypeOnboardingCompleted, correlationID, events.OnboardingCompleted{
		EmployeeID: c.EmployeeID,
		CaseID:     c.ID,
	})
	if err != nil {
		log.Printf("[Onboarding] Error building completed event: %v correlation_id=%s", err, correlationID)
		return
	}
	body, _ := json.Marshal(env)
	if err := s.Publisher.Publish(string(events.TypeOnboardingCompleted), body, correlationID); err != nil {
		log.Printf("[Onboarding] Error publishing completed event: %v correlation_id=%s", err, correlationID)
	}
	log.Printf("[Onboarding] Case completed: case_id=%s employee_id=%s correlation_id=%s",
		c.ID, c.EmployeeID, correlationID)
}
