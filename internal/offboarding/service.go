package offboarding

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

const caseKeyPrefix = "case:offboarding:"

const day = 24 * time.Hour

var taskTemplates = []cases.TaskTemplate{
	{Title: "Return equipment", DueIn: 7 * day},
	{Title: "Revoke system access", DueIn: 1 * day},
	{Title: "Conduct exit interview", DueIn: 10 * day},
	{Title: "Process final payroll", DueIn: 14 * day},
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(routingKey string, body []byte, correlationID string) error
}

// Service owns offboarding cases in the state store.
type Service struct {
	Store     *statestore.Client
	Publisher EventPublisher
}

// NewService creates the offboarding case service.
func NewService(store *statestore.Client, pub EventPublisher) *Service {
	return &Service{Store: store, Publisher: pub}
}

// CreateCase opens an offboarding case for the employee unless one already
// exists — the idempotency guard against redelivered termination requests.
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

	c := cases.New(cases.KindOffboarding, employeeID, taskTemplates, time.Now())
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
		return nil, apperrors.NotFoundf("offboarding case %s not found", caseID)
	}
	c.Recompute()
	return &c, nil
}

// TransitionTask moves one task of the case to a new status, persists the
// whole case as one unit, and emits offboarding.completed when the final
// task resolves.
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
	env, err := events.NewEnvelope(events.TypeOffboardingCompleted, correlationID, events.OffboardingCompleted{
		EmployeeID: c.EmployeeID,
		CaseID:     c.ID,
	})
	if err != nil {
		log.Printf("[Offboarding] Error building completed event: %v correlation_id=%s", err, correlationID)
		return
	}
	body, _ := json.Marshal(env)
	if err := s.Publisher.Publish(string(events.TypeOffboardingCompleted), body, correlationID); err != nil {
		log.Printf("[Offboarding] Error publishing completed event: %v correlation_id=%s", err, correlationID)
	}
	log.Printf("[Offboarding] Case completed: case_id=%s employee_id=%s correlation_id=%s",
		c.ID, c.EmployeeID, correlationID)
}
