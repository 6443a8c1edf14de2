package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type tags a domain event. The set is closed: consumers reject envelopes
// carrying a type they do not know instead of attempting partial decoding.
type Type string

const (
	TypeEmployeeCreated      Type = "employee.created"
	TypeTerminationRequested Type = "employee.termination_requested"
	TypeEmployeeTerminated   Type = "employee.terminated"
	TypeOnboardingCompleted  Type = "onboarding.completed"
	TypeOffboardingCompleted Type = "offboarding.completed"
	TypeReviewSubmitted      Type = "review.submitted"
	TypeMeritApplied         Type = "merit.applied"
)

// Envelope is the wire shape of every event on the channel. Data holds the
// per-type payload. Delivery is at-least-once and unordered; consumers must
// tolerate redelivery and unknown or missing schema versions.
type Envelope struct {
	EventID       string          `json:"event_id"`
	CorrelationID string          `json:"correlation_id"`
	EventType     Type            `json:"event_type"`
	SchemaVersion int             `json:"_schemaVersion"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data"`
}

// Payloads carry only identifiers and the minimal fields known subscribers
// need, never full entity snapshots.

type EmployeeCreated struct {
	EmployeeID   string    `json:"employee_id"`
	Email        string    `json:"email"`
	DepartmentID string    `json:"department_id"`
	HireDate     time.Time `json:"hire_date"`
}

type TerminationRequested struct {
	EmployeeID string `json:"employee_id"`
}

type EmployeeTerminated struct {
	EmployeeID string `json:"employee_id"`
	CaseID     string `json:"case_id"`
}

type OnboardingCompleted struct {
	EmployeeID string `json:"employee_id"`
	CaseID     string `json:"case_id"`
}

type OffboardingCompleted struct {
	EmployeeID string `json:"employee_id"`
	CaseID     string `json:"case_id"`
}

type ReviewSubmitted struct {
	ReviewID   string `json:"review_id"`
	CycleID    string `json:"cycle_id"`
	EmployeeID string `json:"employee_id"`
	Rating     int    `json:"rating"`
}

type MeritApplied struct {
	CycleID    string `json:"cycle_id"`
	EmployeeID string `json:"employee_id"`
	NewSalary  string `json:"new_salary"`
}

// NewEnvelope wraps a payload for publication with a fresh event id.
func NewEnvelope(t Type, correlationID string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Envelope{
		EventID:       uuid.New().String(),
		CorrelationID: correlationID,
		EventType:     t,
		SchemaVersion: 1,
		Timestamp:     time.Now(),
		Data:          data,
	}, nil
}

// Decode returns the typed payload for the envelope, or an error for an
// unknown event type.
func (e Envelope) Decode() (any, error) {
	switch e.EventType {
	case TypeEmployeeCreated:
		return decodeAs[EmployeeCreated](e)
	case TypeTerminationRequested:
		return decodeAs[TerminationRequested](e)
	case TypeEmployeeTerminated:
		return decodeAs[EmployeeTerminated](e)
	case TypeOnboardingCompleted:
		return decodeAs[OnboardingCompleted](e)
	case TypeOffboardingCompleted:
		return decodeAs[OffboardingCompleted](e)
	case TypeReviewSubmitted:
		return decodeAs[ReviewSubmitted](e)
	case TypeMeritApplied:
		return decodeAs[MeritApplied](e)
	default:
		return nil, fmt.Errorf("unknown event type %q", e.EventType)
	}
}

func decodeAs[T any](e Envelope) (T, error) {
	var payload T
	if err := json.Unmarshal(e.Data, &payload); err != nil {
		return payload, fmt.Errorf("decode %s payload: %w", e.EventType, err)
	}
	return payload, nil
}
