package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MeritCycleStatus tracks a cycle from draft through approval. Proposals are
// immutable once the cycle is approved.
type MeritCycleStatus string

const (
	MeritCycleDraft      MeritCycleStatus = "draft"
	MeritCycleCalculated MeritCycleStatus = "calculated"
	MeritCycleApproved   MeritCycleStatus = "approved"
)

// Guideline maps one performance rating to raise and bonus percentages.
type Guideline struct {
	Rating       int             `json:"rating"`
	RaisePercent decimal.Decimal `json:"raise_percent"`
	BonusPercent decimal.Decimal `json:"bonus_percent"`
}

// MeritCycle scopes a budget and a guideline table to one review cycle.
type MeritCycle struct {
	ID            string           `json:"id"`
	SchemaVersion int              `json:"_schemaVersion"`
	Name          string           `json:"name"`
	TotalBudget   decimal.Decimal  `json:"total_budget"`
	Status        MeritCycleStatus `json:"status"`
	Guidelines    []Guideline      `json:"guidelines"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// MeritProposal is one employee's computed raise within a cycle.
type MeritProposal struct {
	ID            string          `json:"id"`
	SchemaVersion int             `json:"_schemaVersion"`
	CycleID       string          `json:"cycle_id"`
	EmployeeID    string          `json:"employee_id"`
	Rating        int             `json:"rating"`
	CurrentSalary decimal.Decimal `json:"current_salary"`
	RaisePercent  decimal.Decimal `json:"raise_percent"`
	RaiseAmount   decimal.Decimal `json:"raise_amount"`
	BonusPercent  decimal.Decimal `json:"bonus_percent"`
	BonusAmount   decimal.Decimal `json:"bonus_amount"`
	NewSalary     decimal.Decimal `json:"new_salary"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CreateMeritCycleRequest is the request body for opening a merit cycle.
type CreateMeritCycleRequest struct {
	Name        string             `json:"name" binding:"required"`
	TotalBudget string             `json:"total_budget" binding:"required"`
	Guidelines  []GuidelineRequest `json:"guidelines" binding:"required,dive"`
}

// GuidelineRequest is one guideline row in a cycle creation request.
type GuidelineRequest struct {
	Rating       int    `json:"rating" binding:"required,min=1,max=5"`
	RaisePercent string `json:"raise_percent" binding:"required"`
	BonusPercent string `json:"bonus_percent,omitempty"`
}

// AdjustProposalRequest overrides one proposal's raise percentage before
// approval.
type AdjustProposalRequest struct {
	RaisePercent string `json:"raise_percent" binding:"required"`
}
