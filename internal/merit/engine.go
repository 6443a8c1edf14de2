package merit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/apperrors"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/models"
)

var hundred = decimal.NewFromInt(100)

// BuildProposals computes one merit proposal per review using the cycle's
// guideline table. Salary arithmetic is fixed-point decimal throughout; raise
// amounts round to cents so hundreds of proposals cannot accumulate drift.
func BuildProposals(cycle models.MeritCycle, reviews []models.Review, salaries map[string]decimal.Decimal, now time.Time) ([]models.MeritProposal, error) {
	guidelines := make(map[int]models.Guideline, len(cycle.Guidelines))
	for _, g := range cycle.Guidelines {
		guidelines[g.Rating] = g
	}

	proposals := make([]models.MeritProposal, 0, len(reviews))
	for _, r := range reviews {
		g, ok := guidelines[r.Rating]
		if !ok {
			return nil, apperrors.Validationf("cycle %s has no guideline for rating %d", cycle.ID, r.Rating)
		}
		salary, ok := salaries[r.EmployeeID]
		if !ok {
			return nil, apperrors.NotFoundf("no salary on record for employee %s", r.EmployeeID)
		}

		// The bonus is a one-time payout: it never folds into the new salary.
		raise := salary.Mul(g.RaisePercent).Div(hundred).Round(2)
		bonus := salary.Mul(g.BonusPercent).Div(hundred).Round(2)
		proposals = append(proposals, models.MeritProposal{
			ID:            uuid.New().String(),
			SchemaVersion: 1,
			CycleID:       cycle.ID,
			EmployeeID:    r.EmployeeID,
			Rating:        r.Rating,
			CurrentSalary: salary,
			RaisePercent:  g.RaisePercent,
			RaiseAmount:   raise,
			BonusPercent:  g.BonusPercent,
			BonusAmount:   bonus,
			NewSalary:     salary.Add(raise),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return proposals, nil
}

// Reprice recomputes a proposal's amounts from a new raise percentage, used
// for manual adjustments before approval.
func Reprice(p *models.MeritProposal, raisePercent decimal.Decimal, now time.Time) {
	p.RaisePercent = raisePercent
	p.RaiseAmount = p.CurrentSalary.Mul(raisePercent).Div(hundred).Round(2)
	p.NewSalary = p.CurrentSalary.Add(p.RaiseAmount)
	p.UpdatedAt = now
}

// BudgetCheck is the outcome of reconciling allocated raises against the
// cycle's total budget.
type BudgetCheck struct {
	Allocated    decimal.Decimal `json:"allocated"`
	Budget       decimal.Decimal `json:"budget"`
	Variance     decimal.Decimal `json:"variance"`
	WithinBudget bool            `json:"within_budget"`
}

// CheckBudget sums the proposed raise amounts against the total budget.
// Variance is allocated minus budget: positive means the cycle is over and
// must not be approved. One-time bonuses are not counted against the raise
// budget.
func CheckBudget(proposals []models.MeritProposal, totalBudget decimal.Decimal) BudgetCheck {
	allocated := decimal.Zero
	for _, p := range proposals {
		allocated = allocated.Add(p.RaiseAmount)
	}
	return BudgetCheck{
		Allocated:    allocated,
		Budget:       totalBudget,
		Variance:     allocated.Sub(totalBudget),
		WithinBudget: allocated.LessThanOrEqual(totalBudget),
	}
}
