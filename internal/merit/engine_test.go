package merit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/apperrors"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testCycle(budget string) models.MeritCycle {
	return models.MeritCycle{
		ID:          "CY1",
		Name:        "FY26",
		TotalBudget: dec(budget),
		Status:      models.MeritCycleDraft,
		Guidelines: []models.Guideline{
			{Rating: 1, RaisePercent: dec("0"), BonusPercent: dec("0")},
			{Rating: 2, RaisePercent: dec("1"), BonusPercent: dec("0")},
			{Rating: 3, RaisePercent: dec("2.5"), BonusPercent: dec("1")},
			{Rating: 4, RaisePercent: dec("4"), BonusPercent: dec("2")},
			{Rating: 5, RaisePercent: dec("6"), BonusPercent: dec("4")},
		},
	}
}

func TestBuildProposals(t *testing.T) {
	cycle := testCycle("100000")
	reviews := []models.Review{
		{ID: "R1", CycleID: "CY1", EmployeeID: "E1", Rating: 4},
		{ID: "R2", CycleID: "CY1", EmployeeID: "E2", Rating: 3},
	}
	salaries := map[string]decimal.Decimal{
		"E1": dec("50000"),
		"E2": dec("80000"),
	}

	proposals, err := BuildProposals(cycle, reviews, salaries, time.Now())
	require.NoError(t, err)
	require.Len(t, proposals, 2)

	// 4% raise, 2% bonus on 50000
	assert.True(t, proposals[0].RaiseAmount.Equal(dec("2000")), "got %s", proposals[0].RaiseAmount)
	assert.True(t, proposals[0].BonusAmount.Equal(dec("1000")), "got %s", proposals[0].BonusAmount)
	assert.True(t, proposals[0].NewSalary.Equal(dec("52000")))
	// 2.5% raise, 1% bonus on 80000
	assert.True(t, proposals[1].RaiseAmount.Equal(dec("2000")))
	assert.True(t, proposals[1].BonusAmount.Equal(dec("800")))
	assert.True(t, proposals[1].NewSalary.Equal(dec("82000")))
}

func TestBuildProposals_BonusExcludedFromNewSalary(t *testing.T) {
	cycle := testCycle("100000")
	reviews := []models.Review{{EmployeeID: "E1", Rating: 5}}
	salaries := map[string]decimal.Decimal{"E1": dec("50000")}

	proposals, err := BuildProposals(cycle, reviews, salaries, time.Now())
	require.NoError(t, err)
	// 6% raise folds in, 4% bonus pays out once.
	assert.True(t, proposals[0].NewSalary.Equal(dec("53000")), "got %s", proposals[0].NewSalary)
	assert.True(t, proposals[0].BonusAmount.Equal(dec("2000")))
}

func TestBuildProposals_RoundsToCents(t *testing.T) {
	cycle := testCycle("100000")
	cycle.Guidelines = []models.Guideline{{Rating: 3, RaisePercent: dec("3.7")}}
	reviews := []models.Review{{EmployeeID: "E1", Rating: 3}}
	salaries := map[string]decimal.Decimal{"E1": dec("33333.33")}

	proposals, err := BuildProposals(cycle, reviews, salaries, time.Now())
	require.NoError(t, err)
	// 33333.33 * 3.7% = 1233.333... rounds to 1233.33
	assert.True(t, proposals[0].RaiseAmount.Equal(dec("1233.33")), "got %s", proposals[0].RaiseAmount)
	assert.True(t, proposals[0].NewSalary.Equal(dec("34566.66")))
}

func TestBuildProposals_MissingGuideline(t *testing.T) {
	cycle := testCycle("100000")
	cycle.Guidelines = cycle.Guidelines[:2]
	reviews := []models.Review{{EmployeeID: "E1", Rating: 5}}
	salaries := map[string]decimal.Decimal{"E1": dec("50000")}

	_, err := BuildProposals(cycle, reviews, salaries, time.Now())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestBuildProposals_MissingSalary(t *testing.T) {
	cycle := testCycle("100000")
	reviews := []models.Review{{EmployeeID: "ghost", Rating: 3}}

	_, err := BuildProposals(cycle, reviews, nil, time.Now())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestCheckBudget_OverBudgetReportsVariance(t *testing.T) {
	proposals := []models.MeritProposal{
		{RaiseAmount: dec("6000")},
		{RaiseAmount: dec("4500")},
	}

	check := CheckBudget(proposals, dec("10000"))
	assert.False(t, check.WithinBudget)
	assert.True(t, check.Allocated.Equal(dec("10500")))
	assert.True(t, check.Variance.Equal(dec("500")))
}

func TestCheckBudget_WithinBudget(t *testing.T) {
	// Bonuses are one-time payouts and never count against the raise budget.
	proposals := []models.MeritProposal{
		{RaiseAmount: dec("6000"), BonusAmount: dec("5000")},
		{RaiseAmount: dec("3800")},
	}

	check := CheckBudget(proposals, dec("10000"))
	assert.True(t, check.WithinBudget)
	assert.True(t, check.Allocated.Equal(dec("9800")))
	assert.True(t, check.Variance.Equal(dec("-200")))
}

func TestCheckBudget_ExactBudgetIsApprovable(t *testing.T) {
	proposals := []models.MeritProposal{{RaiseAmount: dec("10000")}}

	check := CheckBudget(proposals, dec("10000"))
	assert.True(t, check.WithinBudget)
	assert.True(t, check.Variance.IsZero())
}

func TestReprice(t *testing.T) {
	p := models.MeritProposal{
		CurrentSalary: dec("50000"),
		RaisePercent:  dec("4"),
		RaiseAmount:   dec("2000"),
		NewSalary:     dec("52000"),
	}

	Reprice(&p, dec("2"), time.Now())
	assert.True(t, p.RaiseAmount.Equal(dec("1000")))
	assert.True(t, p.NewSalary.Equal(dec("51000")))
	assert.True(t, p.RaisePercent.Equal(dec("2")))
}
