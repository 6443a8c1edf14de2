package merit

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/apperrors"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/events"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/middleware"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/models"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/statestore"
)

const (
	cycleKeyPrefix    = "merit-cycle:"
	proposalKeyPrefix = "merit-proposal:"
)

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(routingKey string, body []byte, correlationID string) error
}

// ReviewFetcher is the direct call to the performance service.
type ReviewFetcher interface {
	ReviewsForCycle(ctx context.Context, cycleID string) ([]models.Review, error)
}

// Handler exposes the merit cycle API.
type Handler struct {
	Store     *statestore.Client
	Publisher EventPublisher
	Reviews   ReviewFetcher
}

// NewHandler creates the merit Handler.
func NewHandler(store *statestore.Client, pub EventPublisher, reviews ReviewFetcher) *Handler {
	return &Handler{Store: store, Publisher: pub, Reviews: reviews}
}

// NewRouter creates and configures the Gin router for the merit service.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CorrelationID())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/cycles", h.CreateCycle)
	r.GET("/cycles/:id", h.GetCycle)
	r.POST("/cycles/:id/calculate", h.CalculateCycle)
	r.POST("/cycles/:id/approve", h.ApproveCycle)
	r.PUT("/proposals/:id", h.AdjustProposal)

	return r
}

// CreateCycle opens a merit cycle with its budget and guideline table.
func (h *Handler) CreateCycle(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	log.Printf("[Merit] CreateCycle correlation_id=%s", correlationID)

	var req models.CreateMeritCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	budget, err := decimal.NewFromString(req.TotalBudget)
	if err != nil || budget.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "total_budget must be a non-negative decimal"})
		return
	}

	guidelines := make([]models.Guideline, 0, len(req.Guidelines))
	seen := make(map[int]bool)
	for _, g := range req.Guidelines {
		if seen[g.Rating] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duplicate guideline rating"})
			return
		}
		seen[g.Rating] = true

		raise, err := decimal.NewFromString(g.RaisePercent)
		if err != nil || raise.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "raise_percent must be a non-negative decimal"})
			return
		}
		bonus := decimal.Zero
		if g.BonusPercent != "" {
			bonus, err = decimal.NewFromString(g.BonusPercent)
			if err != nil || bonus.IsNegative() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "bonus_percent must be a non-negative decimal"})
				return
			}
		}
		guidelines = append(guidelines, models.Guideline{Rating: g.Rating, RaisePercent: raise, BonusPercent: bonus})
	}

	now := time.Now()
	cycle := models.MeritCycle{
		ID:            uuid.New().String(),
		SchemaVersion: 1,
		Name:          req.Name,
		TotalBudget:   budget,
		Status:        models.MeritCycleDraft,
		Guidelines:    guidelines,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.Store.Save(c.Request.Context(), cycleKeyPrefix+cycle.ID, cycle); err != nil {
		respondError(c, err)
		return
	}

	log.Printf("[Merit] Cycle created: id=%s budget=%s correlation_id=%s", cycle.ID, budget, correlationID)
	c.JSON(http.StatusCreated, cycle)
}

// GetCycle returns the cycle, its proposals, and the current budget check.
func (h *Handler) GetCycle(c *gin.Context) {
	ctx := c.Request.Context()
	cycle, err := h.loadCycle(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	proposals, err := h.proposalsForCycle(ctx, cycle.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cycle":     cycle,
		"proposals": proposals,
		"budget":    CheckBudget(proposals, cycle.TotalBudget),
	})
}

// CalculateCycle fetches the cycle's reviews from the performance service,
// reads each rated employee's salary, and replaces the cycle's proposals with
// freshly computed ones.
func (h *Handler) CalculateCycle(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	cycleID := c.Param("id")
	log.Printf("[Merit] CalculateCycle id=%s correlation_id=%s", cycleID, correlationID)

	ctx := c.Request.Context()
	cycle, err := h.loadCycle(ctx, cycleID)
	if err != nil {
		respondError(c, err)
		return
	}
	if cycle.Status == models.MeritCycleApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "cycle is approved; proposals are immutable"})
		return
	}

	reviews, err := h.Reviews.ReviewsForCycle(ctx, cycleID)
	if err != nil {
		log.Printf("[Merit] Error fetching reviews: %v correlation_id=%s", err, correlationID)
		respondError(c, err)
		return
	}

	salaries := make(map[string]decimal.Decimal, len(reviews))
	for _, r := range reviews {
		if _, ok := salaries[r.EmployeeID]; ok {
			continue
		}
		var emp models.Employee
		found, err := h.Store.Get(ctx, "employee:"+r.EmployeeID, &emp)
		if err != nil {
			respondError(c, err)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "employee " + r.EmployeeID + " not found"})
			return
		}
		salaries[r.EmployeeID] = emp.Salary
	}

	proposals, err := BuildProposals(*cycle, reviews, salaries, time.Now())
	if err != nil {
		respondError(c, err)
		return
	}

	// Recalculation replaces any earlier proposals. Deletes and writes go in
	// one transaction so a reader never sees a mixed set.
	old, err := h.proposalsForCycle(ctx, cycle.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	cycle.Status = models.MeritCycleCalculated
	cycle.UpdatedAt = time.Now()
	ops := make([]statestore.Operation, 0, len(old)+len(proposals)+1)
	for _, p := range old {
		ops = append(ops, statestore.Operation{Key: proposalKeyPrefix + p.ID, Delete: true})
	}
	for _, p := range proposals {
		ops = append(ops, statestore.Operation{Key: proposalKeyPrefix + p.ID, Value: p})
	}
	ops = append(ops, statestore.Operation{Key: cycleKeyPrefix + cycle.ID, Value: cycle})
	if err := h.Store.ExecuteTransaction(ctx, ops); err != nil {
		respondError(c, err)
		return
	}

	check := CheckBudget(proposals, cycle.TotalBudget)
	log.Printf("[Merit] Cycle calculated: id=%s proposals=%d allocated=%s within_budget=%t correlation_id=%s",
		cycle.ID, len(proposals), check.Allocated, check.WithinBudget, correlationID)
	c.JSON(http.StatusOK, gin.H{
		"cycle":     cycle,
		"proposals": proposals,
		"budget":    check,
	})
}

// AdjustProposal overrides one proposal's raise percentage before approval
// and re-runs the aggregate budget check.
func (h *Handler) AdjustProposal(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	proposalID := c.Param("id")
	log.Printf("[Merit] AdjustProposal id=%s correlation_id=%s", proposalID, correlationID)

	var req models.AdjustProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	percent, err := decimal.NewFromString(req.RaisePercent)
	if err != nil || percent.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "raise_percent must be a non-negative decimal"})
		return
	}

	ctx := c.Request.Context()
	var proposal models.MeritProposal
	found, err := h.Store.Get(ctx, proposalKeyPrefix+proposalID, &proposal)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "proposal not found"})
		return
	}

	cycle, err := h.loadCycle(ctx, proposal.CycleID)
	if err != nil {
		respondError(c, err)
		return
	}
	if cycle.Status == models.MeritCycleApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "cycle is approved; proposals are immutable"})
		return
	}

	Reprice(&proposal, percent, time.Now())
	if err := h.Store.Save(ctx, proposalKeyPrefix+proposal.ID, proposal); err != nil {
		respondError(c, err)
		return
	}

	proposals, err := h.proposalsForCycle(ctx, cycle.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	check := CheckBudget(proposals, cycle.TotalBudget)
	log.Printf("[Merit] Proposal adjusted: id=%s raise_percent=%s within_budget=%t correlation_id=%s",
		proposal.ID, percent, check.WithinBudget, correlationID)
	c.JSON(http.StatusOK, gin.H{
		"proposal": proposal,
		"budget":   check,
	})
}

// ApproveCycle gates approval on the budget ceiling: an over-budget cycle is
// rejected with the variance so guidelines or budget can be adjusted.
func (h *Handler) ApproveCycle(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	cycleID := c.Param("id")
	log.Printf("[Merit] ApproveCycle id=%s correlation_id=%s", cycleID, correlationID)

	ctx := c.Request.Context()
	cycle, err := h.loadCycle(ctx, cycleID)
	if err != nil {
		respondError(c, err)
		return
	}
	if cycle.Status == models.MeritCycleApproved {
		c.JSON(http.StatusConflict, gin.H{"error": "cycle already approved"})
		return
	}

	proposals, err := h.proposalsForCycle(ctx, cycle.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	check := CheckBudget(proposals, cycle.TotalBudget)
	if !check.WithinBudget {
		log.Printf("[Merit] Approval rejected, over budget: id=%s variance=%s correlation_id=%s",
			cycle.ID, check.Variance, correlationID)
		c.JSON(http.StatusConflict, gin.H{
			"error":  "allocated raises exceed total budget",
			"budget": check,
		})
		return
	}

	cycle.Status = models.MeritCycleApproved
	cycle.UpdatedAt = time.Now()
	if err := h.Store.Save(ctx, cycleKeyPrefix+cycle.ID, cycle); err != nil {
		respondError(c, err)
		return
	}

	for _, p := range proposals {
		env, err := events.NewEnvelope(events.TypeMeritApplied, correlationID, events.MeritApplied{
			CycleID:    cycle.ID,
			EmployeeID: p.EmployeeID,
			NewSalary:  p.NewSalary.String(),
		})
		if err != nil {
			continue
		}
		body, _ := json.Marshal(env)
		if err := h.Publisher.Publish(string(events.TypeMeritApplied), body, correlationID); err != nil {
			log.Printf("[Merit] Error publishing merit.applied: %v correlation_id=%s", err, correlationID)
		}
	}

	log.Printf("[Merit] Cycle approved: id=%s allocated=%s correlation_id=%s",
		cycle.ID, check.Allocated, correlationID)
	c.JSON(http.StatusOK, gin.H{
		"cycle":  cycle,
		"budget": check,
	})
}

func (h *Handler) loadCycle(ctx context.Context, cycleID string) (*models.MeritCycle, error) {
	var cycle models.MeritCycle
	found, err := h.Store.Get(ctx, cycleKeyPrefix+cycleID, &cycle)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFoundf("merit cycle %s not found", cycleID)
	}
	return &cycle, nil
}

func (h *Handler) proposalsForCycle(ctx context.Context, cycleID string) ([]models.MeritProposal, error) {
	proposals, err := statestore.QueryAs[models.MeritProposal](ctx, h.Store, statestore.Filter{
		Prefix: proposalKeyPrefix,
		Fields: map[string]string{"cycle_id": cycleID},
	})
	if err != nil {
		return nil, err
	}
	if proposals == nil {
		proposals = []models.MeritProposal{}
	}
	return proposals, nil
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
}
