package onboarding

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/apperrors"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/cases"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/lifecycle"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/middleware"
)

// ExistenceChecker is the direct "does employee X exist" lookup used before
// manually opening a case. Implemented by the employee service client.
type ExistenceChecker interface {
	Exists(ctx context.Context, employeeID string) (bool, error)
}

// Handler exposes the onboarding case API.
type Handler struct {
	Service   *Service
	Employees ExistenceChecker
}

// NewHandler creates the onboarding Handler.
func NewHandler(svc *Service, employees ExistenceChecker) *Handler {
	return &Handler{Service: svc, Employees: employees}
}

// NewRouter creates and configures the Gin router for the onboarding service.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CorrelationID())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/cases", h.CreateCase)
	r.GET("/cases/:id", h.GetCase)
	r.PUT("/cases/:id/tasks/:taskId/status", h.UpdateTaskStatus)

	return r
}

// createCaseRequest is the body for manually opening a case.
type createCaseRequest struct {
	EmployeeID string `json:"employee_id" binding:"required"`
}

type updateTaskStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// caseResponse adds the derived completion percentage to the stored shape.
type caseResponse struct {
	cases.Case
	CompletionPercentage float64 `json:"completion_percentage"`
}

func toResponse(c *cases.Case) caseResponse {
	return caseResponse{Case: *c, CompletionPercentage: c.CompletionPercentage()}
}

// CreateCase manually opens a case, validating the employee exists through
// the direct lookup rather than waiting for the employee.created event.
func (h *Handler) CreateCase(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	log.Printf("[Onboarding] CreateCase correlation_id=%s", correlationID)

	var req createCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	exists, err := h.Employees.Exists(ctx, req.EmployeeID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	}

	cse, createdNow, err := h.Service.CreateCase(ctx, req.EmployeeID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !createdNow {
		c.JSON(http.StatusConflict, gin.H{
			"error":   "employee already has an onboarding case",
			"case_id": cse.ID,
		})
		return
	}
	c.JSON(http.StatusCreated, toResponse(cse))
}

// GetCase returns a case with its derived completion percentage.
func (h *Handler) GetCase(c *gin.Context) {
	cse, err := h.Service.GetCase(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(cse))
}

// UpdateTaskStatus transitions one task and persists the whole case.
func (h *Handler) UpdateTaskStatus(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)

	var req updateTaskStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cse, err := h.Service.TransitionTask(c.Request.Context(),
		c.Param("id"), c.Param("taskId"), lifecycle.TaskStatus(req.Status), correlationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(cse))
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
}
