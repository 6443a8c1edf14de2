package offboarding

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/apperrors"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/cases"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/lifecycle"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/middleware"
)

// Handler exposes the offboarding case API.
type Handler struct {
	Service *Service
}

// NewHandler creates the offboarding Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

// NewRouter creates and configures the Gin router for the offboarding service.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CorrelationID())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.GET("/cases/:id", h.GetCase)
	r.PUT("/cases/:id/tasks/:taskId/status", h.UpdateTaskStatus)

	return r
}

type updateTaskStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type caseResponse struct {
	cases.Case
	CompletionPercentage float64 `json:"completion_percentage"`
}

func toResponse(c *cases.Case) caseResponse {
	return caseResponse{Case: *c, CompletionPercentage: c.CompletionPercentage()}
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
