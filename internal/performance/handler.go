package performance

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/apperrors"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/events"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/middleware"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/models"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/statestore"
)

const reviewKeyPrefix = "review:"

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(routingKey string, body []byte, correlationID string) error
}

// Handler exposes the performance review API, including the "fetch all
// reviews for cycle" direct call the merit service depends on.
type Handler struct {
	Store     *statestore.Client
	Publisher EventPublisher
}

// NewHandler creates the performance Handler.
func NewHandler(store *statestore.Client, pub EventPublisher) *Handler {
	return &Handler{Store: store, Publisher: pub}
}

// NewRouter creates and configures the Gin router for the performance service.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CorrelationID())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/reviews", h.SubmitReview)
	r.GET("/cycles/:id/reviews", h.ListReviewsForCycle)

	return r
}

// SubmitReview records a review and publishes review.submitted. One review
// per employee per cycle; a second submission is a conflict.
func (h *Handler) SubmitReview(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	log.Printf("[Performance] SubmitReview correlation_id=%s", correlationID)

	var req models.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
		return
	}

	ctx := c.Request.Context()
	existing, err := statestore.QueryAs[models.Review](ctx, h.Store, statestore.Filter{
		Prefix: reviewKeyPrefix,
		Fields: map[string]string{"cycle_id": req.CycleID, "employee_id": req.EmployeeID},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if len(existing) > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "review already submitted for this employee and cycle"})
		return
	}

	review := models.Review{
		ID:            uuid.New().String(),
		SchemaVersion: 1,
		CycleID:       req.CycleID,
		EmployeeID:    req.EmployeeID,
		Rating:        req.Rating,
		Comments:      req.Comments,
		SubmittedAt:   time.Now(),
	}
	if err := h.Store.Save(ctx, reviewKeyPrefix+review.ID, review); err != nil {
		log.Printf("[Performance] Error saving review: %v correlation_id=%s", err, correlationID)
		respondError(c, err)
		return
	}

	env, err := events.NewEnvelope(events.TypeReviewSubmitted, correlationID, events.ReviewSubmitted{
		ReviewID:   review.ID,
		CycleID:    review.CycleID,
		EmployeeID: review.EmployeeID,
		Rating:     review.Rating,
	})
	if err == nil {
		body, _ := json.Marshal(env)
		if err := h.Publisher.Publish(string(events.TypeReviewSubmitted), body, correlationID); err != nil {
			log.Printf("[Performance] Error publishing event: %v correlation_id=%s", err, correlationID)
		}
	}

	log.Printf("[Performance] Review submitted: id=%s cycle=%s employee=%s rating=%d correlation_id=%s",
		review.ID, review.CycleID, review.EmployeeID, review.Rating, correlationID)
	c.JSON(http.StatusCreated, review)
}

// ListReviewsForCycle returns all reviews in a cycle. An empty cycle returns
// an empty list, not a 404.
func (h *Handler) ListReviewsForCycle(c *gin.Context) {
	reviews, err := statestore.QueryAs[models.Review](c.Request.Context(), h.Store, statestore.Filter{
		Prefix: reviewKeyPrefix,
		Fields: map[string]string{"cycle_id": c.Param("id")},
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	c.JSON(http.StatusOK, reviews)
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
}
