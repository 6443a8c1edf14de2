package employee

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/apperrors"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/events"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/lifecycle"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/middleware"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/models"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/statestore"
)

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(routingKey string, body []byte, correlationID string) error
}

// Handler handles employee record HTTP requests.
type Handler struct {
	Store     *statestore.Client
	Publisher EventPublisher
}

// NewHandler creates a new employee Handler.
func NewHandler(store *statestore.Client, pub EventPublisher) *Handler {
	return &Handler{Store: store, Publisher: pub}
}

// NewRouter creates and configures the Gin router for the employee service.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CorrelationID())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.POST("/employees", h.CreateEmployee)
	r.GET("/employees/:id", h.GetEmployee)
	r.PUT("/employees/:id", h.UpdateEmployee)
	r.POST("/employees/:id/terminate", h.TerminateEmployee)

	return r
}

// CreateEmployee creates an employee record, mints its employee number from
// the per-year sequence counter, writes the record and its email index in one
// transaction, and publishes employee.created.
func (h *Handler) CreateEmployee(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	log.Printf("[Employee] CreateEmployee correlation_id=%s", correlationID)

	var req models.CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	salary, err := decimal.NewFromString(req.Salary)
	if err != nil || salary.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "salary must be a non-negative decimal"})
		return
	}
	hireDate, err := time.Parse("2006-01-02", req.HireDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hire_date must be YYYY-MM-DD"})
		return
	}

	ctx := c.Request.Context()

	// Duplicate natural key check against the email index. The index entry
	// survives termination, so a terminated employee's email stays blocked.
	taken, err := h.Store.Get(ctx, "email-index:"+req.Email, nil)
	if err != nil {
		log.Printf("[Employee] Error checking email index: %v correlation_id=%s", err, correlationID)
		respondError(c, err)
		return
	}
	if taken {
		c.JSON(http.StatusConflict, gin.H{"error": "email already in use"})
		return
	}

	seq, err := h.Store.IncrementCounter(ctx, fmt.Sprintf("seq:employee-number:%d", hireDate.Year()))
	if err != nil {
		log.Printf("[Employee] Error minting employee number: %v correlation_id=%s", err, correlationID)
		respondError(c, err)
		return
	}

	now := time.Now()
	emp := models.Employee{
		ID:             uuid.New().String(),
		SchemaVersion:  1,
		EmployeeNumber: fmt.Sprintf("EMP-%d-%04d", hireDate.Year(), seq),
		Email:          req.Email,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		DepartmentID:   req.DepartmentID,
		Salary:         salary,
		Status:         lifecycle.EmployeePending,
		HireDate:       hireDate,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Record and index must appear together: a reader must never observe one
	// without the other.
	err = h.Store.ExecuteTransaction(ctx, []statestore.Operation{
		{Key: "employee:" + emp.ID, Value: emp},
		{Key: "email-index:" + emp.Email, Value: models.EmailIndex{
			Email:      emp.Email,
			EmployeeID: emp.ID,
			CreatedAt:  now,
		}},
	})
	if err != nil {
		log.Printf("[Employee] Error creating employee: %v correlation_id=%s", err, correlationID)
		respondError(c, err)
		return
	}

	h.publishEvent(events.TypeEmployeeCreated, correlationID, events.EmployeeCreated{
		EmployeeID:   emp.ID,
		Email:        emp.Email,
		DepartmentID: emp.DepartmentID,
		HireDate:     emp.HireDate,
	})

	log.Printf("[Employee] Employee created: id=%s number=%s correlation_id=%s",
		emp.ID, emp.EmployeeNumber, correlationID)
	c.JSON(http.StatusCreated, emp)
}

// GetEmployee returns a single employee record.
func (h *Handler) GetEmployee(c *gin.Context) {
	var emp models.Employee
	found, err := h.Store.Get(c.Request.Context(), "employee:"+c.Param("id"), &emp)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	}
	c.JSON(http.StatusOK, emp)
}

// UpdateEmployee applies field edits. Terminated records are frozen:
// terminated is absorbing and edits are rejected.
func (h *Handler) UpdateEmployee(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	employeeID := c.Param("id")
	log.Printf("[Employee] UpdateEmployee id=%s correlation_id=%s", employeeID, correlationID)

	var req models.UpdateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	var emp models.Employee
	found, err := h.Store.Get(ctx, "employee:"+employeeID, &emp)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	}
	if emp.Status == lifecycle.EmployeeTerminated {
		c.JSON(http.StatusConflict, gin.H{"error": "terminated employee records cannot be edited"})
		return
	}

	if req.FirstName != "" {
		emp.FirstName = req.FirstName
	}
	if req.LastName != "" {
		emp.LastName = req.LastName
	}
	if req.DepartmentID != "" {
		emp.DepartmentID = req.DepartmentID
	}
	if req.Salary != "" {
		salary, err := decimal.NewFromString(req.Salary)
		if err != nil || salary.IsNegative() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "salary must be a non-negative decimal"})
			return
		}
		emp.Salary = salary
	}
	emp.UpdatedAt = time.Now()

	if err := h.Store.Save(ctx, "employee:"+emp.ID, emp); err != nil {
		log.Printf("[Employee] Error updating employee: %v correlation_id=%s", err, correlationID)
		respondError(c, err)
		return
	}

	log.Printf("[Employee] Employee updated: id=%s correlation_id=%s", emp.ID, correlationID)
	c.JSON(http.StatusOK, emp)
}

// TerminateEmployee requests termination. The status does not change here:
// the employee only becomes Terminated when the offboarding case completes.
func (h *Handler) TerminateEmployee(c *gin.Context) {
	correlationID := middleware.GetCorrelationID(c)
	employeeID := c.Param("id")
	log.Printf("[Employee] TerminateEmployee id=%s correlation_id=%s", employeeID, correlationID)

	ctx := c.Request.Context()
	var emp models.Employee
	found, err := h.Store.Get(ctx, "employee:"+employeeID, &emp)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	}
	if err := lifecycle.CheckEmployeeTransition(emp.Status, lifecycle.EmployeeTerminated); err != nil {
		respondError(c, err)
		return
	}

	h.publishEvent(events.TypeTerminationRequested, correlationID, events.TerminationRequested{
		EmployeeID: emp.ID,
	})

	log.Printf("[Employee] Termination requested: id=%s correlation_id=%s", emp.ID, correlationID)
	c.JSON(http.StatusAccepted, gin.H{"status": "termination requested", "employee_id": emp.ID})
}

func (h *Handler) publishEvent(t events.Type, correlationID string, payload any) {
	env, err := events.NewEnvelope(t, correlationID, payload)
	if err != nil {
		log.Printf("[Employee] Error building event %s: %v correlation_id=%s", t, err, correlationID)
		return
	}
	body, _ := json.Marshal(env)
	if err := h.Publisher.Publish(string(t), body, correlationID); err != nil {
		log.Printf("[Employee] Error publishing event %s: %v correlation_id=%s", t, err, correlationID)
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
}
