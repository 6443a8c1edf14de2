package performance

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/events"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/models"
	"github.com/PennStateLefty/services-firm-simulator-sub000/pkg/statestore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockPublisher struct {
	published []string
	err       error
}

func (m *mockPublisher) Publish(routingKey string, body []byte, correlationID string) error {
	m.published = append(m.published, routingKey)
	return m.err
}

func newTestRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock, *mockPublisher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := statestore.New(db)
	store.BackoffBase = 0
	pub := &mockPublisher{}
	return NewRouter(NewHandler(store, pub)), mock, pub
}

func TestSubmitReview_Success(t *testing.T) {
	router, mock, pub := newTestRouter(t)

	mock.ExpectQuery("SELECT doc FROM records WHERE key LIKE").
		WithArgs("review:%", "cycle_id", "CY1", "employee_id", "E1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))
	mock.ExpectExec("INSERT INTO records").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"cycle_id":"CY1","employee_id":"E1","rating":4,"comments":"solid year"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/reviews", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var review models.Review
	if err := json.Unmarshal(w.Body.Bytes(), &review); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if review.Rating != 4 {
		t.Errorf("expected rating 4, got %d", review.Rating)
	}
	if len(pub.published) != 1 || pub.published[0] != string(events.TypeReviewSubmitted) {
		t.Errorf("expected review.submitted to be published, got %v", pub.published)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestSubmitReview_DuplicatePerCycle(t *testing.T) {
	router, mock, pub := newTestRouter(t)

	existing, _ := json.Marshal(models.Review{
		ID: "R1", CycleID: "CY1", EmployeeID: "E1", Rating: 3, SubmittedAt: time.Now(),
	})
	mock.ExpectQuery("SELECT doc FROM records WHERE key LIKE").
		WithArgs("review:%", "cycle_id", "CY1", "employee_id", "E1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(existing))

	body := `{"cycle_id":"CY1","employee_id":"E1","rating":5}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/reviews", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", w.Code, w.Body.String())
	}
	if len(pub.published) != 0 {
		t.Errorf("expected no events for rejected review, got %v", pub.published)
	}
}

func TestSubmitReview_RatingOutOfRange(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body := `{"cycle_id":"CY1","employee_id":"E1","rating":6}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/reviews", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListReviewsForCycle_EmptyCycleReturnsEmptyList(t *testing.T) {
	router, mock, _ := newTestRouter(t)

	mock.ExpectQuery("SELECT doc FROM records WHERE key LIKE").
		WithArgs("review:%", "cycle_id", "CY9").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/cycles/CY9/reviews", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var reviews []models.Review
	if err := json.Unmarshal(w.Body.Bytes(), &reviews); err != nil {
		t.Fatalf("expected a JSON array, got %s: %v", w.Body.String(), err)
	}
	if len(reviews) != 0 {
		t.Errorf("expected empty list, got %d reviews", len(reviews))
	}
}
