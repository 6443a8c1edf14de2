package merit

import (
	"bytes"
	"context"
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
	published []publishedMsg
	err       error
}

type publishedMsg struct {
	RoutingKey string
	Body       []byte
}

func (m *mockPublisher) Publish(routingKey string, body []byte, correlationID string) error {
	m.published = append(m.published, publishedMsg{RoutingKey: routingKey, Body: body})
	return m.err
}

type stubReviews struct {
	reviews []models.Review
	err     error
}

func (s *stubReviews) ReviewsForCycle(_ context.Context, _ string) ([]models.Review, error) {
	return s.reviews, s.err
}

func newTestRouter(t *testing.T, reviews *stubReviews) (*gin.Engine, sqlmock.Sqlmock, *mockPublisher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := statestore.New(db)
	store.BackoffBase = 0
	pub := &mockPublisher{}
	return NewRouter(NewHandler(store, pub, reviews)), mock, pub
}

func storedCycle(budget string, status models.MeritCycleStatus) models.MeritCycle {
	cycle := testCycle(budget)
	cycle.Status = status
	cycle.CreatedAt = time.Now()
	cycle.UpdatedAt = time.Now()
	return cycle
}

func storedProposal(id, employeeID, raise string) models.MeritProposal {
	return models.MeritProposal{
		ID:            id,
		SchemaVersion: 1,
		CycleID:       "CY1",
		EmployeeID:    employeeID,
		Rating:        4,
		CurrentSalary: dec("50000"),
		RaisePercent:  dec("4"),
		RaiseAmount:   dec(raise),
		NewSalary:     dec("50000").Add(dec(raise)),
	}
}

func expectProposalQuery(mock sqlmock.Sqlmock, proposals ...models.MeritProposal) {
	rows := sqlmock.NewRows([]string{"doc"})
	for _, p := range proposals {
		doc, _ := json.Marshal(p)
		rows.AddRow(doc)
	}
	mock.ExpectQuery("SELECT doc FROM records WHERE key LIKE").
		WithArgs("merit-proposal:%", "cycle_id", "CY1").
		WillReturnRows(rows)
}

func TestApproveCycle_OverBudgetRejected(t *testing.T) {
	router, mock, pub := newTestRouter(t, &stubReviews{})

	doc, _ := json.Marshal(storedCycle("10000", models.MeritCycleCalculated))
	mock.ExpectQuery("SELECT doc FROM records").
		WithArgs("merit-cycle:CY1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(doc))
	expectProposalQuery(mock,
		storedProposal("P1", "E1", "6000"),
		storedProposal("P2", "E2", "4500"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/cycles/CY1/approve", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Budget BudgetCheck `json:"budget"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !resp.Budget.Variance.Equal(dec("500")) {
		t.Errorf("expected variance 500, got %s", resp.Budget.Variance)
	}
	if len(pub.published) != 0 {
		t.Errorf("expected no events for rejected approval, got %d", len(pub.published))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestApproveCycle_WithinBudgetPublishesPerProposal(t *testing.T) {
	router, mock, pub := newTestRouter(t, &stubReviews{})

	doc, _ := json.Marshal(storedCycle("10000", models.MeritCycleCalculated))
	mock.ExpectQuery("SELECT doc FROM records").
		WithArgs("merit-cycle:CY1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(doc))
	expectProposalQuery(mock,
		storedProposal("P1", "E1", "6000"),
		storedProposal("P2", "E2", "3800"))
	mock.ExpectExec("INSERT INTO records").
		WithArgs("merit-cycle:CY1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/cycles/CY1/approve", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	if len(pub.published) != 2 {
		t.Fatalf("expected merit.applied per proposal, got %d events", len(pub.published))
	}
	for _, msg := range pub.published {
		if msg.RoutingKey != string(events.TypeMeritApplied) {
			t.Errorf("expected routing key merit.applied, got %s", msg.RoutingKey)
		}
	}
	var env events.Envelope
	if err := json.Unmarshal(pub.published[0].Body, &env); err != nil {
		t.Fatalf("published body should be an envelope: %v", err)
	}
	payload, err := env.Decode()
	if err != nil {
		t.Fatalf("envelope should decode: %v", err)
	}
	if payload.(events.MeritApplied).NewSalary != "56000" {
		t.Errorf("expected new salary 56000, got %s", payload.(events.MeritApplied).NewSalary)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestCalculateCycle_ReplacesProposalsInOneTransaction(t *testing.T) {
	reviews := &stubReviews{reviews: []models.Review{
		{ID: "R1", CycleID: "CY1", EmployeeID: "E1", Rating: 4},
	}}
	router, mock, _ := newTestRouter(t, reviews)

	cdoc, _ := json.Marshal(storedCycle("10000", models.MeritCycleCalculated))
	mock.ExpectQuery("SELECT doc FROM records").
		WithArgs("merit-cycle:CY1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(cdoc))
	edoc, _ := json.Marshal(models.Employee{ID: "E1", Salary: dec("50000")})
	mock.ExpectQuery("SELECT doc FROM records").
		WithArgs("employee:E1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(edoc))
	expectProposalQuery(mock, storedProposal("P0", "E1", "9999"))

	// Stale proposal removal, the fresh set, and the cycle land atomically.
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM records").
		WithArgs("merit-proposal:P0").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO records").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO records").
		WithArgs("merit-cycle:CY1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/cycles/CY1/calculate", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Proposals []models.MeritProposal `json:"proposals"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Proposals) != 1 || !resp.Proposals[0].RaiseAmount.Equal(dec("2000")) {
		t.Errorf("expected one recomputed proposal with raise 2000, got %+v", resp.Proposals)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestApproveCycle_AlreadyApproved(t *testing.T) {
	router, mock, _ := newTestRouter(t, &stubReviews{})

	doc, _ := json.Marshal(storedCycle("10000", models.MeritCycleApproved))
	mock.ExpectQuery("SELECT doc FROM records").
		WithArgs("merit-cycle:CY1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(doc))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/cycles/CY1/approve", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAdjustProposal_ApprovedCycleIsImmutable(t *testing.T) {
	router, mock, _ := newTestRouter(t, &stubReviews{})

	pdoc, _ := json.Marshal(storedProposal("P1", "E1", "2000"))
	mock.ExpectQuery("SELECT doc FROM records").
		WithArgs("merit-proposal:P1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(pdoc))
	cdoc, _ := json.Marshal(storedCycle("10000", models.MeritCycleApproved))
	mock.ExpectQuery("SELECT doc FROM records").
		WithArgs("merit-cycle:CY1").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).AddRow(cdoc))

	body := `{"raise_percent":"2"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPut, "/proposals/P1", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestCreateCycle_NegativeBudgetRejected(t *testing.T) {
	router, _, _ := newTestRouter(t, &stubReviews{})

	body := `{"name":"FY26","total_budget":"-100","guidelines":[{"rating":3,"raise_percent":"2"}]}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/cycles", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}
