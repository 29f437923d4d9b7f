/*
handlers_test.go - End-to-end tests for the action endpoint

Tests for:
- Response envelope shape on success and failure
- Role checks and login
- Payment recording through the API (201, 400, 409)
- Scenario loading and statement export
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/tuition-engine/auth"
	"github.com/warp/tuition-engine/billing"
	"github.com/warp/tuition-engine/reporting"
	"github.com/warp/tuition-engine/store/sqlstore"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var (
	testSecret = []byte("api-test-secret")
	testNow    = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)
)

type testAPI struct {
	h      *Handler
	router http.Handler
	admin  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store, err := sqlstore.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc := billing.NewService(store, nil, billing.DefaultOptions())
	svc.Now = func() time.Time { return testNow }
	h := NewHandler(Deps{
		Store:    store,
		Service:  svc,
		Reports:  reporting.New(store),
		Auth:     &auth.Authenticator{Users: store, Secret: testSecret, TTL: time.Hour},
		Currency: "PHP",
	})
	h.Now = func() time.Time { return testNow }

	admin, err := auth.IssueToken(auth.Identity{UserID: 1, Username: "admin", Role: auth.RoleAdmin}, testSecret, time.Hour, time.Now())
	require.NoError(t, err)

	return &testAPI{
		h:      h,
		router: NewRouter(h, auth.NewMiddleware(testSecret, false, h.DenyJSON)),
		admin:  admin,
	}
}

type response struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   string          `json:"message"`
	Timestamp string          `json:"timestamp"`
}

// post sends a JSON body to /api.
func (a *testAPI) post(t *testing.T, token string, body map[string]any) (*httptest.ResponseRecorder, response) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return a.do(t, req, token)
}

// get sends the params as a query string.
func (a *testAPI) get(t *testing.T, token string, params url.Values) (*httptest.ResponseRecorder, response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api?"+params.Encode(), nil)
	return a.do(t, req, token)
}

func (a *testAPI) do(t *testing.T, req *http.Request, token string) (*httptest.ResponseRecorder, response) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var env response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (a *testAPI) loadScenario(t *testing.T, id string) {
	t.Helper()
	rec, env := a.post(t, a.admin, map[string]any{"action": "load_scenario", "scenario_id": id})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
}

func (a *testAPI) login(t *testing.T, username, password string) LoginDTO {
	t.Helper()
	rec, env := a.post(t, "", map[string]any{"action": "login", "username": username, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	var out LoginDTO
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// =============================================================================
// ENVELOPE TESTS
// =============================================================================

func TestEnvelope_UnknownAction(t *testing.T) {
	// GIVEN: A request without a known action
	// WHEN: Posting it
	// THEN: 400 with an empty data array and a formatted timestamp

	a := newTestAPI(t)

	rec, env := a.post(t, "", map[string]any{"action": "drop_tables"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "No valid action provided", env.Message)
	assert.JSONEq(t, "[]", string(env.Data))
	assert.Equal(t, "2025-03-10 09:30:00", env.Timestamp)

	rec, env = a.get(t, "", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No valid action provided", env.Message)
}

func TestEnvelope_InvalidJSONBody(t *testing.T) {
	a := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader("{not json"))
	rec, env := a.do(t, req, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON body", env.Message)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

// =============================================================================
// AUTHENTICATION AND ROLE TESTS
// =============================================================================

func TestRoles(t *testing.T) {
	// GIVEN: The demo accounts of a loaded scenario
	// WHEN: Calling actions above and below each role
	// THEN: 401 without a token, 403 for a role that is too low

	a := newTestAPI(t)
	a.loadScenario(t, "new-semester")

	rec, env := a.get(t, "", url.Values{"action": {"get_dashboard_stats"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", env.Message)

	cashier := a.login(t, "cashier", "cashier123")
	assert.Equal(t, "cashier", cashier.Role)

	rec, env = a.get(t, cashier.Token, url.Values{"action": {"get_dashboard_stats"}})
	assert.Equal(t, http.StatusOK, rec.Code, env.Message)
	assert.True(t, env.Success)

	rec, env = a.post(t, cashier.Token, map[string]any{"action": "load_scenario", "scenario_id": "new-semester"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Insufficient permissions", env.Message)

	rec, _ = a.get(t, "garbage", url.Values{"action": {"get_dashboard_stats"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_BadPassword(t *testing.T) {
	a := newTestAPI(t)
	a.loadScenario(t, "new-semester")

	rec, env := a.post(t, "", map[string]any{"action": "login", "username": "admin", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)

	rec, env = a.post(t, "", map[string]any{"action": "login", "username": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "password is required", env.Message)
}

func TestStudentScope(t *testing.T) {
	// GIVEN: The student account linked to the first demo student
	// WHEN: Reading its own billing and another student's
	// THEN: Own data is returned; the other student is forbidden

	a := newTestAPI(t)
	a.loadScenario(t, "partial-payments")
	student := a.login(t, "student", "student123")
	require.NotZero(t, student.StudentID)

	rec, env := a.get(t, student.Token, url.Values{"action": {"get_student_billing"}})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	var sb StudentBillingDTO
	require.NoError(t, json.Unmarshal(env.Data, &sb))
	assert.Equal(t, "2025-00001", sb.Student.StudentNumber)
	assert.True(t, sb.HasPayments)
	assert.Zero(t, sb.Summary.TotalBalance, "first demo student paid in full")

	rec, _ = a.get(t, student.Token, url.Values{"action": {"get_student_billing"}, "student_id": {"2"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = a.get(t, student.Token, url.Values{"action": {"get_dashboard_stats"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// =============================================================================
// PAYMENT TESTS
// =============================================================================

func TestCreatePayment(t *testing.T) {
	// GIVEN: Fresh assessments with nothing paid
	// WHEN: Recording payments through the API
	// THEN: 201 with a receipt; overpayment is 400; a reused key is 409

	a := newTestAPI(t)
	a.loadScenario(t, "new-semester")
	cashier := a.login(t, "cashier", "cashier123")

	rec, env := a.post(t, cashier.Token, map[string]any{
		"action":          "create_payment",
		"assessment_id":   1,
		"amount_paid":     "1000.00",
		"payment_mode":    "GCash",
		"idempotency_key": "pay-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, env.Message)
	assert.Equal(t, "Payment recorded successfully", env.Message)

	var receipt PaymentReceiptDTO
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	assert.Equal(t, 1000.0, receipt.AmountPaid)
	assert.Equal(t, receipt.PreviousBalance-1000, receipt.NewBalance)
	assert.Equal(t, billing.StatusPartial, receipt.Status)
	assert.True(t, strings.HasPrefix(receipt.ORNumber, "RCP20250310"), receipt.ORNumber)
	assert.Equal(t, "pay-1", receipt.IdempotencyKey)

	rec, env = a.post(t, cashier.Token, map[string]any{
		"action":          "create_payment",
		"assessment_id":   1,
		"amount_paid":     500,
		"idempotency_key": "pay-1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Duplicate idempotency key", env.Message)

	rec, env = a.post(t, cashier.Token, map[string]any{
		"action":        "create_payment",
		"assessment_id": 1,
		"amount_paid":   receipt.NewBalance + 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	rec, env = a.post(t, cashier.Token, map[string]any{"action": "create_payment", "amount_paid": 100})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "assessment_id is required", env.Message)

	rec, _ = a.post(t, cashier.Token, map[string]any{"action": "create_payment", "assessment_id": 999, "amount_paid": 100})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = a.post(t, cashier.Token, map[string]any{"action": "create_payment", "assessment_id": 1, "amount_paid": "abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = a.post(t, cashier.Token, map[string]any{"action": "create_payment", "assessment_id": 1, "amount_paid": "0.004"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Payment amount must be greater than zero", env.Message)
}

func TestCreatePayment_IdempotencyHeader(t *testing.T) {
	a := newTestAPI(t)
	a.loadScenario(t, "new-semester")

	send := func() int {
		raw, _ := json.Marshal(map[string]any{"action": "create_payment", "assessment_id": 2, "amount_paid": 250})
		req := httptest.NewRequest(http.MethodPost, "/api.php", bytes.NewReader(raw))
		req.Header.Set("Idempotency-Key", "header-key")
		rec, _ := a.do(t, req, a.admin)
		return rec.Code
	}
	assert.Equal(t, http.StatusCreated, send())
	assert.Equal(t, http.StatusConflict, send())
}

func TestPaymentHistory_AfterPayment(t *testing.T) {
	a := newTestAPI(t)
	a.loadScenario(t, "partial-payments")

	rec, env := a.get(t, a.admin, url.Values{"action": {"get_payment_history"}, "student_id": {"1"}})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	var payments []PaymentDTO
	require.NoError(t, json.Unmarshal(env.Data, &payments))
	assert.Len(t, payments, 3)

	rec, env = a.get(t, a.admin, url.Values{"action": {"get_payment_history"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unrestricted callers name the student")
	assert.Equal(t, "Student ID required", env.Message)
}

// =============================================================================
// SCENARIO TESTS
// =============================================================================

func TestScenarios(t *testing.T) {
	a := newTestAPI(t)

	rec, env := a.post(t, a.admin, map[string]any{"action": "load_scenario", "scenario_id": "moon-landing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "Unknown scenario")

	a.loadScenario(t, "scholarship-discount")

	rec, env = a.get(t, a.admin, url.Values{"action": {"list_scenarios"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var list ScenarioList
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Scenarios, 4)
	assert.Equal(t, "scholarship-discount", list.Current)

	rec, env = a.get(t, a.admin, url.Values{"action": {"get_student_billing"}, "student_id": {"1"}})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	var sb StudentBillingDTO
	require.NoError(t, json.Unmarshal(env.Data, &sb))
	require.Len(t, sb.Billings, 1)
	assert.Equal(t, 6200.0, sb.Billings[0].TotalAssessment)
	assert.Equal(t, 4960.0, sb.Billings[0].NetAmount)
}

func TestScenario_ReloadResetsData(t *testing.T) {
	a := newTestAPI(t)
	a.loadScenario(t, "partial-payments")
	a.loadScenario(t, "new-semester")

	rec, env := a.get(t, a.admin, url.Values{"action": {"get_dashboard_stats"}})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.EqualValues(t, 0, stats["total_payments"])
}

func TestAssessPenalties_Idempotent(t *testing.T) {
	// GIVEN: The overdue scenario, which already ran penalties today
	// WHEN: Running them again for the same day
	// THEN: Nothing new is assessed

	a := newTestAPI(t)
	a.loadScenario(t, "overdue-penalties")

	rec, env := a.post(t, a.admin, map[string]any{"action": "assess_penalties"})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	var run PenaltyRunDTO
	require.NoError(t, json.Unmarshal(env.Data, &run))
	assert.Equal(t, "2025-03-10", run.AsOf)
	assert.Zero(t, run.Assessed)

	rec, _ = a.post(t, a.admin, map[string]any{"action": "assess_penalties", "as_of": "10/03/2025"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// EXPORT TESTS
// =============================================================================

func TestExportStatement(t *testing.T) {
	a := newTestAPI(t)
	a.loadScenario(t, "partial-payments")
	student := a.login(t, "student", "student123")

	rec, _ := a.get(t, student.Token, url.Values{"action": {"export_account_statement"}, "format": {"xlsx"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="statement-2025-00001.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.NotEmpty(t, rec.Body.Bytes())

	rec, _ = a.get(t, student.Token, url.Values{"action": {"export_account_statement"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec, env := a.get(t, student.Token, url.Values{"action": {"export_account_statement"}, "format": {"docx"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "format")
}

// =============================================================================
// PARAM DECODING TESTS
// =============================================================================

func TestDecodeParams(t *testing.T) {
	values, err := readValues(httptest.NewRequest(http.MethodPost, "/api?action=create_payment&assessment_id=7",
		strings.NewReader(`{"amount_paid": 1500.5, "assessment_id": "8", "received_by": null}`)))
	require.NoError(t, err)

	var p paymentParams
	require.NoError(t, decodeParams(values, &p))
	assert.Equal(t, int64(8), p.AssessmentID, "body wins over query")
	assert.Equal(t, "1500.5", p.AmountPaid.String())
	assert.Zero(t, p.ReceivedBy)

	values, err = readValues(httptest.NewRequest(http.MethodGet, "/api?limit=ten", strings.NewReader(`{"limit": 5}`)))
	require.NoError(t, err)
	var h historyParams
	assert.ErrorIs(t, decodeParams(values, &h), billing.ErrValidation, "GET ignores the body")
}

func TestClassify(t *testing.T) {
	h := NewHandler(Deps{})
	status, msg := h.classify(context.DeadlineExceeded)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal server error", msg)

	status, _ = h.classify(billing.ErrDuplicateReference)
	assert.Equal(t, http.StatusConflict, status)

	h = NewHandler(Deps{Debug: true})
	_, msg = h.classify(context.DeadlineExceeded)
	assert.Equal(t, context.DeadlineExceeded.Error(), msg)
}
