package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"school_ledger/internal/api"
	"school_ledger/internal/config"
	"school_ledger/internal/domain"
	"school_ledger/internal/ledger"
	"school_ledger/internal/testutil"
)

const secret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// envelope is the common response shape
type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Cached     *bool           `json:"cached"`
	Total      int64           `json:"total"`
	TotalPages int             `json:"total_pages"`
}

type server struct {
	t      *testing.T
	engine *gin.Engine
	db     *gorm.DB
}

func newServer(t *testing.T, rdb *redis.Client) *server {
	t.Helper()
	gdb := testutil.NewDB(t)
	cfg := &config.Config{JWTSecret: secret, BaseCurrency: "KES", CacheTTL: time.Minute}
	lg := ledger.New(gdb, cfg.BaseCurrency)
	return &server{t: t, engine: api.NewRouter(cfg, gdb, lg, rdb), db: gdb}
}

func (s *server) do(method, path, token string, body any) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (s *server) login(username, password string) string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, code, env.Message)
	var auth api.AuthResponse
	require.NoError(s.t, json.Unmarshal(env.Data, &auth))
	return auth.Token
}

// bootstrap registers an admin and returns its token
func (s *server) bootstrap() string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "admin", "password": "password123"})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	return s.login("admin", "password123")
}

// addUser registers a user with role and returns its token
func (s *server) addUser(adminToken, username, role string) string {
	s.t.Helper()
	code, env := s.do(http.MethodPost, "/api/auth/register", adminToken, gin.H{"username": username, "password": "password123", "role": role})
	require.Equal(s.t, http.StatusCreated, code, env.Message)
	return s.login(username, "password123")
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Equal(t, testutil.Dec(want).StringFixed(2), got.StringFixed(2))
}

func TestRegister_FirstUserBecomesAdmin(t *testing.T) {
	s := newServer(t, nil)

	code, env := s.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "Alice", "password": "password123", "role": "viewer"})
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, env.Success)
	user := decode[map[string]any](t, env.Data)
	assert.Equal(t, "admin", user["role"])
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, user, "password")

	code, env = s.do(http.MethodPost, "/api/auth/register", "", gin.H{"username": "bob", "password": "password123"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.False(t, env.Success)

	token := s.login("alice", "password123")
	code, env = s.do(http.MethodPost, "/api/auth/register", token, gin.H{"username": "bob", "password": "password123", "role": "bursar"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	assert.Equal(t, "bursar", decode[map[string]any](t, env.Data)["role"])

	code, _ = s.do(http.MethodPost, "/api/auth/register", token, gin.H{"username": "BOB", "password": "password123"})
	assert.Equal(t, http.StatusConflict, code)

	code, env = s.do(http.MethodPost, "/api/auth/register", token, gin.H{"username": "carol", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, env.Message)
}

func TestRegister_ConcurrentBootstrapCreatesOneAdmin(t *testing.T) {
	s := newServer(t, nil)

	const n = 5
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, _ := json.Marshal(gin.H{"username": "user" + strconv.Itoa(i), "password": "password123"})
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.engine.ServeHTTP(w, req)
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusForbidden, code)
		}
	}
	assert.Equal(t, 1, created)
	var admins int64
	require.NoError(t, s.db.Model(&domain.User{}).Where("role = ?", domain.RoleAdmin).Count(&admins).Error)
	assert.EqualValues(t, 1, admins)
}

func TestLogin(t *testing.T) {
	s := newServer(t, nil)
	s.bootstrap()

	code, env := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "admin", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid credentials", env.Message)

	code, env = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "nobody", "password": "password123"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid credentials", env.Message)

	code, env = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"username": "ADMIN", "password": "password123"})
	require.Equal(t, http.StatusOK, code)
	auth := decode[api.AuthResponse](t, env.Data)
	assert.NotEmpty(t, auth.Token)
	assert.Equal(t, "admin", auth.Role)
	assert.Equal(t, 86400, auth.ExpiresIn)
}

func TestRoles(t *testing.T) {
	s := newServer(t, nil)
	admin := s.bootstrap()
	viewer := s.addUser(admin, "viewer", "viewer")
	bursar := s.addUser(admin, "bursar", "bursar")

	code, _ := s.do(http.MethodGet, "/api/students", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/api/students", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodGet, "/api/students", viewer, nil)
	assert.Equal(t, http.StatusOK, code)

	student := gin.H{"admission_no": "A001", "first_name": "Jane", "last_name": "Doe"}
	code, env := s.do(http.MethodPost, "/api/students", viewer, student)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Insufficient permissions", env.Message)

	code, _ = s.do(http.MethodPost, "/api/students", bursar, student)
	assert.Equal(t, http.StatusCreated, code)

	code, _ = s.do(http.MethodGet, "/api/admin/users", bursar, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodGet, "/api/admin/users", admin, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 3, env.Total)

	// Promotion takes effect on the next request without a new token
	var users []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &users))
	var viewerID float64
	for _, u := range users {
		if u["username"] == "viewer" {
			viewerID = u["id"].(float64)
		}
	}
	require.NotZero(t, viewerID)
	code, _ = s.do(http.MethodPut, "/api/admin/users/"+itoa(viewerID)+"/role", admin, gin.H{"role": "bursar"})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodPost, "/api/students", viewer, gin.H{"admission_no": "A002", "first_name": "John", "last_name": "Doe"})
	assert.Equal(t, http.StatusCreated, code)

	code, env = s.do(http.MethodPut, "/api/admin/users/1/role", admin, gin.H{"role": "viewer"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "Cannot demote the last admin", env.Message)
}

func itoa(f float64) string {
	return strconv.Itoa(int(f))
}

func TestStudentCRUD(t *testing.T) {
	s := newServer(t, nil)
	admin := s.bootstrap()

	code, env := s.do(http.MethodPost, "/api/classes", admin, gin.H{"class_name": "Form 1", "term": 1, "year": 2025})
	require.Equal(t, http.StatusCreated, code, env.Message)
	class := decode[map[string]any](t, env.Data)

	code, env = s.do(http.MethodPost, "/api/students", admin, gin.H{
		"admission_no":       "A001",
		"first_name":         "Jane",
		"last_name":          "Doe",
		"class_term_year_id": class["id"],
		"opening_balance":    "2500",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)
	created := decode[struct {
		ID      uint            `json:"id"`
		Balance decimal.Decimal `json:"balance"`
	}](t, env.Data)
	assertMoney(t, "-2500", created.Balance)
	path := "/api/students/" + itoa(float64(created.ID))

	code, _ = s.do(http.MethodPost, "/api/students", admin, gin.H{"admission_no": "A001", "first_name": "Other", "last_name": "Kid"})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(http.MethodPost, "/api/students", admin, gin.H{"admission_no": "A002", "first_name": "Other", "last_name": "Kid", "class_term_year_id": 99})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodPost, "/api/students", admin, gin.H{"admission_no": "A003", "first_name": "Other", "last_name": "Kid", "opening_balance": "-5"})
	assert.Equal(t, http.StatusBadRequest, code)

	// A rejected opening balance leaves no student behind, so a retry succeeds
	code, env = s.do(http.MethodPost, "/api/students", admin, gin.H{"admission_no": "A004", "first_name": "Other", "last_name": "Kid", "opening_balance": "0.001"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "amount must be greater than zero", env.Message)
	var persisted int64
	require.NoError(t, s.db.Model(&domain.Student{}).Where("admission_no = ?", "A004").Count(&persisted).Error)
	assert.Zero(t, persisted)
	code, env = s.do(http.MethodPost, "/api/students", admin, gin.H{"admission_no": "A004", "first_name": "Other", "last_name": "Kid", "opening_balance": "10"})
	require.Equal(t, http.StatusCreated, code, env.Message)

	// Admission numbers are compared after trimming
	code, env = s.do(http.MethodPost, "/api/students", admin, gin.H{"admission_no": " A001 ", "first_name": "Other", "last_name": "Kid"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Admission number already in use", env.Message)

	code, _ = s.do(http.MethodPost, "/api/students", admin, gin.H{"admission_no": "   ", "first_name": "Other", "last_name": "Kid"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodGet, path, admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Jane", decode[map[string]any](t, env.Data)["first_name"])

	code, _ = s.do(http.MethodGet, "/api/students/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(http.MethodGet, "/api/students/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodPut, path, admin, gin.H{"first_name": "Janet", "active": false})
	require.Equal(t, http.StatusOK, code, env.Message)
	updated := decode[map[string]any](t, env.Data)
	assert.Equal(t, "Janet", updated["first_name"])
	assert.Equal(t, false, updated["active"])

	code, env = s.do(http.MethodGet, "/api/students?q=jan&active=false", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, env.Total)
	assert.Equal(t, 1, env.TotalPages)

	code, env = s.do(http.MethodGet, "/api/students/balances/opening", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, env.Total) // A001 and A004
}

func TestPaymentFlow(t *testing.T) {
	s := newServer(t, nil)
	admin := s.bootstrap()
	bursar := s.addUser(admin, "bursar", "bursar")
	st := testutil.CreateStudent(t, s.db, "A001", "Jane", "Doe", nil)

	code, env := s.do(http.MethodPost, "/api/fees/assignments", bursar, gin.H{
		"student_id":  st.ID,
		"description": "Term 1 tuition",
		"amount":      "1000",
		"due_date":    "2025-02-01",
	})
	require.Equal(t, http.StatusCreated, code, env.Message)

	code, env = s.do(http.MethodPost, "/api/fees/payments", bursar, gin.H{"student_id": st.ID, "amount": "1500", "method": "cash"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "outstanding")

	code, _ = s.do(http.MethodPost, "/api/fees/payments", bursar, gin.H{"student_id": st.ID, "amount": "100", "method": "bitcoin"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/api/fees/payments", bursar, gin.H{"student_id": st.ID, "amount": "100", "method": "cash", "currency": "US"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/api/fees/payments", bursar, gin.H{"student_id": st.ID, "amount": "-1", "method": "cash"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/api/fees/payments", bursar, gin.H{"student_id": 999, "amount": "100", "method": "cash"})
	assert.Equal(t, http.StatusNotFound, code)

	code, env = s.do(http.MethodPost, "/api/fees/payments", bursar, gin.H{"student_id": st.ID, "amount": "600", "method": "mobile", "reference": "MPESA123"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	payment := decode[struct {
		ID         uint            `json:"id"`
		ReceiptNo  string          `json:"receipt_no"`
		BaseAmount decimal.Decimal `json:"base_amount"`
	}](t, env.Data)
	assertMoney(t, "600", payment.BaseAmount)
	assert.NotEmpty(t, payment.ReceiptNo)
	paymentPath := "/api/fees/payments/" + itoa(float64(payment.ID))

	code, env = s.do(http.MethodGet, "/api/students/"+itoa(float64(st.ID))+"/balance", bursar, nil)
	require.Equal(t, http.StatusOK, code)
	assertMoney(t, "-400", decode[ledger.BalanceSummary](t, env.Data).Balance)

	code, env = s.do(http.MethodGet, paymentPath+"/receipt", bursar, nil)
	require.Equal(t, http.StatusOK, code, env.Message)
	receipt := decode[struct {
		Payment struct {
			ReceiptNo string `json:"receipt_no"`
		} `json:"payment"`
		AmountInWords string `json:"amount_in_words"`
	}](t, env.Data)
	assert.Equal(t, payment.ReceiptNo, receipt.Payment.ReceiptNo)
	assert.Equal(t, "six hundred and 00/100 KES", receipt.AmountInWords)

	code, _ = s.do(http.MethodPost, paymentPath+"/reverse", bursar, gin.H{"reason": "Bounced"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodPost, paymentPath+"/reverse", admin, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodPost, paymentPath+"/reverse", admin, gin.H{"reason": "Bounced"})
	require.Equal(t, http.StatusOK, code, env.Message)

	code, env = s.do(http.MethodPost, paymentPath+"/reverse", admin, gin.H{"reason": "Bounced"})
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)

	code, env = s.do(http.MethodGet, "/api/students/"+itoa(float64(st.ID))+"/balance", bursar, nil)
	require.Equal(t, http.StatusOK, code)
	assertMoney(t, "-1000", decode[ledger.BalanceSummary](t, env.Data).Balance)

	code, env = s.do(http.MethodGet, "/api/fees/payments?reversed=true", bursar, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, env.Total)

	code, env = s.do(http.MethodGet, "/api/admin/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, decode[map[string]any](t, env.Data)["ok"])
}

func TestBalanceCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := newServer(t, rdb)
	admin := s.bootstrap()
	st := testutil.CreateStudent(t, s.db, "A001", "Jane", "Doe", nil)
	path := "/api/students/" + itoa(float64(st.ID)) + "/balance"

	code, env := s.do(http.MethodGet, path, admin, nil)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, env.Cached)
	assert.False(t, *env.Cached)
	assert.True(t, mr.Exists("ledger:student:"+itoa(float64(st.ID))+":balance"))

	_, env = s.do(http.MethodGet, path, admin, nil)
	require.NotNil(t, env.Cached)
	assert.True(t, *env.Cached)

	code, env = s.do(http.MethodPost, "/api/fees/assignments", admin, gin.H{"student_id": st.ID, "description": "Trip", "amount": "250"})
	require.Equal(t, http.StatusCreated, code, env.Message)
	assert.False(t, mr.Exists("ledger:student:"+itoa(float64(st.ID))+":balance"))

	_, env = s.do(http.MethodGet, path, admin, nil)
	require.NotNil(t, env.Cached)
	assert.False(t, *env.Cached)
	assertMoney(t, "-250", decode[ledger.BalanceSummary](t, env.Data).Balance)
}

func TestErrorEnvelope(t *testing.T) {
	s := newServer(t, nil)

	code, env := s.do(http.MethodPost, "/api/auth/login", "", gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Message)
	assert.Empty(t, env.Data)
}
