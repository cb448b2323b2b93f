package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-dispatch/internal/audit"
	"delivery-dispatch/internal/auth"
	"delivery-dispatch/internal/calls"
	"delivery-dispatch/internal/config"
	"delivery-dispatch/internal/reporting"
	"delivery-dispatch/internal/workers"
	"delivery-dispatch/pkg/logger"
	"delivery-dispatch/pkg/security"
)

type testAPI struct {
	router   *gin.Engine
	handlers *Handlers
	workers  *workers.MemoryRepo
	calls    *calls.MemoryRepo
	audit    *audit.MemoryRepo
	mr       *miniredis.Miniredis
}

func newTestAPI(t *testing.T, loginLimit int) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tokens, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "delivery-dispatch",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	wr := workers.NewMemoryRepo()
	cr := calls.NewMemoryRepo()
	ar := audit.NewMemoryRepo()
	revoker := auth.NewRedisRevoker(rdb)

	h := &Handlers{
		Workers:   wr,
		Calls:     cr,
		Tokens:    tokens,
		Revoker:   revoker,
		Limiter:   NewRedisLoginLimiter(rdb, loginLimit, time.Minute),
		Passwords: security.NewHasher(4),
		Audit:     audit.NewService(ar),
		Reports:   reporting.NewService(cr),
		OrderIDs:  calls.NewOrderIDGenerator(),
		Version:   "1.0.0",
	}

	r := gin.New()
	r.Use(logger.Middleware(logger.NewWithWriter(io.Discard, "test")))
	r.GET("/", Home)
	h.Mount(r, auth.RequireAccessToken(tokens, revoker), auth.OptionalAccessToken(tokens, revoker))
	r.NoRoute(NotFound)

	return &testAPI{router: r, handlers: h, workers: wr, calls: cr, audit: ar, mr: mr}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

// registerAndLogin creates a worker through the API and returns its id and token pair.
func (a *testAPI) registerAndLogin(t *testing.T, phone string) (int64, auth.TokenPair) {
	t.Helper()
	code, body := a.do(t, http.MethodPost, "/api/register", "", gin.H{
		"name": "Ravi", "phone": phone, "password": "secret1",
	})
	require.Equal(t, http.StatusOK, code, body)

	code, body = a.do(t, http.MethodPost, "/api/login", "", gin.H{"phone": phone, "password": "secret1"})
	require.Equal(t, http.StatusOK, code, body)

	raw, err := json.Marshal(body["tokens"])
	require.NoError(t, err)
	var pair auth.TokenPair
	require.NoError(t, json.Unmarshal(raw, &pair))

	worker := body["delivery_worker"].(map[string]any)
	return int64(worker["id"].(float64)), pair
}

func TestRegister_Validation(t *testing.T) {
	api := newTestAPI(t, 100)

	cases := []struct {
		name string
		body gin.H
		msg  string
	}{
		{"missing name", gin.H{"name": "  ", "phone": "+919876543210", "password": "secret1"}, "Name is required"},
		{"bad phone", gin.H{"name": "A", "phone": "9876543210", "password": "secret1"}, "Invalid phone number format. Use +91XXXXXXXXXX"},
		{"short password", gin.H{"name": "A", "phone": "+919876543210", "password": "12345", "email": "bad"}, "Password must be at least 6 characters long"},
		{"bad email", gin.H{"name": "A", "phone": "+919876543210", "password": "secret1", "email": "bad"}, "Invalid email format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := api.do(t, http.MethodPost, "/api/register", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tc.msg, body["error"])
		})
	}
	assert.Empty(t, api.workers.Snapshot())
}

func TestRegister_Duplicates(t *testing.T) {
	api := newTestAPI(t, 100)

	code, body := api.do(t, http.MethodPost, "/api/register", "", gin.H{
		"name": "Ravi", "phone": "+919876543210", "password": "secret1", "email": "ravi@example.com",
	})
	require.Equal(t, http.StatusOK, code)
	worker := body["delivery_worker"].(map[string]any)
	assert.Equal(t, "free", worker["status"])
	assert.NotContains(t, worker, "password_hash")

	code, body = api.do(t, http.MethodPost, "/api/register", "", gin.H{
		"name": "Other", "phone": "+919876543210", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Phone number already registered", body["error"])

	code, body = api.do(t, http.MethodPost, "/api/register", "", gin.H{
		"name": "Other", "phone": "+919876543211", "password": "secret1", "email": "ravi@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Email already registered", body["error"])

	evs := api.audit.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, audit.EventTypeRegister, evs[0].Type)
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t, 100)
	id, pair := api.registerAndLogin(t, "+919876543210")
	assert.NotEmpty(t, pair.AccessToken)
	assert.Equal(t, "Bearer", pair.TokenType)

	code, body := api.do(t, http.MethodPost, "/api/login", "", gin.H{"phone": "+919876543210", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid phone number or password", body["error"])

	code, body = api.do(t, http.MethodPost, "/api/login", "", gin.H{"phone": "+919876543210"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Phone number and password are required", body["error"])

	require.NoError(t, api.workers.SetActive(id, false))
	code, _ = api.do(t, http.MethodPost, "/api/login", "", gin.H{"phone": "+919876543210", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLogin_RateLimited(t *testing.T) {
	api := newTestAPI(t, 2)

	for i := 0; i < 2; i++ {
		code, _ := api.do(t, http.MethodPost, "/api/login", "", gin.H{"phone": "+919876543210", "password": "nope123"})
		assert.Equal(t, http.StatusUnauthorized, code)
	}
	code, body := api.do(t, http.MethodPost, "/api/login", "", gin.H{"phone": "+919876543210", "password": "nope123"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "Too many login attempts. Please try again later.", body["error"])

	api.mr.FastForward(time.Minute + time.Second)
	code, _ = api.do(t, http.MethodPost, "/api/login", "", gin.H{"phone": "+919876543210", "password": "nope123"})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t, 100)
	for _, path := range []string{"/api/dashboard", "/api/profile", "/api/call-logs"} {
		code, body := api.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, code, path)
		assert.Equal(t, "Authentication required", body["error"])
	}
}

func TestLogoutRevokesTokens(t *testing.T) {
	api := newTestAPI(t, 100)
	_, pair := api.registerAndLogin(t, "+919876543210")

	code, _ := api.do(t, http.MethodGet, "/api/profile", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, body := api.do(t, http.MethodPost, "/api/logout", pair.AccessToken, gin.H{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Logged out successfully", body["message"])

	code, _ = api.do(t, http.MethodGet, "/api/profile", pair.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(t, http.MethodPost, "/api/refresh", "", gin.H{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRefreshRotates(t *testing.T) {
	api := newTestAPI(t, 100)
	_, pair := api.registerAndLogin(t, "+919876543210")

	code, body := api.do(t, http.MethodPost, "/api/refresh", "", gin.H{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusOK, code, body)
	tokens := body["tokens"].(map[string]any)
	assert.NotEmpty(t, tokens["access_token"])

	code, _ = api.do(t, http.MethodPost, "/api/refresh", "", gin.H{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(t, http.MethodPost, "/api/refresh", "", gin.H{"refresh_token": pair.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestDashboard(t *testing.T) {
	api := newTestAPI(t, 100)
	id, pair := api.registerAndLogin(t, "+919876543210")
	ctx := context.Background()

	today := reporting.DayRange(time.Now())
	for i := 0; i < 6; i++ {
		_, err := api.calls.Append(ctx, calls.Record{
			WorkerID: id, ClientNumber: "+15550001", OrderID: "T" + string(rune('A'+i)),
			CallTime: today.From.Add(time.Duration(i+1) * time.Second),
		})
		require.NoError(t, err)
	}
	_, err := api.calls.Append(ctx, calls.Record{
		WorkerID: id, ClientNumber: "+15550001", OrderID: "YESTERDAY", CallTime: today.From.Add(-time.Hour),
	})
	require.NoError(t, err)

	code, body := api.do(t, http.MethodGet, "/api/dashboard", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, code, body)

	worker := body["delivery_worker"].(map[string]any)
	assert.EqualValues(t, 6, worker["deliveries_today"])
	recent := body["recent_calls"].([]any)
	require.Len(t, recent, 5)
	assert.Equal(t, "TF", recent[0].(map[string]any)["order_id"])

	stored, err := api.workers.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 6, stored.DeliveriesToday)
}

func TestDashboard_InactiveWorkerRevokesToken(t *testing.T) {
	api := newTestAPI(t, 100)
	id, pair := api.registerAndLogin(t, "+919876543210")
	require.NoError(t, api.workers.SetActive(id, false))

	code, body := api.do(t, http.MethodGet, "/api/dashboard", pair.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Delivery worker not found or inactive", body["error"])

	code, _ = api.do(t, http.MethodGet, "/api/profile", pair.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestUpdateStatus(t *testing.T) {
	api := newTestAPI(t, 100)
	id, pair := api.registerAndLogin(t, "+919876543210")

	code, body := api.do(t, http.MethodPost, "/api/update-status", pair.AccessToken, gin.H{"status": "busy"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, `Invalid status. Use "free" or "occupied"`, body["error"])

	code, body = api.do(t, http.MethodPost, "/api/update-status", pair.AccessToken, gin.H{"status": "occupied"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Status updated to occupied", body["message"])
	w, err := api.workers.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, w.CurrentOrderID)
	assert.True(t, calls.ValidOrderID(*w.CurrentOrderID))
	first := *w.CurrentOrderID

	code, _ = api.do(t, http.MethodPost, "/api/update-status", pair.AccessToken, gin.H{"status": "occupied"})
	require.Equal(t, http.StatusOK, code)
	w, _ = api.workers.Get(context.Background(), id)
	assert.Equal(t, first, *w.CurrentOrderID)

	code, _ = api.do(t, http.MethodPost, "/api/update-status", pair.AccessToken, gin.H{"status": "free"})
	require.Equal(t, http.StatusOK, code)
	w, _ = api.workers.Get(context.Background(), id)
	assert.Equal(t, workers.StatusFree, w.Status)
	assert.Nil(t, w.CurrentOrderID)

	var changes int
	for _, e := range api.audit.Events() {
		if e.Type == audit.EventTypeStatusChange {
			changes++
		}
	}
	assert.Equal(t, 3, changes)
}

// claimOnFirstRead lets an allocation claim the worker right after the
// handler's first read, before it writes.
type claimOnFirstRead struct {
	workers.Repository
	inner   *workers.MemoryRepo
	orderID string
	once    sync.Once
}

func (r *claimOnFirstRead) Get(ctx context.Context, id int64) (workers.Worker, error) {
	w, err := r.inner.Get(ctx, id)
	r.once.Do(func() {
		_, _ = r.inner.TryClaim(ctx, id, r.orderID)
	})
	return w, err
}

func TestUpdateStatus_KeepsConcurrentAllocation(t *testing.T) {
	api := newTestAPI(t, 100)
	id, pair := api.registerAndLogin(t, "+919876543210")
	api.handlers.Workers = &claimOnFirstRead{Repository: api.workers, inner: api.workers, orderID: "ORD202405010930WEBH"}

	code, body := api.do(t, http.MethodPost, "/api/update-status", pair.AccessToken, gin.H{"status": "occupied"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Status updated to occupied", body["message"])

	w, err := api.workers.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, workers.StatusOccupied, w.Status)
	require.NotNil(t, w.CurrentOrderID)
	assert.Equal(t, "ORD202405010930WEBH", *w.CurrentOrderID)

	dw, ok := body["delivery_worker"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ORD202405010930WEBH", dw["current_order_id"])
}

func TestUpdateProfile(t *testing.T) {
	api := newTestAPI(t, 100)
	_, other := api.registerAndLogin(t, "+919876543211")
	code, _ := api.do(t, http.MethodPut, "/api/update-profile", other.AccessToken, gin.H{"email": "taken@example.com"})
	require.Equal(t, http.StatusOK, code)

	id, pair := api.registerAndLogin(t, "+919876543210")

	code, body := api.do(t, http.MethodPut, "/api/update-profile", pair.AccessToken, gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid email format", body["error"])

	code, body = api.do(t, http.MethodPut, "/api/update-profile", pair.AccessToken, gin.H{"email": "taken@example.com"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Email already taken", body["error"])

	code, body = api.do(t, http.MethodPut, "/api/update-profile", pair.AccessToken, gin.H{"name": " Ravi K ", "email": "ravi@example.com"})
	require.Equal(t, http.StatusOK, code, body)
	w, _ := api.workers.Get(context.Background(), id)
	assert.Equal(t, "Ravi K", w.Name)
	require.NotNil(t, w.Email)
	assert.Equal(t, "ravi@example.com", *w.Email)

	code, _ = api.do(t, http.MethodPut, "/api/update-profile", pair.AccessToken, gin.H{"name": "", "email": ""})
	require.Equal(t, http.StatusOK, code)
	w, _ = api.workers.Get(context.Background(), id)
	assert.Equal(t, "Ravi K", w.Name)
	assert.Nil(t, w.Email)
}

func TestChangePassword(t *testing.T) {
	api := newTestAPI(t, 100)
	_, pair := api.registerAndLogin(t, "+919876543210")

	code, body := api.do(t, http.MethodPost, "/api/change-password", pair.AccessToken, gin.H{"current_password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Current password and new password are required", body["error"])

	code, body = api.do(t, http.MethodPost, "/api/change-password", pair.AccessToken, gin.H{"current_password": "secret1", "new_password": "123"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "New password must be at least 6 characters long", body["error"])

	code, body = api.do(t, http.MethodPost, "/api/change-password", pair.AccessToken, gin.H{"current_password": "wrong1", "new_password": "newsecret"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Current password is incorrect", body["error"])

	code, _ = api.do(t, http.MethodPost, "/api/change-password", pair.AccessToken, gin.H{"current_password": "secret1", "new_password": "newsecret"})
	require.Equal(t, http.StatusOK, code)

	code, _ = api.do(t, http.MethodPost, "/api/login", "", gin.H{"phone": "+919876543210", "password": "newsecret"})
	assert.Equal(t, http.StatusOK, code)
}

func TestCallLogsPagination(t *testing.T) {
	api := newTestAPI(t, 100)
	id, pair := api.registerAndLogin(t, "+919876543210")
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		_, err := api.calls.Append(context.Background(), calls.Record{
			WorkerID: id, ClientNumber: "+15550001", OrderID: "O" + string(rune('A'+i)),
			CallTime: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	code, body := api.do(t, http.MethodGet, "/api/call-logs?page=3&per_page=5", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 12, body["total"])
	assert.EqualValues(t, 3, body["pages"])
	assert.EqualValues(t, 3, body["current_page"])
	logs := body["call_logs"].([]any)
	require.Len(t, logs, 2)
	assert.Equal(t, "OB", logs[0].(map[string]any)["order_id"])

	code, body = api.do(t, http.MethodGet, "/api/call-logs?page=abc", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["current_page"])
	assert.Len(t, body["call_logs"].([]any), 10)
}

func TestCheckSession(t *testing.T) {
	api := newTestAPI(t, 100)

	code, body := api.do(t, http.MethodGet, "/api/check-session", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["authenticated"])

	code, body = api.do(t, http.MethodGet, "/api/check-session", "garbage", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["authenticated"])

	_, pair := api.registerAndLogin(t, "+919876543210")
	code, body = api.do(t, http.MethodGet, "/api/check-session", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["authenticated"])
	assert.NotNil(t, body["delivery_worker"])
}

func TestSystemRoutes(t *testing.T) {
	api := newTestAPI(t, 100)

	code, body := api.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "1.0.0", body["version"])
	assert.NotEmpty(t, body["timestamp"])

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, welcomeText, w.Body.String())

	code, body = api.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Endpoint not found", body["error"])
}
