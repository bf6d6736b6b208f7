package integration_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/task"
	apphttp "github.com/geocoder89/taskhub/internal/http"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/repo/memory"
	"github.com/geocoder89/taskhub/internal/security"
	"github.com/geocoder89/taskhub/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		Env:             "test",
		Store:           config.StoreMemory,
		JWTSecret:       "test-secret-key",
		BcryptCost:      security.MinCost,
		CacheTTL:        time.Minute,
		OTelServiceName: "taskhub-test",
		MaxBodyBytes:    1 << 20,
		RequestTimeout:  5 * time.Second,
	}
}

type testServer struct {
	router *gin.Engine
}

func setupTestRouter(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	users := memory.NewUsersRepo()
	tokens, err := auth.NewManager(cfg.JWTSecret)
	require.NoError(t, err)

	accounts := service.NewAccountService(users, security.NewHasher(cfg.BcryptCost), tokens, logger, prom)
	tasks := service.NewTaskService(memory.NewTasksRepo(), logger, prom,
		service.WithTaskCache(cache.NewMemoryTaskCache(cfg.CacheTTL)),
	)

	router := apphttp.NewRouter(apphttp.Deps{
		Log:      logger,
		Cfg:      cfg,
		Accounts: accounts,
		Tasks:    tasks,
		Tokens:   tokens,
		Prom:     prom,
		Gatherer: reg,
		Ready:    users.Ping,
	})

	return &testServer{router: router}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	return w
}

type authResponse struct {
	User struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
	Token string `json:"token"`
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body=%s", w.Body.String())
	return out
}

func (s *testServer) signup(t *testing.T, name, email, password string) authResponse {
	t.Helper()

	w := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	return decode[authResponse](t, w)
}

func TestRoot(t *testing.T) {
	s := setupTestRouter(t)

	w := s.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]string](t, w)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["message"])
}

func TestUnknownRoute(t *testing.T) {
	s := setupTestRouter(t)

	for _, path := range []string{"/nope", "/api/unknown", "/api/auth/logout"} {
		w := s.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "Route not found", decode[map[string]string](t, w)["message"])
	}
}

func TestSignupAndLogin(t *testing.T) {
	s := setupTestRouter(t)

	ann := s.signup(t, "Ann", "a@x.com", "pw123")
	assert.NotEmpty(t, ann.Token)
	assert.NotEmpty(t, ann.User.ID)
	assert.Equal(t, "Ann", ann.User.Name)
	assert.Equal(t, "a@x.com", ann.User.Email)

	t.Run("duplicate_email", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"name": "Other", "email": "a@x.com", "password": "different",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "User already exists", decode[errorResponse](t, w).Message)
	})

	t.Run("missing_field", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
			"email": "b@x.com", "password": "pw",
		})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("login_ok", func(t *testing.T) {
		w := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "a@x.com", "password": "pw123",
		})
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "password")

		res := decode[authResponse](t, w)
		assert.Equal(t, ann.User.ID, res.User.ID)
		assert.NotEmpty(t, res.Token)
	})

	t.Run("login_failures_are_identical", func(t *testing.T) {
		wrong := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "a@x.com", "password": "wrong",
		})
		unknown := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"email": "nobody@x.com", "password": "pw123",
		})

		require.Equal(t, http.StatusUnauthorized, wrong.Code)
		require.Equal(t, http.StatusUnauthorized, unknown.Code)

		a, b := decode[errorResponse](t, wrong), decode[errorResponse](t, unknown)
		assert.Equal(t, "Invalid credentials", a.Message)
		assert.Equal(t, a.Message, b.Message)
		assert.Equal(t, a.Code, b.Code)
	})
}

func TestTaskRoutesRequireToken(t *testing.T) {
	s := setupTestRouter(t)

	w := s.do(t, http.MethodGet, "/api/tasks", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "No token, authorization denied", decode[errorResponse](t, w).Message)

	other, err := auth.NewManager("some-other-secret")
	require.NoError(t, err)
	forged, err := other.Issue(uuid.NewString())
	require.NoError(t, err)

	for _, tok := range []string{"garbage", forged} {
		w := s.do(t, http.MethodPost, "/api/tasks", tok, map[string]string{"title": "x"})
		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Token is not valid", decode[errorResponse](t, w).Message)
	}
}

func TestTaskLifecycleAndIsolation(t *testing.T) {
	s := setupTestRouter(t)

	ann := s.signup(t, "Ann", "a@x.com", "pw123")
	bob := s.signup(t, "Bob", "b@x.com", "pw456")

	// Ann creates a task
	w := s.do(t, http.MethodPost, "/api/tasks", ann.Token, map[string]string{"title": "T1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	t1 := decode[task.Task](t, w)
	assert.Equal(t, "T1", t1.Title)
	assert.Equal(t, "", t1.Description)
	assert.False(t, t1.Completed)
	assert.Equal(t, ann.User.ID, t1.OwnerID)

	w = s.do(t, http.MethodGet, "/api/tasks", ann.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]task.Task](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, t1.ID, list[0].ID)

	// Bob sees nothing of Ann's
	w = s.do(t, http.MethodGet, "/api/tasks", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	path := "/api/tasks/" + t1.ID

	for _, tc := range []struct {
		method string
		body   any
	}{
		{http.MethodGet, nil},
		{http.MethodPut, map[string]any{"completed": true}},
		{http.MethodDelete, nil},
	} {
		w := s.do(t, tc.method, path, bob.Token, tc.body)
		require.Equal(t, http.StatusNotFound, w.Code, tc.method)
		assert.Equal(t, "Task not found", decode[errorResponse](t, w).Message)
	}

	// Bob's attempts left the task untouched
	w = s.do(t, http.MethodGet, path, ann.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[task.Task](t, w).Completed)

	// Ann updates; protected fields in the payload are ignored
	w = s.do(t, http.MethodPut, path, ann.Token, map[string]any{
		"completed": true,
		"ownerId":   bob.User.ID,
		"id":        uuid.NewString(),
		"createdAt": "2000-01-01T00:00:00Z",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	updated := decode[task.Task](t, w)
	assert.True(t, updated.Completed)
	assert.Equal(t, "T1", updated.Title)
	assert.Equal(t, t1.ID, updated.ID)
	assert.Equal(t, ann.User.ID, updated.OwnerID)
	assert.True(t, updated.CreatedAt.Equal(t1.CreatedAt))
	assert.False(t, updated.UpdatedAt.Before(t1.UpdatedAt))

	w = s.do(t, http.MethodPut, path, ann.Token, map[string]any{"title": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// list reflects the update, not a stale cached copy
	w = s.do(t, http.MethodGet, "/api/tasks", ann.Token, nil)
	list = decode[[]task.Task](t, w)
	require.Len(t, list, 1)
	assert.True(t, list[0].Completed)

	// delete, then the id is gone
	w = s.do(t, http.MethodDelete, path, ann.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Task removed", decode[map[string]string](t, w)["message"])

	w = s.do(t, http.MethodGet, path, ann.Token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodDelete, path, ann.Token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/tasks", ann.Token, nil)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestListIsNewestFirst(t *testing.T) {
	s := setupTestRouter(t)
	ann := s.signup(t, "Ann", "a@x.com", "pw123")

	for _, title := range []string{"first", "second", "third"} {
		w := s.do(t, http.MethodPost, "/api/tasks", ann.Token, map[string]string{"title": title})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := s.do(t, http.MethodGet, "/api/tasks", ann.Token, nil)
	list := decode[[]task.Task](t, w)
	require.Len(t, list, 3)

	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].CreatedAt.After(list[i-1].CreatedAt), "list not newest first")
	}
}

func TestMalformedTaskIDIsNotFound(t *testing.T) {
	s := setupTestRouter(t)
	ann := s.signup(t, "Ann", "a@x.com", "pw123")

	w := s.do(t, http.MethodGet, "/api/tasks/not-a-uuid", ann.Token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, "/api/tasks/not-a-uuid", ann.Token, map[string]any{"completed": true})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestOperationalEndpoints(t *testing.T) {
	s := setupTestRouter(t)

	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "taskhub_http_requests_total")

	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestErrorsCarryRequestID(t *testing.T) {
	s := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "req-42", decode[errorResponse](t, w).RequestID)
}
