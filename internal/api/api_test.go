package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdeck-dev/askdeck/internal/analytics"
	"github.com/askdeck-dev/askdeck/internal/backend"
	"github.com/askdeck-dev/askdeck/internal/config"
	"github.com/askdeck-dev/askdeck/internal/profile"
	"github.com/askdeck-dev/askdeck/internal/session"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Handler, *backend.MemStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ms := backend.NewMemStore(nil, nil)
	cfg := config.Default()
	h := &Handler{
		Profiles:      profile.New(ms, cfg),
		Analytics:     analytics.New(ms, cfg),
		Sessions:      session.New(ms, cfg),
		SessionMaxAge: cfg.Session.TTLSeconds,
	}
	return NewRouter(h), h, ms
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func sessionCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func signup(t *testing.T, r *gin.Engine, employeeID, username, password string) *http.Cookie {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/auth/signup", map[string]string{
		"employee_id": employeeID,
		"username":    username,
		"password":    password,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return sessionCookieFrom(t, w)
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decodeBody(t, w)["status"])
}

func TestSignup(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/auth/signup", map[string]string{
		"employee_id": "e1",
		"username":    "alice",
		"password":    "secret",
		"department":  "Engineering",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	prof := body["profile"].(map[string]any)
	assert.Equal(t, "alice", prof["username"])
	assert.Equal(t, "Engineering", prof["department"])
	sessionCookieFrom(t, w)

	// Duplicate username is rejected (advisory check).
	w = doJSON(t, r, http.MethodPost, "/auth/signup", map[string]string{
		"employee_id": "e2",
		"username":    "alice",
		"password":    "other",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username already exists", decodeBody(t, w)["error"])
}

func TestSignup_MissingFields(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/auth/signup", map[string]string{
		"username": "alice",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	r, _, _ := newTestRouter(t)
	signup(t, r, "e1", "alice", "secret")

	w := doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decodeBody(t, w)["error"])

	w = doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "secret",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	prof := body["profile"].(map[string]any)
	assert.EqualValues(t, 1, prof["login_count"])
	sessionCookieFrom(t, w)

	w = doJSON(t, r, http.MethodPost, "/auth/login", map[string]string{
		"username": "nobody",
		"password": "pw",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthGate(t *testing.T) {
	r, _, _ := newTestRouter(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/auth/ask"},
		{http.MethodGet, "/auth/profile"},
		{http.MethodGet, "/auth/stats"},
		{http.MethodGet, "/analytics/history"},
		{http.MethodGet, "/analytics/search"},
		{http.MethodGet, "/analytics/me"},
		{http.MethodGet, "/analytics/time"},
	} {
		w := doJSON(t, r, route.method, route.path, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
		assert.Equal(t, "Authentication required", decodeBody(t, w)["error"])
	}
}

func TestSessionTokenHeaderFallback(t *testing.T) {
	r, _, _ := newTestRouter(t)
	cookie := signup(t, r, "e1", "alice", "secret")

	req := httptest.NewRequest(http.MethodGet, "/auth/profile", nil)
	req.Header.Set("X-Session-Token", cookie.Value)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAsk(t *testing.T) {
	r, _, _ := newTestRouter(t)
	cookie := signup(t, r, "e1", "alice", "secret")

	w := doJSON(t, r, http.MethodPost, "/auth/ask", map[string]string{
		"question": "what is Go?",
		"category": "tech",
	}, cookie)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t,
		"Hello alice (ID: e1), you asked: 'what is Go?'. This is a simple response.",
		body["answer"])
	assert.NotEmpty(t, body["event_id"])
	stats := body["user_stats"].(map[string]any)
	assert.EqualValues(t, 1, stats["questions_asked"])
	history := body["recent_history"].([]any)
	require.Len(t, history, 1)
	assert.Equal(t, "what is Go?", history[0].(map[string]any)["question"])
}

func TestAskThenHistoryAndDetails(t *testing.T) {
	r, _, _ := newTestRouter(t)
	cookie := signup(t, r, "e1", "alice", "secret")

	w := doJSON(t, r, http.MethodPost, "/auth/ask", map[string]string{"question": "q1"}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	eventID := decodeBody(t, w)["event_id"].(string)
	doJSON(t, r, http.MethodPost, "/auth/ask", map[string]string{"question": "q2"}, cookie)

	w = doJSON(t, r, http.MethodGet, "/analytics/history?count=1", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["count"])
	history := body["history"].([]any)
	assert.Equal(t, "q2", history[0].(map[string]any)["question"])

	w = doJSON(t, r, http.MethodGet, "/analytics/history/"+eventID, nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "q1", decodeBody(t, w)["question"])

	w = doJSON(t, r, http.MethodGet, "/analytics/history/0", nil, cookie)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodGet, "/analytics/history?count=0", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decodeBody(t, w)["count"])

	w = doJSON(t, r, http.MethodGet, "/analytics/history?count=bad", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearch(t *testing.T) {
	r, _, _ := newTestRouter(t)
	cookie := signup(t, r, "e1", "alice", "secret")

	doJSON(t, r, http.MethodPost, "/auth/ask", map[string]string{"question": "Explain Python"}, cookie)
	doJSON(t, r, http.MethodPost, "/auth/ask", map[string]string{"question": "Explain Go"}, cookie)

	w := doJSON(t, r, http.MethodGet, "/analytics/search?q=python", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["count"])

	w = doJSON(t, r, http.MethodGet, "/analytics/search", nil, cookie)
	assert.EqualValues(t, 0, decodeBody(t, w)["count"])
}

func TestProfileRoutes(t *testing.T) {
	r, _, _ := newTestRouter(t)
	cookie := signup(t, r, "e1", "alice", "secret")

	w := doJSON(t, r, http.MethodGet, "/auth/profile", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	prof := decodeBody(t, w)["profile"].(map[string]any)
	assert.Equal(t, "alice", prof["username"])
	// Cleartext storage surfaces in the profile payload as well.
	assert.Equal(t, "secret", prof["password"])

	w = doJSON(t, r, http.MethodPut, "/auth/profile", map[string]string{
		"department": "Research",
	}, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	prof = decodeBody(t, w)["profile"].(map[string]any)
	assert.Equal(t, "Research", prof["department"])

	w = doJSON(t, r, http.MethodGet, "/auth/stats", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeBody(t, w)["stats"].(map[string]any)
	assert.EqualValues(t, 0, stats["questions_asked"])
}

func TestUserAnalyticsRoute(t *testing.T) {
	r, _, _ := newTestRouter(t)
	cookie := signup(t, r, "e1", "alice", "secret")

	doJSON(t, r, http.MethodPost, "/auth/ask", map[string]string{"question": "q", "category": "math"}, cookie)
	doJSON(t, r, http.MethodPost, "/auth/ask", map[string]string{"question": "q", "category": "math"}, cookie)
	doJSON(t, r, http.MethodPost, "/auth/ask", map[string]string{"question": "q", "category": "history"}, cookie)

	w := doJSON(t, r, http.MethodGet, "/analytics/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 3, body["total_questions"])
	cats := body["categories"].(map[string]any)
	assert.EqualValues(t, 2, cats["math"])
	assert.EqualValues(t, 1, cats["history"])

	w = doJSON(t, r, http.MethodGet, "/analytics/me?start=notanumber", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGlobalAndCategoryRoutes_Open(t *testing.T) {
	r, _, _ := newTestRouter(t)
	cookie := signup(t, r, "e1", "alice", "secret")
	doJSON(t, r, http.MethodPost, "/auth/ask", map[string]string{
		"question": "q", "category": "science", "difficulty": "hard",
	}, cookie)

	// No session required on the global surfaces.
	w := doJSON(t, r, http.MethodGet, "/analytics/global", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.EqualValues(t, 1, body["total_questions"])
	dist := body["difficulty_distribution"].(map[string]any)
	assert.EqualValues(t, 1, dist["hard"])

	w = doJSON(t, r, http.MethodGet, "/analytics/category/science", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, "science", body["category"])
	dist = body["difficulty_distribution"].(map[string]any)
	assert.EqualValues(t, 1, dist["hard"])
	totals := body["difficulty_totals"].(map[string]any)
	assert.EqualValues(t, 1, totals["hard"])
}

func TestLogout(t *testing.T) {
	r, _, _ := newTestRouter(t)
	cookie := signup(t, r, "e1", "alice", "secret")

	w := doJSON(t, r, http.MethodPost, "/auth/logout", nil, cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/auth/profile", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestImportLegacyRoute(t *testing.T) {
	r, _, ms := newTestRouter(t)
	_, err := ms.XAdd(context.Background(), backend.LegacyStreamKey("e1"),
		map[string]string{"question": "old", "response": "r", "timestamp": "1700000000"})
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/admin/users/e1/import-legacy", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.EqualValues(t, 1, body["migrated"])

	w = doJSON(t, r, http.MethodPost, "/admin/users/e1/import-legacy", nil, nil)
	assert.EqualValues(t, 0, decodeBody(t, w)["migrated"])
}
