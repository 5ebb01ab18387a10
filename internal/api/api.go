// Package api is the HTTP surface of askdeck: request parsing, the auth
// gate, and response shaping over the profile, analytics, and session
// components.
package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/askdeck-dev/askdeck/internal/analytics"
	"github.com/askdeck-dev/askdeck/internal/profile"
	"github.com/askdeck-dev/askdeck/internal/session"
	"github.com/askdeck-dev/askdeck/pkg/schema"
)

// Handler bundles the stores a request needs. One instance is constructed at
// process start and passed in explicitly; there is no shared singleton.
type Handler struct {
	Profiles  *profile.Store
	Analytics *analytics.Engine
	Sessions  *session.Store

	// SessionMaxAge is the cookie lifetime in seconds.
	SessionMaxAge int
}

const sessionCookie = "session_id"

type signupRequest struct {
	EmployeeID string `json:"employee_id" binding:"required"`
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Department string `json:"department"`
	Role       string `json:"role"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type askRequest struct {
	Question   string `json:"question" binding:"required"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

type profileUpdateRequest struct {
	Department string `json:"department"`
	Role       string `json:"role"`
}

type employee struct {
	EmployeeID string `json:"employee_id"`
	Username   string `json:"username"`
}

type authResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Employee employee        `json:"employee"`
	Profile  *schema.Profile `json:"profile,omitempty"`
}

type askResponse struct {
	Success       bool           `json:"success"`
	Answer        string         `json:"answer"`
	EventID       string         `json:"event_id,omitempty"`
	Employee      employee       `json:"employee"`
	UserStats     *schema.Stats  `json:"user_stats,omitempty"`
	RecentHistory []schema.Event `json:"recent_history"`
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Advisory check only: a concurrent signup with the same username can
	// still slip through between this scan and the create.
	if h.Profiles.UsernameExists(c.Request.Context(), req.Username) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username already exists"})
		return
	}

	ok := h.Profiles.CreateProfile(c.Request.Context(),
		req.EmployeeID, req.Username, req.Password, req.Department, req.Role)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user profile"})
		return
	}

	h.issueSession(c, req.EmployeeID, req.Username, req.Password)

	prof, _ := h.Profiles.GetProfile(c.Request.Context(), req.EmployeeID)
	c.JSON(http.StatusOK, authResponse{
		Success:  true,
		Message:  "Signup successful",
		Employee: employee{EmployeeID: req.EmployeeID, Username: req.Username},
		Profile:  &prof,
	})
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prof, found := h.Profiles.FindByUsername(c.Request.Context(), req.Username)
	if !found || prof.Password != req.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	h.Profiles.RecordLogin(c.Request.Context(), prof.EmployeeID)
	h.issueSession(c, prof.EmployeeID, prof.Username, prof.Password)

	updated, _ := h.Profiles.GetProfile(c.Request.Context(), prof.EmployeeID)
	c.JSON(http.StatusOK, authResponse{
		Success:  true,
		Message:  "Login successful",
		Employee: employee{EmployeeID: prof.EmployeeID, Username: prof.Username},
		Profile:  &updated,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if token := sessionToken(c); token != "" {
		h.Sessions.Delete(c.Request.Context(), token)
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out"})
}

func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess := currentSession(c)
	ctx := c.Request.Context()

	answer := fmt.Sprintf("Hello %s (ID: %s), you asked: '%s'. This is a simple response.",
		sess.Username, sess.EmployeeID, req.Question)

	eventID := h.Analytics.LogEvent(ctx, sess.EmployeeID, req.Question, answer, req.Category, req.Difficulty)
	h.Profiles.IncrementQuestionsAsked(ctx, sess.EmployeeID)

	resp := askResponse{
		Success:       true,
		Answer:        answer,
		EventID:       eventID,
		Employee:      employee{EmployeeID: sess.EmployeeID, Username: sess.Username},
		RecentHistory: h.Analytics.GetUserHistory(ctx, sess.EmployeeID, 5),
	}
	if stats, ok := h.Profiles.GetStats(ctx, sess.EmployeeID); ok {
		resp.UserStats = &stats
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetProfile(c *gin.Context) {
	sess := currentSession(c)
	prof, found := h.Profiles.GetProfile(c.Request.Context(), sess.EmployeeID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "User profile not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "profile": prof})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req profileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess := currentSession(c)
	ctx := c.Request.Context()

	if req.Department != "" {
		h.Profiles.UpdateField(ctx, sess.EmployeeID, "department", req.Department)
	}
	if req.Role != "" {
		h.Profiles.UpdateField(ctx, sess.EmployeeID, "role", req.Role)
	}

	prof, found := h.Profiles.GetProfile(ctx, sess.EmployeeID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "User profile not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile updated", "profile": prof})
}

func (h *Handler) GetStats(c *gin.Context) {
	sess := currentSession(c)
	stats, found := h.Profiles.GetStats(c.Request.Context(), sess.EmployeeID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "User stats not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

func (h *Handler) History(c *gin.Context) {
	count, err := intQuery(c, "count", 10)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess := currentSession(c)
	events := h.Analytics.GetUserHistory(c.Request.Context(), sess.EmployeeID, count)
	c.JSON(http.StatusOK, gin.H{"history": events, "count": len(events)})
}

func (h *Handler) EventDetails(c *gin.Context) {
	sess := currentSession(c)
	ev, found := h.Analytics.GetEventDetails(c.Request.Context(), sess.EmployeeID, c.Param("eventID"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) Search(c *gin.Context) {
	sess := currentSession(c)
	matches := h.Analytics.SearchQuestions(c.Request.Context(), sess.EmployeeID, c.Query("q"))
	c.JSON(http.StatusOK, gin.H{"matches": matches, "count": len(matches)})
}

func (h *Handler) UserAnalytics(c *gin.Context) {
	start, end, err := windowQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess := currentSession(c)
	c.JSON(http.StatusOK, h.Analytics.GetUserAnalytics(c.Request.Context(), sess.EmployeeID, start, end))
}

func (h *Handler) TimeAnalytics(c *gin.Context) {
	hours, err := intQuery(c, "hours", 24)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess := currentSession(c)
	c.JSON(http.StatusOK, h.Analytics.GetTimeBasedAnalytics(c.Request.Context(), sess.EmployeeID, hours))
}

func (h *Handler) GlobalAnalytics(c *gin.Context) {
	start, end, err := windowQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Analytics.GetGlobalAnalytics(c.Request.Context(), start, end))
}

func (h *Handler) CategoryAnalytics(c *gin.Context) {
	start, end, err := windowQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.Analytics.GetCategoryAnalytics(c.Request.Context(), c.Param("category"), start, end))
}

func (h *Handler) ImportLegacy(c *gin.Context) {
	migrated := h.Analytics.ImportLegacyStream(c.Request.Context(), c.Param("userID"))
	c.JSON(http.StatusOK, gin.H{"success": true, "migrated": migrated})
}

// issueSession stores an authenticated session and sets the cookie.
func (h *Handler) issueSession(c *gin.Context, employeeID, username, password string) {
	token := h.Sessions.Create(c.Request.Context(), schema.Session{
		EmployeeID:    employeeID,
		Username:      username,
		Password:      password,
		Authenticated: true,
	})
	if token != "" {
		c.SetCookie(sessionCookie, token, h.SessionMaxAge, "/", "", false, true)
	}
}

// intQuery parses an optional non-negative integer query parameter.
func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return n, nil
}

// windowQuery parses the optional start/end Unix-seconds bounds.
func windowQuery(c *gin.Context) (*int64, *int64, error) {
	parse := func(name string) (*int64, error) {
		raw := c.Query(name)
		if raw == "" {
			return nil, nil
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s parameter", name)
		}
		return &n, nil
	}
	start, err := parse("start")
	if err != nil {
		return nil, nil, err
	}
	end, err := parse("end")
	if err != nil {
		return nil, nil, err
	}
	return start, end, nil
}
