package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/askdeck-dev/askdeck/pkg/schema"
)

const sessionKey = "session"

// NewRouter wires the HTTP routes over the handler.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)

	auth := r.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)

		gated := auth.Group("", h.RequireSession())
		gated.POST("/ask", h.Ask)
		gated.GET("/profile", h.GetProfile)
		gated.PUT("/profile", h.UpdateProfile)
		gated.GET("/stats", h.GetStats)
	}

	an := r.Group("/analytics")
	{
		gated := an.Group("", h.RequireSession())
		gated.GET("/history", h.History)
		gated.GET("/history/:eventID", h.EventDetails)
		gated.GET("/search", h.Search)
		gated.GET("/me", h.UserAnalytics)
		gated.GET("/time", h.TimeAnalytics)

		an.GET("/global", h.GlobalAnalytics)
		an.GET("/category/:category", h.CategoryAnalytics)
	}

	r.POST("/admin/users/:userID/import-legacy", h.ImportLegacy)

	return r
}

// RequireSession resolves the session token and aborts unauthenticated
// requests with 401.
func (h *Handler) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		sess, ok := h.Sessions.Get(c.Request.Context(), token)
		if !ok || !sess.Authenticated {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// sessionToken reads the token from the cookie, falling back to the header.
func sessionToken(c *gin.Context) string {
	if token, err := c.Cookie(sessionCookie); err == nil && token != "" {
		return token
	}
	return c.GetHeader("X-Session-Token")
}

// currentSession returns the session placed by RequireSession.
func currentSession(c *gin.Context) schema.Session {
	v, _ := c.Get(sessionKey)
	sess, _ := v.(schema.Session)
	return sess
}
