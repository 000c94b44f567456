package server

import (
	"net/http"
	"strings"
	"time"

	"mt5-gateway/src/helpers"
	"mt5-gateway/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	userContextKey  = "gateway.user"
	requestIDHeader = "X-Request-ID"
	apiKeyHeader    = "X-API-Key"
	userIDHeader    = "X-User-ID"
)

// -----------------------------------------------------------------------------

// requestLogger tags every request with an id and logs its outcome.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		s.Logger.Debug("%s %s %d %s [%s]", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), id)
	}
}

// -----------------------------------------------------------------------------

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-API-Key, X-User-ID, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.Config.API.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// errorHandler renders the last handler error. Peer outages and internal
// failures are logged in full and answered generically.
func (s *Server) errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := helpers.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			s.Logger.Error("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		} else {
			s.Logger.Info("%s %s rejected: %v", c.Request.Method, c.Request.URL.Path, err)
		}

		c.JSON(status, gin.H{
			"success":   false,
			"error":     helpers.PublicMessage(err),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// -----------------------------------------------------------------------------

// authenticate resolves the caller from a bearer token, or from a service
// API key plus the X-User-ID it acts for.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := c.GetHeader(apiKeyHeader); key != "" {
			if s.APIKeys == nil || !s.APIKeys.Verify(key) {
				abort(c, helpers.NewAuthenticationError("invalid API key"))
				return
			}
			userID := strings.TrimSpace(c.GetHeader(userIDHeader))
			if userID == "" {
				abort(c, helpers.NewValidationError("%s header is required with an API key", userIDHeader))
				return
			}
			c.Set(userContextKey, &models.MUserIdentity{UserID: userID, Role: "service"})
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abort(c, helpers.NewAuthenticationError("missing bearer token"))
			return
		}
		user, err := s.Identity.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			abort(c, err)
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// currentUser returns the id set by authenticate.
func currentUser(c *gin.Context) string {
	if v, ok := c.Get(userContextKey); ok {
		if user, ok := v.(*models.MUserIdentity); ok {
			return user.UserID
		}
	}
	return ""
}

// -----------------------------------------------------------------------------

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow(currentUser(c)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
