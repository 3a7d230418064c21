package coachtest

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mycyclecoach/walkthrough/pkg/auth"
)

const userIDKey = "user_id"

// authMiddleware rejects requests without a valid bearer token
func authMiddleware(issuer *auth.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization token required")
			return
		}

		claims, err := issuer.Validate(token)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		userID, err := claims.UserID()
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "Invalid token subject")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// recordMiddleware keeps a copy of every request for assertions
func recordMiddleware(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.record(RecordedRequest{
			Method:        c.Request.Method,
			Path:          c.Request.URL.Path,
			Query:         c.Request.URL.Query(),
			Authorization: c.GetHeader("Authorization"),
			ContentType:   c.GetHeader("Content-Type"),
			RequestID:     c.GetHeader("X-Request-ID"),
			UserAgent:     c.Request.UserAgent(),
		})
		c.Next()
	}
}

// overrideMiddleware replaces the real handler for paths with an Override
func overrideMiddleware(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, ok := s.override(c.Request.URL.Path)
		if !ok {
			c.Next()
			return
		}

		if o.Delay > 0 {
			select {
			case <-time.After(o.Delay):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}

		status := o.Status
		if status == 0 {
			status = http.StatusOK
		}
		contentType := o.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		c.Data(status, contentType, []byte(o.Body))
		c.Abort()
	}
}

// extractToken extracts the bearer token from the Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	tokenParts := strings.SplitN(authHeader, " ", 2)
	if len(tokenParts) == 2 && strings.EqualFold(tokenParts[0], "Bearer") {
		return tokenParts[1]
	}
	return ""
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      c.Request.URL.Path,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
