package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/kraalmart/kraalmart/internal/observability/context"
)

const adminTokenHeader = "X-Admin-Token"

// AdminRequired gates the back-office routes behind the static admin token.
// An unset token disables the admin surface entirely.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		configured := s.cfg.AdminToken
		if configured == "" {
			AbortWithError(c, ErrForbidden)
			return
		}

		presented := strings.TrimSpace(c.GetHeader(adminTokenHeader))
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), "admin", "")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RateLimit applies the named endpoint policy keyed by caller IP. Denials
// return 429 with Retry-After; limiter store failures let the request pass.
func (s *Server) RateLimit(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := s.limiter.Check(c.Request.Context(), endpoint, c.ClientIP())
		if decision.Allowed {
			c.Next()
			return
		}

		retryAfter := int(decision.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}})
	}
}
