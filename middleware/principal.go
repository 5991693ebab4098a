package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Principal is the caller identity attached to a request. Two variants exist:
// a backend service acting with granted scopes, and an end user. Handlers
// check capabilities through this interface instead of duck-typing the
// underlying caller.
type Principal interface {
	PrincipalID() string
	HasScope(scope string) bool
}

// ServicePrincipal is an internal service caller with explicit scopes.
type ServicePrincipal struct {
	ServiceName string
	Scopes      []string
}

func (p ServicePrincipal) PrincipalID() string { return "service:" + p.ServiceName }

func (p ServicePrincipal) HasScope(scope string) bool {
	for _, s := range p.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

// UserPrincipal is an end user; role determines the capability surface.
type UserPrincipal struct {
	UserID string
	Role   string // "student" or "instructor"
}

func (p UserPrincipal) PrincipalID() string { return "user:" + p.UserID }

func (p UserPrincipal) HasScope(scope string) bool {
	switch p.Role {
	case "instructor":
		return scope == "availability:write" || scope == "availability:read" || scope == "bookings:read"
	case "student":
		return scope == "bookings:read" || scope == "bookings:write"
	default:
		return false
	}
}

const principalKey = "principal"

// PrincipalMiddleware resolves the caller from request headers. Identity
// verification itself happens upstream; this layer only shapes the principal.
func PrincipalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if svc := c.GetHeader("X-Service-Name"); svc != "" {
			scopes := strings.Split(c.GetHeader("X-Service-Scopes"), ",")
			c.Set(principalKey, ServicePrincipal{ServiceName: svc, Scopes: scopes})
			c.Next()
			return
		}
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set(principalKey, UserPrincipal{
				UserID: userID,
				Role:   c.GetHeader("X-User-Role"),
			})
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no principal on request"})
	}
}

// GetPrincipal extracts the resolved principal from the request context.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// RequireScope aborts with 403 unless the principal has the scope.
func RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok || !p.HasScope(scope) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient scope"})
			return
		}
		c.Next()
	}
}
