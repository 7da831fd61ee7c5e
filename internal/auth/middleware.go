package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"hrledger/internal/ledger"
)

const scopeKey = "scope"

// Authenticate enforces bearer JWT tokens signed with HS256 and stores the caller scope.
func Authenticate(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "invalid token"})
			return
		}
		c.Set(scopeKey, claims.Scope())
		c.Next()
	}
}

// ScopeFrom returns the scope stored by Authenticate.
func ScopeFrom(c *gin.Context) (ledger.Scope, bool) {
	v, ok := c.Get(scopeKey)
	if !ok {
		return ledger.Scope{}, false
	}
	scope, ok := v.(ledger.Scope)
	return scope, ok
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...ledger.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, ok := ScopeFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		for _, r := range roles {
			if scope.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "role not permitted"})
	}
}
