package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// Bearer enforces bearer JWT tokens signed with HS256.
func Bearer(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimantFrom returns the claimant stored by Bearer.
func ClaimantFrom(c *gin.Context) (Claimant, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claimant{}, false
	}
	claims, ok := v.(Claims)
	if !ok {
		return Claimant{}, false
	}
	return claims.Claimant(), true
}
