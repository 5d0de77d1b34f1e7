package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/datamorph/datamorph/pkg/auth"
)

// RunAuth guards log polling with run-scoped bearer tokens. The token's run
// id must match the run being read. A nil manager disables auth entirely.
func RunAuth(tokens *auth.RunTokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.Next()
			return
		}

		authorization := c.GetHeader("Authorization")
		if authorization == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.SplitN(authorization, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization"})
			return
		}

		claims, err := tokens.ValidateRunToken(strings.TrimSpace(parts[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !claims.HasScope("logs") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token lacks logs scope"})
			return
		}
		if runID := c.Param("run_id"); runID != "" && claims.RunID != runID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "token is scoped to a different run"})
			return
		}

		c.Next()
	}
}
