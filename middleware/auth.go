// Package middleware holds the gin middleware shared by every route group.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/phillip/parenting-hub-go/apperr"
	"github.com/phillip/parenting-hub-go/auth"
)

// Context keys set for handlers that read the caller from gin.
const (
	KeyUserID = "user_id"
	KeyEmail  = "email"
	KeyRole   = "role"
)

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(v auth.Verifier) gin.HandlerFunc {
	return authenticate(v, true)
}

// OptionalAuth attaches the actor when a token is present and lets anonymous
// requests through. An invalid token is still rejected.
func OptionalAuth(v auth.Verifier) gin.HandlerFunc {
	return authenticate(v, false)
}

func authenticate(v auth.Verifier, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			if required {
				abort(c, apperr.ErrAuthenticationRequired)
				return
			}
			c.Next()
			return
		}

		actor, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Request = c.Request.WithContext(auth.WithActor(c.Request.Context(), actor))
		c.Set(KeyUserID, actor.ID)
		c.Set(KeyEmail, actor.Email)
		if len(actor.Roles) > 0 {
			c.Set(KeyRole, actor.Roles[0])
		}
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin(p *auth.AdminPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := auth.ActorFromContext(c.Request.Context())
		if !ok {
			abort(c, apperr.ErrAuthenticationRequired)
			return
		}
		if !p.IsAdmin(actor) {
			abort(c, apperr.ErrForbidden)
			return
		}
		c.Set(KeyRole, auth.RoleAdmin)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": apperr.UserMessage(err)})
}
