package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"blogicum/utils"
)

const (
	// ContextUserIDKey is the key used to store the authenticated user ID in
	// the Gin context.
	ContextUserIDKey = "user_id"
	// ContextUsernameKey stores the username inside the Gin context.
	ContextUsernameKey = "username"

	// LoginPath is where anonymous callers of protected routes are sent.
	LoginPath = "/login"

	tokenCookieName = "token"
)

// Identify resolves the caller identity when a valid token is present and
// stores it in the context. It never rejects the request; anonymous callers
// simply carry no identity. Feeds and detail pages need this because the
// author-bypass rules depend on who is looking.
func Identify() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token := extractToken(ctx)
		if token == "" || utils.IsTokenBlacklisted(token) {
			ctx.Next()
			return
		}
		claims, err := utils.ParseToken(token)
		if err != nil {
			ctx.Next()
			return
		}
		ctx.Set(ContextUserIDKey, claims.UserID)
		ctx.Set(ContextUsernameKey, claims.Username)
		ctx.Next()
	}
}

// LoginRequired redirects anonymous callers to the login flow. It must run
// after Identify.
func LoginRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if _, exists := ctx.Get(ContextUserIDKey); !exists {
			utils.Redirect(ctx, LoginPath)
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// extractToken reads the JWT from the Authorization header or, for browser
// flows, the token cookie.
func extractToken(ctx *gin.Context) string {
	if authHeader := ctx.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := ctx.Cookie(tokenCookieName); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}
