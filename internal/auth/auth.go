// Package auth maps static API tokens to user IDs. Tokens are issued by
// the account subsystem and configured as "token:user_id" pairs; this
// service only verifies them.
package auth

import (
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
)

// userIDKey is the echo context key carrying the authenticated user.
const userIDKey = "user_id"

// Manager resolves API tokens to user IDs.
type Manager struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewManager parses a comma-separated "token:user_id" list.
func NewManager(apiTokens string) *Manager {
	m := &Manager{tokens: make(map[string]string)}
	for _, pair := range strings.Split(apiTokens, ",") {
		token, userID, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || token == "" || userID == "" {
			continue
		}
		m.tokens[token] = userID
	}
	return m
}

// Resolve returns the user ID for a token.
func (m *Manager) Resolve(token string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	userID, ok := m.tokens[token]
	return userID, ok
}

// UserID returns the authenticated user for the request. Empty outside of
// routes guarded by Middleware.
func UserID(c echo.Context) string {
	userID, _ := c.Get(userIDKey).(string)
	return userID
}

// Middleware authenticates requests via a bearer token and stores the
// resolved user ID on the context.
func Middleware(manager *Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get("Authorization")
			if strings.HasPrefix(token, "Bearer ") {
				token = token[len("Bearer "):]
			}
			if token == "" {
				token = c.QueryParam("token")
			}

			userID, ok := manager.Resolve(token)
			if token == "" || !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "Unauthorized. Provide a valid API token.",
				})
			}

			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}
