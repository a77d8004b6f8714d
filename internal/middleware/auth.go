package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"

	authpkg "github.com/mvn-raffle/photoproxy/pkg/auth"
	"github.com/mvn-raffle/photoproxy/pkg/config"
	"github.com/mvn-raffle/photoproxy/pkg/logging"
	"github.com/mvn-raffle/photoproxy/pkg/response"
)

const userContextKey = "user"

// User represents an authenticated API key holder
type User struct {
	Name string       `json:"name"`
	Role authpkg.Role `json:"role"`
}

// APIKeyMiddleware validates the X-API-Key header against the configured keys
func APIKeyMiddleware(apiKeys []config.APIKey) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			apiKey := c.Request().Header.Get("X-API-Key")
			if apiKey == "" {
				logging.LogDeniedWithIP("missing api key", "", c.Path(), c.RealIP())
				return response.Unauthorized(c, "API key required")
			}

			keyData, found := findKey(apiKeys, apiKey)
			if !found {
				logging.LogDeniedWithIP("invalid api key", "", c.Path(), c.RealIP())
				return response.Unauthorized(c, "Invalid API key")
			}

			c.Set(userContextKey, &User{
				Name: keyData.Name,
				Role: authpkg.ParseRole(keyData.Role),
			})
			return next(c)
		}
	}
}

func findKey(apiKeys []config.APIKey, key string) (config.APIKey, bool) {
	for _, ak := range apiKeys {
		if subtle.ConstantTimeCompare([]byte(ak.APIKey), []byte(key)) == 1 {
			return ak, true
		}
	}
	return config.APIKey{}, false
}

// RequireRole middleware checks if user has sufficient role permissions
func RequireRole(requiredRole authpkg.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := GetUserFromContext(c)
			if !ok {
				return response.Unauthorized(c, "User not authenticated")
			}

			if !user.Role.HasPermission(requiredRole) {
				logging.LogDeniedWithIP("insufficient role", user.Name, c.Path(), c.RealIP())
				return response.Forbidden(c, "Insufficient permissions. Required: "+requiredRole.String())
			}

			return next(c)
		}
	}
}

// GetUserFromContext extracts user from Echo context
func GetUserFromContext(c echo.Context) (*User, bool) {
	user, ok := c.Get(userContextKey).(*User)
	return user, ok && user != nil
}
