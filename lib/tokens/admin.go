package tokens

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const AdminTokenHeader = "X-Admin-Token"

// AdminTokenMiddleware guards operator routes. With no token configured it
// lets every request through.
func AdminTokenMiddleware(token string) echo.MiddlewareFunc {
	if token == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:" + AdminTokenHeader,
		Validator: func(auth string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(auth), []byte(token)) == 1, nil
		},
	})
}
