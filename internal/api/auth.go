package api

import (
	"crypto/subtle"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"
)

// basicAuthMiddleware validates credentials against the configured
// username and bcrypt password hash. The health endpoint stays open for
// load balancer probes.
func (c *Controller) basicAuthMiddleware() echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Skipper: func(ctx echo.Context) bool {
			return strings.HasSuffix(ctx.Path(), "/health")
		},
		Realm: "soundpool",
		Validator: func(username, password string, ctx echo.Context) (bool, error) {
			auth := &c.Settings.WebServer.Auth

			// The hash comparison runs even for a wrong username so
			// response timing does not reveal which part failed.
			userOK := subtle.ConstantTimeCompare([]byte(username), []byte(auth.Username)) == 1
			passErr := bcrypt.CompareHashAndPassword([]byte(auth.PasswordHash), []byte(password))

			if userOK && passErr == nil {
				if c.metrics != nil && c.metrics.HTTP != nil {
					c.metrics.HTTP.RecordAuthOperation("basic", "success")
				}
				return true, nil
			}

			if c.metrics != nil && c.metrics.HTTP != nil {
				c.metrics.HTTP.RecordAuthOperation("basic", "failure")
				c.metrics.HTTP.RecordAuthError("basic", "invalid_credentials")
			}
			return false, nil
		},
	})
}
