package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// rolesMiddleware lets through the users whose claims pass one of the checks.
func rolesMiddleware(checks ...func(Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			for _, check := range checks {
				if check(claims) {
					return next(ctx)
				}
			}
			return errHttpForbidden
		}
	}
}

func isAdmin(c Claims) bool   { return c.IsAdmin }
func isTeacher(c Claims) bool { return c.IsTeacher }

func adminMiddleware() echo.MiddlewareFunc {
	return rolesMiddleware(isAdmin)
}

func staffMiddleware() echo.MiddlewareFunc {
	return rolesMiddleware(isAdmin, isTeacher)
}
