package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/user"
)

// adminMiddleware only lets admins holding one of roles through (any admin when roles is empty).
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && hasAnyRole(claims, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// permissionMiddleware checks allowed against the stored user rather than the token claims.
func permissionMiddleware(svc user.ServiceInterface, allowed func(*user.User) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if usr.IsActive != nil && !*usr.IsActive {
				return errAccountDeactivated
			}
			if !allowed(&usr) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
