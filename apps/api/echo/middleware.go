package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
)

// adminMiddleware admits admins holding any of the given roles. A
// superior admin passes regardless of the role list; routes reserved for
// the system admin must use systemAdminMiddleware instead, which does not
// honor that override.
func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if !claims.IsAdmin {
				return errHttpForbidden
			}
			if claims.roleSet().IsSuperiorAdmin() {
				return next(ctx)
			}
			if contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// systemAdminMiddleware admits only the system admin role.
func systemAdminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.roleSet().Has(user.RoleSystemAdmin) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
