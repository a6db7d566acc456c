package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/DawitTemesgen1/akilesiya-backend/core/permission"
	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
)

type permissionApi struct {
	svc      permission.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerPermissionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc permission.Service, userSvc user.Service, validate *validator.Validate) {
	api := permissionApi{svc: svc, userSvc: userSvc, validate: validate}

	pg := g.Group("/permissions", jwt)

	// any authenticated user can resolve their own effective screens
	pg.GET("/my-screens", api.resolveOwn)

	// grant administration is reserved for the system admin; the superior
	// admin override does not reach these routes
	pg.GET("/screens", api.queryScreens, adminMiddleware())
	pg.GET("/roles/:role", api.getRolePermissions, systemAdminMiddleware())
	pg.PUT("/roles/:role", api.replaceRolePermissions, systemAdminMiddleware())
	pg.GET("/users/:id", api.getUserPermissions, systemAdminMiddleware())
	pg.PUT("/users/:id", api.replaceUserPermissions, systemAdminMiddleware())
}

func (api *permissionApi) resolveOwn(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	keys, err := api.svc.Resolve(ctx.Request().Context(), claims.Subject, claims.roleSet())
	if err != nil {
		return errors.Wrap(err, "resolving permissions")
	}
	if keys == nil {
		keys = []string{}
	}
	return ctx.JSON(http.StatusOK, ScreenKeysResponse{ScreenKeys: keys})
}

func (api *permissionApi) queryScreens(ctx echo.Context) error {
	screens, err := api.svc.QueryScreens(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying screens")
	}
	if screens == nil {
		screens = []permission.Screen{}
	}
	return ctx.JSON(http.StatusOK, screens)
}

func (api *permissionApi) getRolePermissions(ctx echo.Context) error {
	ids, err := api.svc.GetRolePermissions(ctx.Request().Context(), ctx.Param("role"))
	if err != nil {
		return errors.Wrap(err, "getting role permissions")
	}
	if ids == nil {
		ids = []string{}
	}
	return ctx.JSON(http.StatusOK, ScreenIDsResponse{ScreenIDs: ids})
}

func (api *permissionApi) replaceRolePermissions(ctx echo.Context) error {
	var data permission.RolePermissionsUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RolePermissionsUpdate")
	}
	data.RoleName = ctx.Param("role")
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	if err := api.svc.ReplaceRolePermissions(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "replacing role permissions")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *permissionApi) getUserPermissions(ctx echo.Context) error {
	ids, err := api.svc.GetUserPermissions(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting user permissions")
	}
	if ids == nil {
		ids = []string{}
	}
	return ctx.JSON(http.StatusOK, ScreenIDsResponse{ScreenIDs: ids})
}

func (api *permissionApi) replaceUserPermissions(ctx echo.Context) error {
	var data permission.UserPermissionsUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UserPermissionsUpdate")
	}
	data.UserID = ctx.Param("id")
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	if err := api.svc.ReplaceUserPermissions(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "replacing user permissions")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	ScreenKeysResponse struct {
		ScreenKeys []string `json:"screen_keys"`
	}

	ScreenIDsResponse struct {
		ScreenIDs []string `json:"screen_ids"`
	}
)
