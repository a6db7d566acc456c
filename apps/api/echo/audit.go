package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/DawitTemesgen1/akilesiya-backend/core/audit"
)

type auditApi struct {
	svc audit.Service
}

func registerAuditAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc audit.Service) {
	api := auditApi{svc: svc}

	ag := g.Group("/audit", jwt)
	ag.GET("/trail", api.trail, adminMiddleware())
	ag.GET("/users/:id/changes", api.queryChanges, adminMiddleware())
	ag.PUT("/changes/:id/review", api.reviewChange, adminMiddleware())
}

func (api *auditApi) trail(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var actionTypes []string
	if raw := ctx.QueryParam("action_type"); raw != "" {
		actionTypes = strings.Split(raw, ",")
	}

	entries, err := api.svc.Trail(ctx.Request().Context(), claims.TenantID, actionTypes)
	if err != nil {
		return errors.Wrap(err, "querying audit trail")
	}
	if entries == nil {
		entries = []audit.TrailEntry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *auditApi) queryChanges(ctx echo.Context) error {
	unreviewedOnly := ctx.QueryParam("unreviewed") == "true"

	changes, err := api.svc.QueryChanges(ctx.Request().Context(), ctx.Param("id"), unreviewedOnly)
	if err != nil {
		return errors.Wrap(err, "querying change logs")
	}
	if changes == nil {
		changes = []audit.ChangeLog{}
	}
	return ctx.JSON(http.StatusOK, changes)
}

func (api *auditApi) reviewChange(ctx echo.Context) error {
	if err := api.svc.ReviewChange(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return trapDomainErr(errors.Wrap(err, "reviewing change"))
	}
	return ctx.NoContent(http.StatusNoContent)
}
