package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/DawitTemesgen1/akilesiya-backend/core/attendance"
	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
)

type attendanceApi struct {
	svc      attendance.Service
	validate *validator.Validate
}

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc attendance.Service, validate *validator.Validate) {
	api := attendanceApi{svc: svc, validate: validate}

	ag := g.Group("/attendance", jwt)
	ag.POST("", api.save, adminMiddleware(user.RoleAttendanceAdmin))
	ag.GET("", api.query, adminMiddleware(user.RoleAttendanceAdmin))
}

func (api *attendanceApi) save(ctx echo.Context) error {
	var data attendance.Sheet
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Sheet")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.SaveSheet(ctx.Request().Context(), claims.actor(), data); err != nil {
		return trapDomainErr(errors.Wrap(err, "saving attendance sheet"))
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *attendanceApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rows, err := api.svc.Query(ctx.Request().Context(), claims.TenantID, ctx.QueryParam("date"), ctx.QueryParam("session"))
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	if rows == nil {
		rows = []attendance.Row{}
	}
	return ctx.JSON(http.StatusOK, rows)
}
