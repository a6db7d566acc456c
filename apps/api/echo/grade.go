package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/DawitTemesgen1/akilesiya-backend/core/grade"
	"github.com/DawitTemesgen1/akilesiya-backend/core/user"
)

type gradeApi struct {
	svc      grade.Service
	validate *validator.Validate
}

func registerGradeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc grade.Service, validate *validator.Validate) {
	api := gradeApi{svc: svc, validate: validate}

	gg := g.Group("/grades", jwt)
	gg.POST("", api.save, adminMiddleware(user.RoleGradeAdmin))
	gg.GET("/students/:id", api.query, adminMiddleware(user.RoleGradeAdmin))
}

func (api *gradeApi) save(ctx echo.Context) error {
	var data grade.ScoreSheet
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScoreSheet")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.SaveScores(ctx.Request().Context(), claims.actor(), data); err != nil {
		return trapDomainErr(errors.Wrap(err, "saving scores"))
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradeApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	scores, err := api.svc.Query(ctx.Request().Context(), claims.TenantID, ctx.Param("id"), ctx.QueryParam("academic_year"))
	if err != nil {
		return errors.Wrap(err, "querying scores")
	}
	if scores == nil {
		scores = []grade.Score{}
	}
	return ctx.JSON(http.StatusOK, scores)
}
