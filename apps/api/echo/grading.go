package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/grading"
)

type gradingApi struct {
	svc      grading.Service
	validate *validator.Validate
}

func registerGradingAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := gradingApi{svc: deps.GradingSvc, validate: deps.Validate}

	gg := g.Group("/grade-scale", jwt)
	gg.GET("", api.retrieve)
	gg.PUT("", api.replace, adminMiddleware())
}

func (api *gradingApi) retrieve(ctx echo.Context) error {
	scale, err := api.svc.Scale(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "loading grade scale")
	}
	return ctx.JSON(http.StatusOK, scaleResponse(scale))
}

func (api *gradingApi) replace(ctx echo.Context) error {
	var data grading.NewScale
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScale")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	scale, err := api.svc.Replace(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "replacing grade scale")
	}
	return ctx.JSON(http.StatusOK, scaleResponse(scale))
}

type ScaleResponse struct {
	Bands  []grading.Band `json:"bands"`
	Issues []string       `json:"issues"` // gaps and overlaps
}

func scaleResponse(scale grading.Scale) ScaleResponse {
	bands := []grading.Band(scale)
	if bands == nil {
		bands = []grading.Band{}
	}
	issues := scale.Issues()
	if issues == nil {
		issues = []string{}
	}
	return ScaleResponse{Bands: bands, Issues: issues}
}
