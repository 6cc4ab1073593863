package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/user"
)

type gradingApi struct {
	svc      *grading.Service
	validate *validator.Validate
}

func registerGradingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *grading.Service, users user.ServiceInterface, validate *validator.Validate) {
	api := gradingApi{svc: svc, validate: validate}

	gg := g.Group("/grading", jwt)
	gg.GET("/boundaries", api.table, permissionMiddleware(users, (*user.User).CanRecordResults))
	gg.POST("/boundaries", api.addBoundary, adminMiddleware())
	gg.POST("/compute", api.compute, permissionMiddleware(users, (*user.User).CanRecordResults))
}

// Handlers

func (api *gradingApi) table(ctx echo.Context) error {
	table, err := api.svc.Table(ctx.Request().Context(), ctx.QueryParam("academic_year"))
	if err != nil {
		return errors.Wrap(err, "querying grade boundaries")
	}
	return ctx.JSON(http.StatusOK, table.Sorted())
}

func (api *gradingApi) addBoundary(ctx echo.Context) error {
	var data grading.NewBoundary
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBoundary")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.AddBoundary(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding grade boundary")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *gradingApi) compute(ctx echo.Context) error {
	var data grading.ComputeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ComputeRequest")
	}

	res, err := api.svc.Compute(ctx.Request().Context(), data.AcademicYear, data.MarksObtained, data.TotalMarks)
	if err != nil {
		return errors.Wrap(err, "computing grade")
	}
	return ctx.JSON(http.StatusOK, res)
}
