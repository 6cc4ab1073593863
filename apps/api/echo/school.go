package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type schoolApi struct {
	svc *school.Service
}

// registerSchoolAPI exposes the school register: staff may read it, admins maintain it.
func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *school.Service, users user.ServiceInterface) {
	api := schoolApi{svc: svc}
	canRead := permissionMiddleware(users, (*user.User).CanRecordResults)

	cg := g.Group("/classes", jwt)
	cg.GET("", api.classes, canRead)
	cg.POST("", api.openClass, adminMiddleware())

	sg := g.Group("/subjects", jwt)
	sg.GET("", api.subjects, canRead)
	sg.POST("", api.addSubject, adminMiddleware())

	stg := g.Group("/students", jwt)
	stg.GET("", api.students, canRead)
	stg.POST("", api.admit, adminMiddleware())
	stg.PATCH("/:id/status", api.setStatus, adminMiddleware())
}

// Handlers

func (api *schoolApi) classes(ctx echo.Context) error {
	classes, err := api.svc.Classes(ctx.Request().Context(), ctx.QueryParam("academic_year"))
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) openClass(ctx echo.Context) error {
	var data school.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	cls, err := api.svc.OpenClass(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "opening class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *schoolApi) subjects(ctx echo.Context) error {
	subjects, err := api.svc.Subjects(ctx.Request().Context(), ctx.QueryParam("class_id"))
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *schoolApi) addSubject(ctx echo.Context) error {
	var data school.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	sub, err := api.svc.AddSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *schoolApi) students(ctx echo.Context) error {
	students, err := api.svc.Students(ctx.Request().Context(), school.StudentFilter{
		Code:    core.CleanString(ctx.QueryParam("code")),
		ClassID: core.CleanString(ctx.QueryParam("class_id")),
		Status:  ctx.QueryParam("status"),
	})
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) admit(ctx echo.Context) error {
	var data AdmissionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AdmissionRequest")
	}
	std, err := api.svc.Admit(ctx.Request().Context(), school.Admission{
		Code:          data.Code,
		FullName:      data.FullName,
		ClassID:       data.ClassID,
		ParentName:    data.ParentName,
		ParentEmail:   data.ParentEmail,
		AdmissionDate: data.AdmissionDate.Time,
	})
	if err != nil {
		return errors.Wrap(err, "admitting student")
	}
	return ctx.JSON(http.StatusCreated, std)
}

func (api *schoolApi) setStatus(ctx echo.Context) error {
	var data StatusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusRequest")
	}
	std, err := api.svc.SetStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "setting student status")
	}
	return ctx.JSON(http.StatusOK, std)
}

type (
	AdmissionRequest struct {
		Code          string `json:"code"`
		FullName      string `json:"full_name"`
		ClassID       string `json:"class_id"`
		ParentName    string `json:"parent_name"`
		ParentEmail   string `json:"parent_email"`
		AdmissionDate Date   `json:"admission_date"`
	}

	StatusRequest struct {
		Status string `json:"status"`
	}
)
