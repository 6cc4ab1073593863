package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/bytes"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/user"
)

const importFileField = "file"

type resultApi struct {
	svc *result.Service
}

func registerResultAPI(g *echo.Group, jwt echo.MiddlewareFunc, conf *core.Config, svc *result.Service, users user.ServiceInterface) {
	api := resultApi{svc: svc}
	canRecord := permissionMiddleware(users, (*user.User).CanRecordResults)

	rg := g.Group("/results", jwt, canRecord)
	rg.POST("", api.record)
	rg.POST("/import", api.importCSV, middleware.BodyLimit(bytes.Format(conf.Results.MaxUploadSize)))
	rg.GET("", api.query)

	g.GET("/students/:id/report-card", api.reportCard, jwt, canRecord)
}

// Handlers

func (api *resultApi) record(ctx echo.Context) error {
	var data ResultRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResultRequest")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rec, err := api.svc.Record(ctx.Request().Context(), result.NewResult{
		StudentID:     core.CleanString(data.StudentID),
		SubjectID:     core.CleanString(data.SubjectID),
		ExamType:      data.ExamType,
		MarksObtained: data.MarksObtained,
		TotalMarks:    data.TotalMarks,
		Remarks:       data.Remarks,
		ExamDate:      data.ExamDate.Time,
		RecordedBy:    claims.Subject,
	})
	if err != nil {
		return errors.Wrap(err, "recording result")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *resultApi) importCSV(ctx echo.Context) error {
	fh, err := ctx.FormFile(importFileField)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: importFileField, Error: "a CSV file is required"})
	}
	opts := result.ImportOptions{}
	if claims, err := getContextClaims(ctx); err == nil {
		opts.RecordedBy = claims.Subject
	}
	if v := ctx.FormValue("exam_date"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "exam_date", Error: "invalid date, expected YYYY-MM-DD"})
		}
		opts.ExamDate = t
	}
	if v := ctx.FormValue("max_errors"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "max_errors", Error: "must be a number"})
		}
		opts.MaxReportedErrors = n
	}

	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer f.Close()

	report, err := api.svc.Import(ctx.Request().Context(), f, opts)
	if err != nil {
		return errors.Wrap(err, "importing results")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *resultApi) query(ctx echo.Context) error {
	from, err := queryDate(ctx, "from")
	if err != nil {
		return err
	}
	to, err := queryDate(ctx, "to")
	if err != nil {
		return err
	}

	res, err := api.svc.Query(ctx.Request().Context(), result.Filter{
		StudentID: core.CleanString(ctx.QueryParam("student_id")),
		ClassID:   core.CleanString(ctx.QueryParam("class_id")),
		SubjectID: core.CleanString(ctx.QueryParam("subject_id")),
		ExamType:  core.CleanString(ctx.QueryParam("exam_type")),
		Search:    ctx.QueryParam("search"),
		From:      from,
		To:        to,
	})
	if err != nil {
		return errors.Wrap(err, "querying results")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *resultApi) reportCard(ctx echo.Context) error {
	card, err := api.svc.ReportCard(ctx.Request().Context(), ctx.Param("id"), core.CleanString(ctx.QueryParam("exam_type")))
	if err != nil {
		return errors.Wrap(err, "building report card")
	}
	return ctx.JSON(http.StatusOK, card)
}

type ResultRequest struct {
	StudentID     string          `json:"student_id"`
	SubjectID     string          `json:"subject_id"`
	ExamType      string          `json:"exam_type"`
	MarksObtained decimal.Decimal `json:"marks_obtained"`
	TotalMarks    decimal.Decimal `json:"total_marks"`
	Remarks       string          `json:"remarks"`
	ExamDate      Date            `json:"exam_date"`
}
