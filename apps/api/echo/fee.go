package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/user"
)

type feeApi struct {
	svc      *fee.Service
	users    user.ServiceInterface
	validate *validator.Validate
}

func registerFeeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *fee.Service, users user.ServiceInterface, validate *validator.Validate) {
	api := feeApi{svc: svc, users: users, validate: validate}

	fg := g.Group("/fees", jwt, permissionMiddleware(users, (*user.User).CanManageFees))
	fg.POST("/charges", api.assess)
	fg.POST("/charges/batch", api.assessClass)
	fg.GET("/charges", api.query)
	fg.GET("/charges/:id/payments", api.history)
	fg.POST("/payments", api.pay)
	fg.GET("/summary", api.summary)
}

// Handlers

func (api *feeApi) assess(ctx echo.Context) error {
	var data ChargeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChargeRequest")
	}
	nc := fee.NewCharge{
		StudentID: core.CleanString(data.StudentID),
		FeeType:   data.FeeType,
		Amount:    data.Amount,
		DueDate:   data.DueDate.Time,
		Remarks:   data.Remarks,
	}
	if err := api.validate.Struct(nc); err != nil {
		return err
	}

	ch, err := api.svc.AssessCharge(ctx.Request().Context(), nc)
	if err != nil {
		return errors.Wrap(err, "assessing charge")
	}
	return ctx.JSON(http.StatusCreated, ch.View(core.Today()))
}

func (api *feeApi) assessClass(ctx echo.Context) error {
	var data FeeStructureRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FeeStructureRequest")
	}
	fs := fee.FeeStructure{
		ClassID: core.CleanString(data.ClassID),
		FeeType: data.FeeType,
		Amount:  data.Amount,
		DueDate: data.DueDate.Time,
		Remarks: data.Remarks,
	}
	if err := api.validate.Struct(fs); err != nil {
		return err
	}

	report, err := api.svc.AssessClass(ctx.Request().Context(), fs)
	if err != nil {
		return errors.Wrap(err, "assessing class")
	}
	return ctx.JSON(http.StatusCreated, report)
}

func (api *feeApi) query(ctx echo.Context) error {
	qp := ctx.QueryParams()
	filter := fee.ChargeFilter{
		StudentID: core.CleanString(qp.Get("student_id")),
		FeeType:   core.CleanString(qp.Get("fee_type")),
	}
	for _, st := range qp["status"] {
		filter.Statuses = append(filter.Statuses, fee.Status(core.CleanString(st)))
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter.Ordering = ordering.Orderings

	charges, err := api.svc.QueryCharges(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying charges")
	}
	today := core.Today()
	views := make([]fee.ChargeView, 0, len(charges))
	for _, ch := range charges {
		views = append(views, ch.View(today))
	}
	return ctx.JSON(http.StatusOK, views)
}

func (api *feeApi) history(ctx echo.Context) error {
	events, err := api.svc.PaymentHistory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying payment history")
	}
	return ctx.JSON(http.StatusOK, events)
}

func (api *feeApi) pay(ctx echo.Context) error {
	var data PaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentRequest")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	res, err := api.svc.ApplyPayment(ctx.Request().Context(), fee.PaymentRequest{
		Lines:          data.Lines,
		Method:         core.CleanString(data.Method),
		Date:           data.Date.Time,
		TransactionRef: core.CleanString(data.TransactionRef),
		Remarks:        data.Remarks,
		CollectedBy:    claims.Subject,
	})
	if err != nil {
		return errors.Wrap(err, "applying payment")
	}

	sent, err := api.svc.SendReceipt(ctx.Request().Context(), res)
	if err != nil {
		// the payment stands; only the receipt is lost
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "sending receipt"))
	}
	return ctx.JSON(http.StatusOK, PaymentResponse{PaymentResult: res, ReceiptsSent: sent})
}

func (api *feeApi) summary(ctx echo.Context) error {
	asOf, err := queryDate(ctx, "as_of")
	if err != nil {
		return err
	}
	filter := fee.SummaryFilter{
		StudentID: core.CleanString(ctx.QueryParam("student_id")),
		ClassID:   core.CleanString(ctx.QueryParam("class_id")),
		FeeType:   core.CleanString(ctx.QueryParam("fee_type")),
	}
	if asOf != nil {
		filter.AsOf = *asOf
	}

	sum, err := api.svc.Summary(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "summarizing charges")
	}
	return ctx.JSON(http.StatusOK, sum)
}

type (
	ChargeRequest struct {
		StudentID string          `json:"student_id"`
		FeeType   string          `json:"fee_type"`
		Amount    decimal.Decimal `json:"amount"`
		DueDate   Date            `json:"due_date"`
		Remarks   string          `json:"remarks"`
	}

	FeeStructureRequest struct {
		ClassID string          `json:"class_id"`
		FeeType string          `json:"fee_type"`
		Amount  decimal.Decimal `json:"amount"`
		DueDate Date            `json:"due_date"`
		Remarks string          `json:"remarks"`
	}

	PaymentRequest struct {
		Lines          []fee.PaymentLine `json:"lines"`
		Method         string            `json:"method"`
		Date           Date              `json:"date"`
		TransactionRef string            `json:"transaction_ref"`
		Remarks        string            `json:"remarks"`
	}

	PaymentResponse struct {
		fee.PaymentResult
		ReceiptsSent int `json:"receipts_sent"`
	}
)
