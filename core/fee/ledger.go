package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
)

// Rejection codes
const (
	CodeOverpayment = "overpayment"
	CodeNotFound    = "not_found"
	CodeSettled     = "settled"
	CodeConflict    = "conflict"
	CodeStore       = "store_error"
)

// PaymentLine is one (charge, amount) pair of a payment request.
type PaymentLine struct {
	ChargeID string          `json:"charge_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// PaymentRequest applies one payment to one or more charges.
// The metadata is stamped on every charge the payment is accepted for.
type PaymentRequest struct {
	Lines          []PaymentLine
	Method         string
	Date           time.Time
	TransactionRef string
	Remarks        string
	CollectedBy    string // user ID
}

// Validate checks the request without touching the store.
func (req PaymentRequest) Validate() error {
	var flds []core.FieldError
	if len(req.Lines) == 0 {
		flds = append(flds, core.FieldError{Field: "lines", Error: "at least one payment line is required"})
	}
	for i, line := range req.Lines {
		if core.CleanString(line.ChargeID) == "" {
			flds = append(flds, core.FieldError{Field: fmt.Sprintf("lines[%d].charge_id", i), Error: "this field is required"})
		}
		if !line.Amount.IsPositive() {
			flds = append(flds, core.FieldError{Field: fmt.Sprintf("lines[%d].amount", i), Error: "amount must be greater than 0"})
		}
	}
	if !IsPaymentMethod(req.Method) {
		flds = append(flds, core.FieldError{Field: "method", Error: "invalid payment method"})
	}
	if core.CleanString(req.CollectedBy) == "" {
		flds = append(flds, core.FieldError{Field: "collected_by", Error: "this field is required"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

// ChargeUpdate is an accepted payment line.
type ChargeUpdate struct {
	ChargeID      string          `json:"charge_id"`
	Amount        decimal.Decimal `json:"amount"`
	NewPaidAmount decimal.Decimal `json:"new_paid_amount"`
	NewStatus     Status          `json:"new_status"`
}

// Rejection is a payment line that was not applied. The charge is unchanged.
type Rejection struct {
	ChargeID string          `json:"charge_id"`
	Amount   decimal.Decimal `json:"amount"`
	Reason   string          `json:"reason"`
	Code     string          `json:"code"`
}

type PaymentResult struct {
	TransactionRef string          `json:"transaction_ref"`
	Accepted       []ChargeUpdate  `json:"accepted"`
	Rejected       []Rejection     `json:"rejected"`
	TotalApplied   decimal.Decimal `json:"total_applied"`
}

// NewTransactionRef returns a generated transaction reference.
func NewTransactionRef() string {
	return "TXN-" + uuid.New().String()
}

// ApplyPayment applies every line of req in order.
// Each line is read fresh, written with a compare-and-set on its paid amount and logged as a PaymentEvent,
// in its own transaction: a rejected line never undoes earlier accepted ones.
// An invalid request is rejected as a whole before any charge is read.
func (svc *Service) ApplyPayment(ctx context.Context, req PaymentRequest) (PaymentResult, error) {
	if err := req.Validate(); err != nil {
		return PaymentResult{}, err
	}
	if req.TransactionRef = core.CleanString(req.TransactionRef); req.TransactionRef == "" {
		req.TransactionRef = NewTransactionRef()
	}
	if req.Date.IsZero() {
		req.Date = core.Today()
	} else {
		req.Date = core.TruncateDate(req.Date)
	}
	req.Remarks = core.CleanString(req.Remarks)

	res := PaymentResult{
		TransactionRef: req.TransactionRef,
		Accepted:       make([]ChargeUpdate, 0, len(req.Lines)),
		Rejected:       make([]Rejection, 0),
		TotalApplied:   decimal.Zero,
	}
	for _, line := range req.Lines {
		upd, err := svc.applyLine(ctx, req, line)
		if err != nil {
			rej := rejectLine(line, err)
			res.Rejected = append(res.Rejected, rej)
			if rej.Code == CodeStore {
				svc.logger.Error(fmt.Sprintf("fee.ApplyPayment(%s): %v", line.ChargeID, err), err)
			} else {
				svc.logger.Info(fmt.Sprintf("fee.ApplyPayment(%s): rejected %s: %s", line.ChargeID, rej.Code, rej.Reason))
			}
			continue
		}
		res.Accepted = append(res.Accepted, upd)
		res.TotalApplied = res.TotalApplied.Add(upd.Amount)
	}
	return res, nil
}

func (svc *Service) applyLine(ctx context.Context, req PaymentRequest, line PaymentLine) (ChargeUpdate, error) {
	attempts := svc.conf.Fees.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		var upd ChargeUpdate
		err := core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
			ch, err := svc.repo.GetCharge(ctx, line.ChargeID, exec)
			if err != nil {
				return err
			}
			now := core.NowFunc().UTC()
			paid, err := ch.pay(line.Amount, req, now)
			if err != nil {
				return err
			}
			if err = svc.repo.UpdateChargePayment(ctx, paid, ch.PaidAmount, exec); err != nil {
				return err
			}
			ev := PaymentEvent{
				ID:            uuid.New().String(),
				ChargeID:      ch.ID,
				Amount:        line.Amount,
				PaidBefore:    ch.PaidAmount,
				PaidAfter:     paid.PaidAmount,
				StatusAfter:   paid.Status,
				Method:        req.Method,
				TransactionID: req.TransactionRef,
				Remarks:       req.Remarks,
				CollectedBy:   req.CollectedBy,
				PaidOn:        req.Date,
				CreatedAt:     now,
			}
			if _, err = svc.repo.CreatePaymentEvent(ctx, ev, exec); err != nil {
				return err
			}
			upd = ChargeUpdate{
				ChargeID:      ch.ID,
				Amount:        line.Amount,
				NewPaidAmount: paid.PaidAmount,
				NewStatus:     paid.Status,
			}
			return nil
		})
		if errors.Cause(err) == ErrStaleCharge && attempt < attempts {
			continue
		}
		return upd, err
	}
}

func rejectLine(line PaymentLine, err error) Rejection {
	rej := Rejection{ChargeID: line.ChargeID, Amount: line.Amount, Reason: err.Error()}
	cause := errors.Cause(err)
	switch {
	case IsOverpayment(cause):
		rej.Code = CodeOverpayment
	case core.IsNotFound(cause):
		rej.Code = CodeNotFound
	case cause == ErrChargeSettled:
		rej.Code = CodeSettled
	case cause == ErrStaleCharge:
		rej.Code = CodeConflict
	default:
		rej.Code = CodeStore
		rej.Reason = core.NewStoreError(err).Error()
	}
	return rej
}
