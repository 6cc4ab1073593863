package fee

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
)

type Status string

// Charge statuses. StatusOverdue is never stored, see Charge.DisplayStatus.
const (
	StatusUnpaid  Status = "Unpaid"
	StatusPartial Status = "Partial"
	StatusPaid    Status = "Paid"
	StatusOverdue Status = "Overdue"
)

// Payment methods
const (
	MethodCash         = "cash"
	MethodBankTransfer = "bank_transfer"
	MethodMobileMoney  = "mobile_money"
	MethodCard         = "card"
	MethodCheque       = "cheque"
	MethodOnline       = "online"
)

var (
	PaymentMethods = []string{MethodCash, MethodBankTransfer, MethodMobileMoney, MethodCard, MethodCheque, MethodOnline}

	// errors
	ErrChargeNotFound = core.NewNotFoundError("fee charge", "")
	ErrChargeSettled  = errors.New("fee charge is already paid")
	ErrStaleCharge    = errors.New("fee charge was modified concurrently")
)

func IsPaymentMethod(method string) bool {
	for _, m := range PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// OverpaymentError rejects a payment line that would take a charge past its amount.
type OverpaymentError struct {
	ChargeID string
	Amount   decimal.Decimal
	Balance  decimal.Decimal
}

func (err OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds the remaining balance of %s", err.Amount, err.Balance)
}

func IsOverpayment(err error) bool {
	_, ok := errors.Cause(err).(*OverpaymentError)
	return ok
}

// DeriveStatus returns the stored status matching paid against amount.
func DeriveStatus(paid, amount decimal.Decimal) Status {
	switch {
	case paid.GreaterThanOrEqual(amount):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// Charge is one billable obligation of a student.
// Its PaidAmount only grows, through Service.ApplyPayment.
type Charge struct {
	ID            string          `json:"id"`
	StudentID     string          `json:"student_id"`
	FeeType       string          `json:"fee_type"`
	Amount        decimal.Decimal `json:"amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	DueDate       time.Time       `json:"due_date"`
	Status        Status          `json:"status"`
	PaymentDate   *time.Time      `json:"payment_date"`
	PaymentMethod string          `json:"payment_method"`
	TransactionID string          `json:"transaction_id"`
	Remarks       string          `json:"remarks"`
	CollectedBy   string          `json:"collected_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (ch Charge) Balance() decimal.Decimal {
	return ch.Amount.Sub(ch.PaidAmount)
}

func (ch Charge) IsOpen() bool {
	return ch.Status == StatusUnpaid || ch.Status == StatusPartial
}

// IsOverdue reports whether the charge is still open after its due date.
func (ch Charge) IsOverdue(today time.Time) bool {
	return ch.IsOpen() && ch.DueDate.Before(core.TruncateDate(today))
}

func (ch Charge) DisplayStatus(today time.Time) Status {
	if ch.IsOverdue(today) {
		return StatusOverdue
	}
	return ch.Status
}

// pay returns the charge after a payment of amount stamped with the payment metadata.
// The receiver is left untouched on error.
func (ch Charge) pay(amount decimal.Decimal, req PaymentRequest, now time.Time) (Charge, error) {
	if !ch.IsOpen() || ch.Balance().Sign() <= 0 {
		return ch, ErrChargeSettled
	}
	newPaid := ch.PaidAmount.Add(amount)
	if newPaid.GreaterThan(ch.Amount) {
		return ch, &OverpaymentError{ChargeID: ch.ID, Amount: amount, Balance: ch.Balance()}
	}

	paidOn := req.Date
	ch.PaidAmount = newPaid
	ch.Status = DeriveStatus(newPaid, ch.Amount)
	ch.PaymentDate = &paidOn
	ch.PaymentMethod = req.Method
	ch.TransactionID = req.TransactionRef
	ch.Remarks = req.Remarks
	ch.CollectedBy = req.CollectedBy
	ch.UpdatedAt = now
	return ch, nil
}

// ChargeView is a charge as shown to callers, with derived fields.
type ChargeView struct {
	Charge
	Balance       decimal.Decimal `json:"balance"`
	DisplayStatus Status          `json:"display_status"`
}

func (ch Charge) View(today time.Time) ChargeView {
	return ChargeView{Charge: ch, Balance: ch.Balance(), DisplayStatus: ch.DisplayStatus(today)}
}

// PaymentEvent is the append-only record of one accepted payment line.
type PaymentEvent struct {
	ID            string          `json:"id"`
	ChargeID      string          `json:"charge_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaidBefore    decimal.Decimal `json:"paid_before"`
	PaidAfter     decimal.Decimal `json:"paid_after"`
	StatusAfter   Status          `json:"status_after"`
	Method        string          `json:"method"`
	TransactionID string          `json:"transaction_id"`
	Remarks       string          `json:"remarks"`
	CollectedBy   string          `json:"collected_by"`
	PaidOn        time.Time       `json:"paid_on"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewCharge contains information needed to assess a single charge.
type NewCharge struct {
	StudentID string          `json:"student_id" validate:"required"`
	FeeType   string          `json:"fee_type" validate:"required,notblank"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	DueDate   time.Time       `json:"due_date" validate:"required"`
	Remarks   string          `json:"remarks"`
}

// FeeStructure assesses the same charge on every active student of a class.
type FeeStructure struct {
	ClassID string          `json:"class_id" validate:"required"`
	FeeType string          `json:"fee_type" validate:"required,notblank"`
	Amount  decimal.Decimal `json:"amount" validate:"gt=0"`
	DueDate time.Time       `json:"due_date" validate:"required"`
	Remarks string          `json:"remarks"`
}

type AssessError struct {
	StudentID string `json:"student_id"`
	Message   string `json:"message"`
}

type AssessReport struct {
	Created []Charge      `json:"created"`
	Errors  []AssessError `json:"errors"`
}

type ChargeFilter struct {
	StudentID string
	FeeType   string
	// Statuses are stored statuses. Use Service.QueryCharges with StatusOverdue for the derived one.
	Statuses  []Status
	DueBefore *time.Time
	Ordering  []core.DBOrdering
}

type SummaryFilter struct {
	StudentID string
	ClassID   string
	FeeType   string
	AsOf      time.Time // overdue reference date
}

// Summary aggregates charges.
type Summary struct {
	Charges          int             `json:"charges"`
	TotalDue         decimal.Decimal `json:"total_due"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	TotalOverdue     decimal.Decimal `json:"total_overdue"`
	Unpaid           int             `json:"unpaid"`
	Partial          int             `json:"partial"`
	Paid             int             `json:"paid"`
	Overdue          int             `json:"overdue"`
}
