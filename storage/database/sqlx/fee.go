package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
)

const (
	chargeColumns = `id, student_id, fee_type, amount, paid_amount, due_date, status, payment_date, payment_method, ` +
		`transaction_id, remarks, collected_by, created_at, updated_at`
	paymentColumns = `id, charge_id, amount, paid_before, paid_after, status_after, method, transaction_id, remarks, ` +
		`collected_by, paid_on, created_at`
)

// chargeOrderings are the columns charges can be ordered by.
var chargeOrderings = map[string]bool{
	"due_date":    true,
	"created_at":  true,
	"updated_at":  true,
	"amount":      true,
	"paid_amount": true,
	"status":      true,
	"fee_type":    true,
}

type chargeRow struct {
	ID            string          `db:"id"`
	StudentID     string          `db:"student_id"`
	FeeType       string          `db:"fee_type"`
	Amount        decimal.Decimal `db:"amount"`
	PaidAmount    decimal.Decimal `db:"paid_amount"`
	DueDate       time.Time       `db:"due_date"`
	Status        string          `db:"status"`
	PaymentDate   null.Time       `db:"payment_date"`
	PaymentMethod null.String     `db:"payment_method"`
	TransactionID null.String     `db:"transaction_id"`
	Remarks       null.String     `db:"remarks"`
	CollectedBy   null.String     `db:"collected_by"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func toChargeRow(ch fee.Charge) chargeRow {
	return chargeRow{
		ID:            ch.ID,
		StudentID:     ch.StudentID,
		FeeType:       ch.FeeType,
		Amount:        ch.Amount,
		PaidAmount:    ch.PaidAmount,
		DueDate:       ch.DueDate,
		Status:        string(ch.Status),
		PaymentDate:   null.TimeFromPtr(ch.PaymentDate),
		PaymentMethod: null.NewString(ch.PaymentMethod, ch.PaymentMethod != ""),
		TransactionID: null.NewString(ch.TransactionID, ch.TransactionID != ""),
		Remarks:       null.NewString(ch.Remarks, ch.Remarks != ""),
		CollectedBy:   null.NewString(ch.CollectedBy, ch.CollectedBy != ""),
		CreatedAt:     ch.CreatedAt.UTC(),
		UpdatedAt:     ch.UpdatedAt.UTC(),
	}
}

func (row chargeRow) toCharge() fee.Charge {
	return fee.Charge{
		ID:            row.ID,
		StudentID:     row.StudentID,
		FeeType:       row.FeeType,
		Amount:        row.Amount,
		PaidAmount:    row.PaidAmount,
		DueDate:       core.TruncateDate(row.DueDate),
		Status:        fee.Status(row.Status),
		PaymentDate:   row.PaymentDate.Ptr(),
		PaymentMethod: row.PaymentMethod.String,
		TransactionID: row.TransactionID.String,
		Remarks:       row.Remarks.String,
		CollectedBy:   row.CollectedBy.String,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

// casRow is a charge update guarded by the paid amount it was computed from.
type casRow struct {
	chargeRow
	PrevPaid decimal.Decimal `db:"prev_paid"`
}

type paymentRow struct {
	ID            string          `db:"id"`
	ChargeID      string          `db:"charge_id"`
	Amount        decimal.Decimal `db:"amount"`
	PaidBefore    decimal.Decimal `db:"paid_before"`
	PaidAfter     decimal.Decimal `db:"paid_after"`
	StatusAfter   string          `db:"status_after"`
	Method        string          `db:"method"`
	TransactionID string          `db:"transaction_id"`
	Remarks       string          `db:"remarks"`
	CollectedBy   string          `db:"collected_by"`
	PaidOn        time.Time       `db:"paid_on"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (row paymentRow) toEvent() fee.PaymentEvent {
	return fee.PaymentEvent{
		ID:            row.ID,
		ChargeID:      row.ChargeID,
		Amount:        row.Amount,
		PaidBefore:    row.PaidBefore,
		PaidAfter:     row.PaidAfter,
		StatusAfter:   fee.Status(row.StatusAfter),
		Method:        row.Method,
		TransactionID: row.TransactionID,
		Remarks:       row.Remarks,
		CollectedBy:   row.CollectedBy,
		PaidOn:        core.TruncateDate(row.PaidOn),
		CreatedAt:     row.CreatedAt,
	}
}

type feeRepository struct {
	repository
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(exec core.DBExecutor) fee.Repository {
	return &feeRepository{repository{exec: exec}}
}

func (repo feeRepository) CreateCharge(ctx context.Context, ch fee.Charge, exec ...core.DBExecutor) (fee.Charge, error) {
	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO fee_charge (`+chargeColumns+`)
		VALUES (:id, :student_id, :fee_type, :amount, :paid_amount, :due_date, :status, :payment_date, :payment_method,
		        :transaction_id, :remarks, :collected_by, :created_at, :updated_at)`,
		toChargeRow(ch))
	if err != nil {
		return fee.Charge{}, errors.Wrap(err, "inserting fee charge")
	}
	return ch, nil
}

// GetCharge locks the row when called inside a transaction.
func (repo feeRepository) GetCharge(ctx context.Context, id string, exec ...core.DBExecutor) (fee.Charge, error) {
	if !isUUID(id) {
		return fee.Charge{}, fee.ErrChargeNotFound
	}
	q := `SELECT ` + chargeColumns + ` FROM fee_charge WHERE id = $1`
	if inTx(exec) {
		q += " FOR UPDATE"
	}

	var rows []chargeRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, id); err != nil {
		return fee.Charge{}, errors.Wrap(err, "finding fee charge")
	}
	if len(rows) == 0 {
		return fee.Charge{}, fee.ErrChargeNotFound
	}
	return rows[0].toCharge(), nil
}

func (repo feeRepository) QueryCharges(ctx context.Context, filter fee.ChargeFilter, exec ...core.DBExecutor) ([]fee.Charge, error) {
	w := new(where)
	if filter.StudentID != "" {
		if !isUUID(filter.StudentID) {
			return []fee.Charge{}, nil
		}
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.FeeType != "" {
		w.add("fee_type = ?", filter.FeeType)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		if err := w.in("status", statuses); err != nil {
			return nil, err
		}
	}
	if filter.DueBefore != nil {
		w.add("due_date < ?", core.TruncateDate(*filter.DueBefore))
	}
	q, args := w.query(`SELECT `+chargeColumns+` FROM fee_charge`,
		orderBy(filter.Ordering, chargeOrderings, "due_date, created_at, id"))

	var rows []chargeRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying fee charges")
	}
	charges := make([]fee.Charge, 0, len(rows))
	for _, row := range rows {
		charges = append(charges, row.toCharge())
	}
	return charges, nil
}

func (repo feeRepository) UpdateChargePayment(ctx context.Context, ch fee.Charge, prevPaid decimal.Decimal, exec ...core.DBExecutor) error {
	if !isUUID(ch.ID) {
		return fee.ErrChargeNotFound
	}
	exe := repo.getExec(exec)
	res, err := namedExec(ctx, exe, `
		UPDATE fee_charge SET
			paid_amount = :paid_amount,
			status = :status,
			payment_date = :payment_date,
			payment_method = :payment_method,
			transaction_id = :transaction_id,
			remarks = :remarks,
			collected_by = :collected_by,
			updated_at = :updated_at
		WHERE id = :id AND paid_amount = :prev_paid`,
		casRow{chargeRow: toChargeRow(ch), PrevPaid: prevPaid})
	if err != nil {
		return errors.Wrap(err, "updating fee charge")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "updating fee charge")
	}
	if n > 0 {
		return nil
	}

	found, err := exists(ctx, exe, `SELECT EXISTS(SELECT 1 FROM fee_charge WHERE id = $1)`, ch.ID)
	if err != nil {
		return errors.Wrap(err, "checking fee charge")
	}
	if !found {
		return fee.ErrChargeNotFound
	}
	return fee.ErrStaleCharge
}

func (repo feeRepository) CreatePaymentEvent(ctx context.Context, ev fee.PaymentEvent, exec ...core.DBExecutor) (fee.PaymentEvent, error) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO fee_payment (`+paymentColumns+`)
		VALUES (:id, :charge_id, :amount, :paid_before, :paid_after, :status_after, :method, :transaction_id, :remarks,
		        :collected_by, :paid_on, :created_at)`,
		paymentRow{
			ID:            ev.ID,
			ChargeID:      ev.ChargeID,
			Amount:        ev.Amount,
			PaidBefore:    ev.PaidBefore,
			PaidAfter:     ev.PaidAfter,
			StatusAfter:   string(ev.StatusAfter),
			Method:        ev.Method,
			TransactionID: ev.TransactionID,
			Remarks:       ev.Remarks,
			CollectedBy:   ev.CollectedBy,
			PaidOn:        ev.PaidOn,
			CreatedAt:     ev.CreatedAt.UTC(),
		})
	if err != nil {
		return fee.PaymentEvent{}, errors.Wrap(err, "inserting fee payment")
	}
	return ev, nil
}

func (repo feeRepository) QueryPaymentEvents(ctx context.Context, chargeID string, exec ...core.DBExecutor) ([]fee.PaymentEvent, error) {
	if !isUUID(chargeID) {
		return []fee.PaymentEvent{}, nil
	}
	var rows []paymentRow
	err := selectAll(ctx, repo.getExec(exec), &rows,
		`SELECT `+paymentColumns+` FROM fee_payment WHERE charge_id = $1 ORDER BY created_at, id`, chargeID)
	if err != nil {
		return nil, errors.Wrap(err, "querying fee payments")
	}
	events := make([]fee.PaymentEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toEvent())
	}
	return events, nil
}
