package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
)

type feeRepository struct {
	charge  *chargeTable
	payment *paymentTable
	student *studentTable
}

var (
	_ fee.Repository       = (*feeRepository)(nil) // interface compliance check
	_ fee.ReportRepository = (*feeRepository)(nil)
)

func newFeeRepository(db *DB) *feeRepository {
	return &feeRepository{charge: db.charge, payment: db.payment, student: db.student}
}

func NewFeeRepository(db *DB) fee.Repository {
	return newFeeRepository(db)
}

func NewFeeReportRepository(db *DB) fee.ReportRepository {
	return newFeeRepository(db)
}

func (repo *feeRepository) CreateCharge(_ context.Context, ch fee.Charge, _ ...core.DBExecutor) (fee.Charge, error) {
	repo.charge.Lock()
	defer repo.charge.Unlock()

	if ch.ID == "" {
		ch.ID = uuid.New().String()
	}
	repo.charge.table[ch.ID] = &ch
	return ch, nil
}

func (repo *feeRepository) GetCharge(_ context.Context, id string, _ ...core.DBExecutor) (fee.Charge, error) {
	repo.charge.RLock()
	defer repo.charge.RUnlock()

	if ch, ok := repo.charge.table[id]; ok {
		return *ch, nil
	}
	return fee.Charge{}, fee.ErrChargeNotFound
}

func matchCharge(ch *fee.Charge, filter fee.ChargeFilter) bool {
	if filter.StudentID != "" && ch.StudentID != filter.StudentID {
		return false
	}
	if filter.FeeType != "" && ch.FeeType != filter.FeeType {
		return false
	}
	if filter.DueBefore != nil && !ch.DueDate.Before(*filter.DueBefore) {
		return false
	}
	if len(filter.Statuses) > 0 {
		for _, st := range filter.Statuses {
			if ch.Status == st {
				return true
			}
		}
		return false
	}
	return true
}

// QueryCharges ignores filter.Ordering: charges come by due date, then creation time.
func (repo *feeRepository) QueryCharges(_ context.Context, filter fee.ChargeFilter, _ ...core.DBExecutor) ([]fee.Charge, error) {
	repo.charge.RLock()
	defer repo.charge.RUnlock()

	charges := make([]fee.Charge, 0)
	for _, ch := range repo.charge.table {
		if matchCharge(ch, filter) {
			charges = append(charges, *ch)
		}
	}
	sort.Slice(charges, func(i, j int) bool {
		a, b := charges[i], charges[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return charges, nil
}

func (repo *feeRepository) UpdateChargePayment(_ context.Context, ch fee.Charge, prevPaid decimal.Decimal, _ ...core.DBExecutor) error {
	repo.charge.Lock()
	defer repo.charge.Unlock()

	stored, ok := repo.charge.table[ch.ID]
	if !ok {
		return fee.ErrChargeNotFound
	}
	if !stored.PaidAmount.Equal(prevPaid) {
		return fee.ErrStaleCharge
	}
	stored.PaidAmount = ch.PaidAmount
	stored.Status = ch.Status
	stored.PaymentDate = ch.PaymentDate
	stored.PaymentMethod = ch.PaymentMethod
	stored.TransactionID = ch.TransactionID
	stored.Remarks = ch.Remarks
	stored.CollectedBy = ch.CollectedBy
	stored.UpdatedAt = ch.UpdatedAt
	return nil
}

func (repo *feeRepository) CreatePaymentEvent(_ context.Context, ev fee.PaymentEvent, _ ...core.DBExecutor) (fee.PaymentEvent, error) {
	repo.payment.Lock()
	defer repo.payment.Unlock()

	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	repo.payment.rows = append(repo.payment.rows, ev)
	return ev, nil
}

func (repo *feeRepository) QueryPaymentEvents(_ context.Context, chargeID string, _ ...core.DBExecutor) ([]fee.PaymentEvent, error) {
	repo.payment.RLock()
	defer repo.payment.RUnlock()

	events := make([]fee.PaymentEvent, 0)
	for _, ev := range repo.payment.rows {
		if ev.ChargeID == chargeID {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (repo *feeRepository) ChargeSummary(_ context.Context, filter fee.SummaryFilter, _ ...core.DBExecutor) (fee.Summary, error) {
	classOf := make(map[string]string)
	if filter.ClassID != "" {
		repo.student.RLock()
		for id, std := range repo.student.table {
			classOf[id] = std.ClassID
		}
		repo.student.RUnlock()
	}

	repo.charge.RLock()
	defer repo.charge.RUnlock()

	sum := fee.Summary{
		TotalDue:         decimal.Zero,
		TotalPaid:        decimal.Zero,
		TotalOutstanding: decimal.Zero,
		TotalOverdue:     decimal.Zero,
	}
	for _, ch := range repo.charge.table {
		if (filter.StudentID != "" && ch.StudentID != filter.StudentID) ||
			(filter.FeeType != "" && ch.FeeType != filter.FeeType) ||
			(filter.ClassID != "" && classOf[ch.StudentID] != filter.ClassID) {
			continue
		}
		sum.Charges++
		sum.TotalDue = sum.TotalDue.Add(ch.Amount)
		sum.TotalPaid = sum.TotalPaid.Add(ch.PaidAmount)
		sum.TotalOutstanding = sum.TotalOutstanding.Add(ch.Balance())
		switch ch.Status {
		case fee.StatusUnpaid:
			sum.Unpaid++
		case fee.StatusPartial:
			sum.Partial++
		case fee.StatusPaid:
			sum.Paid++
		}
		if ch.IsOverdue(filter.AsOf) {
			sum.Overdue++
			sum.TotalOverdue = sum.TotalOverdue.Add(ch.Balance())
		}
	}
	return sum, nil
}
