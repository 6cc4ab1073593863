package boiledrepos

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
)

type summaryRow struct {
	Charges          int             `boil:"charges"`
	TotalDue         decimal.Decimal `boil:"total_due"`
	TotalPaid        decimal.Decimal `boil:"total_paid"`
	TotalOutstanding decimal.Decimal `boil:"total_outstanding"`
	TotalOverdue     decimal.Decimal `boil:"total_overdue"`
	Unpaid           int             `boil:"unpaid"`
	Partial          int             `boil:"partial"`
	Paid             int             `boil:"paid"`
	Overdue          int             `boil:"overdue"`
}

type feeReportRepository struct {
	repository
}

var _ fee.ReportRepository = (*feeReportRepository)(nil) // interface compliance check

func NewFeeReportRepository(exec core.DBExecutor) fee.ReportRepository {
	return &feeReportRepository{repository{exec: exec}}
}

func (repo feeReportRepository) ChargeSummary(ctx context.Context, filter fee.SummaryFilter, exec ...core.DBExecutor) (fee.Summary, error) {
	asOf := core.Today()
	if !filter.AsOf.IsZero() {
		asOf = core.TruncateDate(filter.AsOf)
	}
	overdue := fmt.Sprintf("c.status <> 'Paid' AND c.due_date < DATE '%s'", asOf.Format("2006-01-02"))
	mods := []qm.QueryMod{
		qm.Select(
			"COUNT(*) AS charges",
			"COALESCE(SUM(c.amount), 0) AS total_due",
			"COALESCE(SUM(c.paid_amount), 0) AS total_paid",
			"COALESCE(SUM(c.amount - c.paid_amount), 0) AS total_outstanding",
			"COALESCE(SUM(c.amount - c.paid_amount) FILTER (WHERE "+overdue+"), 0) AS total_overdue",
			"COUNT(*) FILTER (WHERE c.status = 'Unpaid') AS unpaid",
			"COUNT(*) FILTER (WHERE c.status = 'Partial') AS partial",
			"COUNT(*) FILTER (WHERE c.status = 'Paid') AS paid",
			"COUNT(*) FILTER (WHERE "+overdue+") AS overdue",
		),
		qm.From("fee_charge c"),
	}
	if filter.ClassID != "" {
		mods = append(mods, qm.InnerJoin("student s ON s.id = c.student_id"), qm.Where("s.class_id::text = ?", filter.ClassID))
	}
	if filter.StudentID != "" {
		mods = append(mods, qm.Where("c.student_id::text = ?", filter.StudentID))
	}
	if filter.FeeType != "" {
		mods = append(mods, qm.Where("c.fee_type = ?", filter.FeeType))
	}

	var row summaryRow
	if err := newQuery(mods...).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return fee.Summary{}, errors.Wrap(err, "summarizing fee charges")
	}
	return fee.Summary(row), nil
}
