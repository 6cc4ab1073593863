package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

type (
	Repository interface {
		CreateCharge(ctx context.Context, ch Charge, exec ...core.DBExecutor) (Charge, error)
		// GetCharge returns ErrChargeNotFound when id does not exist.
		GetCharge(ctx context.Context, id string, exec ...core.DBExecutor) (Charge, error)
		QueryCharges(ctx context.Context, filter ChargeFilter, exec ...core.DBExecutor) ([]Charge, error)
		// UpdateChargePayment writes the payment fields of ch only if the stored paid amount still equals prevPaid.
		// It returns ErrStaleCharge otherwise.
		UpdateChargePayment(ctx context.Context, ch Charge, prevPaid decimal.Decimal, exec ...core.DBExecutor) error
		CreatePaymentEvent(ctx context.Context, ev PaymentEvent, exec ...core.DBExecutor) (PaymentEvent, error)
		// QueryPaymentEvents returns the events of a charge, oldest first.
		QueryPaymentEvents(ctx context.Context, chargeID string, exec ...core.DBExecutor) ([]PaymentEvent, error)
	}

	ReportRepository interface {
		ChargeSummary(ctx context.Context, filter SummaryFilter, exec ...core.DBExecutor) (Summary, error)
	}

	Service struct {
		repo    Repository
		reports ReportRepository
		schools school.Repository
		db      core.DB // nil with in-memory repositories
		conf    *core.Config
		logger  core.Logger
		mailSvc core.EmailService
	}
)

func NewService(
	repo Repository,
	reports ReportRepository,
	schools school.Repository,
	db core.DB,
	conf *core.Config,
	logger core.Logger,
	mailSvc core.EmailService,
) *Service {
	return &Service{
		repo:    repo,
		reports: reports,
		schools: schools,
		db:      db,
		conf:    conf,
		logger:  logger,
		mailSvc: mailSvc,
	}
}

func checkAssessment(feeType string, amount decimal.Decimal, dueDate time.Time) error {
	var flds []core.FieldError
	if core.CleanString(feeType) == "" {
		flds = append(flds, core.FieldError{Field: "fee_type", Error: "this field is required"})
	}
	if !amount.IsPositive() {
		flds = append(flds, core.FieldError{Field: "amount", Error: "amount must be greater than 0"})
	}
	if dueDate.IsZero() {
		flds = append(flds, core.FieldError{Field: "due_date", Error: "this field is required"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func newCharge(studentID, feeType string, amount decimal.Decimal, dueDate time.Time, remarks string) Charge {
	now := core.NowFunc().UTC()
	return Charge{
		ID:         uuid.New().String(),
		StudentID:  studentID,
		FeeType:    core.CleanString(feeType),
		Amount:     amount,
		PaidAmount: decimal.Zero,
		DueDate:    core.TruncateDate(dueDate),
		Status:     StatusUnpaid,
		Remarks:    core.CleanString(remarks),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AssessCharge creates an Unpaid charge for a student.
func (svc *Service) AssessCharge(ctx context.Context, nc NewCharge) (Charge, error) {
	if err := checkAssessment(nc.FeeType, nc.Amount, nc.DueDate); err != nil {
		return Charge{}, err
	}
	std, err := svc.schools.GetStudent(ctx, school.StudentFilter{ID: nc.StudentID})
	if err != nil {
		return Charge{}, err
	}

	ch, err := svc.repo.CreateCharge(ctx, newCharge(std.ID, nc.FeeType, nc.Amount, nc.DueDate, nc.Remarks))
	if err != nil {
		return Charge{}, errors.Wrap(err, "creating fee charge")
	}
	return ch, nil
}

// AssessClass creates the fee structure's charge for every active student of the class.
// A failure on one student does not stop the others.
func (svc *Service) AssessClass(ctx context.Context, fs FeeStructure) (AssessReport, error) {
	if err := checkAssessment(fs.FeeType, fs.Amount, fs.DueDate); err != nil {
		return AssessReport{}, err
	}
	if _, err := svc.schools.GetClass(ctx, fs.ClassID); err != nil {
		return AssessReport{}, err
	}
	students, err := svc.schools.QueryStudents(ctx, school.StudentFilter{ClassID: fs.ClassID, Status: school.StudentActive})
	if err != nil {
		return AssessReport{}, errors.Wrap(err, "querying students")
	}

	report := AssessReport{Created: make([]Charge, 0, len(students)), Errors: make([]AssessError, 0)}
	for _, std := range students {
		ch, err := svc.repo.CreateCharge(ctx, newCharge(std.ID, fs.FeeType, fs.Amount, fs.DueDate, fs.Remarks))
		if err != nil {
			svc.logger.Error(fmt.Sprintf("fee.AssessClass(%s): %v", std.ID, err), err)
			report.Errors = append(report.Errors, AssessError{StudentID: std.ID, Message: core.NewStoreError(err).Error()})
			continue
		}
		report.Created = append(report.Created, ch)
	}
	return report, nil
}

// QueryCharges returns charges matching filter.
// StatusOverdue selects open charges due before today.
func (svc *Service) QueryCharges(ctx context.Context, filter ChargeFilter) ([]Charge, error) {
	statuses := make([]Status, 0, len(filter.Statuses))
	for _, st := range filter.Statuses {
		switch st {
		case StatusOverdue:
			today := core.Today()
			filter.DueBefore = &today
			statuses = append(statuses, StatusUnpaid, StatusPartial)
		case StatusUnpaid, StatusPartial, StatusPaid:
			statuses = append(statuses, st)
		default:
			return nil, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
		}
	}
	filter.Statuses = statuses
	return svc.repo.QueryCharges(ctx, filter)
}

// PaymentHistory returns the payments applied to a charge, oldest first.
func (svc *Service) PaymentHistory(ctx context.Context, chargeID string) ([]PaymentEvent, error) {
	if _, err := svc.repo.GetCharge(ctx, chargeID); err != nil {
		return nil, err
	}
	return svc.repo.QueryPaymentEvents(ctx, chargeID)
}

// Summary aggregates the charges matching filter. Overdue is computed as of filter.AsOf (today by default).
func (svc *Service) Summary(ctx context.Context, filter SummaryFilter) (Summary, error) {
	if filter.AsOf.IsZero() {
		filter.AsOf = core.Today()
	} else {
		filter.AsOf = core.TruncateDate(filter.AsOf)
	}
	sum, err := svc.reports.ChargeSummary(ctx, filter)
	if err != nil {
		return Summary{}, errors.Wrap(err, "summarizing fee charges")
	}
	return sum, nil
}
