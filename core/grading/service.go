package grading

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
)

type (
	Repository interface {
		CreateBoundary(ctx context.Context, b Boundary, exec ...core.DBExecutor) (Boundary, error)
		// QueryBoundaries returns the boundaries of academicYear in insertion order.
		QueryBoundaries(ctx context.Context, academicYear string, exec ...core.DBExecutor) (Table, error)
	}

	Service struct {
		repo Repository
		conf *core.Config
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, conf: conf}
}

func (svc *Service) year(academicYear string) string {
	if academicYear = core.CleanString(academicYear); academicYear != "" {
		return academicYear
	}
	return svc.conf.Grading.DefaultAcademicYear
}

// AddBoundary stores a boundary. Overlaps with existing boundaries are not checked.
func (svc *Service) AddBoundary(ctx context.Context, nb NewBoundary) (Boundary, error) {
	if nb.Grade = core.CleanString(nb.Grade); nb.Grade == "" {
		return Boundary{}, core.NewValidationError(nil, core.FieldError{Field: "grade", Error: "this field is required"})
	}
	if err := nb.checkRange(); err != nil {
		return Boundary{}, err
	}

	b := Boundary{
		ID:            uuid.New().String(),
		Grade:         nb.Grade,
		MinPercentage: nb.MinPercentage,
		MaxPercentage: nb.MaxPercentage,
		GradePoint:    nb.GradePoint,
		Description:   nb.Description,
		AcademicYear:  svc.year(nb.AcademicYear),
		CreatedAt:     core.NowFunc().UTC(),
	}
	b, err := svc.repo.CreateBoundary(ctx, b)
	if err != nil {
		return Boundary{}, errors.Wrap(err, "creating grade boundary")
	}
	return b, nil
}

// Table returns the boundary table of academicYear (or the default year when empty).
func (svc *Service) Table(ctx context.Context, academicYear string, exec ...core.DBExecutor) (Table, error) {
	table, err := svc.repo.QueryBoundaries(ctx, svc.year(academicYear), exec...)
	if err != nil {
		return nil, errors.Wrap(err, "querying grade boundaries")
	}
	return table, nil
}

// Compute grades a mark against the table of academicYear.
// Marks are checked before the table is read.
func (svc *Service) Compute(ctx context.Context, academicYear string, obtained, total decimal.Decimal) (Result, error) {
	if _, err := ComputeGrade(obtained, total, nil); err != nil {
		return Result{}, err
	}
	table, err := svc.Table(ctx, academicYear)
	if err != nil {
		return Result{}, err
	}
	return ComputeGrade(obtained, total, table)
}
