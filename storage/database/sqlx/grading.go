package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grading"
)

const boundaryColumns = `id, grade, min_percentage, max_percentage, grade_point, description, academic_year, created_at`

type boundaryRow struct {
	ID            string              `db:"id"`
	Grade         string              `db:"grade"`
	MinPercentage decimal.Decimal     `db:"min_percentage"`
	MaxPercentage decimal.Decimal     `db:"max_percentage"`
	GradePoint    decimal.NullDecimal `db:"grade_point"`
	Description   string              `db:"description"`
	AcademicYear  string              `db:"academic_year"`
	CreatedAt     time.Time           `db:"created_at"`
}

type gradingRepository struct {
	repository
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(exec core.DBExecutor) grading.Repository {
	return &gradingRepository{repository{exec: exec}}
}

func (repo gradingRepository) CreateBoundary(ctx context.Context, b grading.Boundary, exec ...core.DBExecutor) (grading.Boundary, error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO grade_boundary (`+boundaryColumns+`)
		VALUES (:id, :grade, :min_percentage, :max_percentage, :grade_point, :description, :academic_year, :created_at)`,
		boundaryRow{
			ID:            b.ID,
			Grade:         b.Grade,
			MinPercentage: b.MinPercentage,
			MaxPercentage: b.MaxPercentage,
			GradePoint:    b.GradePoint,
			Description:   b.Description,
			AcademicYear:  b.AcademicYear,
			CreatedAt:     b.CreatedAt.UTC(),
		})
	if err != nil {
		return grading.Boundary{}, errors.Wrap(err, "inserting grade boundary")
	}
	return b, nil
}

// QueryBoundaries keeps insertion order; grading.Table sorts on lookup.
func (repo gradingRepository) QueryBoundaries(ctx context.Context, academicYear string, exec ...core.DBExecutor) (grading.Table, error) {
	var rows []boundaryRow
	err := selectAll(ctx, repo.getExec(exec), &rows,
		`SELECT `+boundaryColumns+` FROM grade_boundary WHERE academic_year = $1 ORDER BY created_at, id`, academicYear)
	if err != nil {
		return nil, errors.Wrap(err, "querying grade boundaries")
	}
	table := make(grading.Table, 0, len(rows))
	for _, row := range rows {
		table = append(table, grading.Boundary{
			ID:            row.ID,
			Grade:         row.Grade,
			MinPercentage: row.MinPercentage,
			MaxPercentage: row.MaxPercentage,
			GradePoint:    row.GradePoint,
			Description:   row.Description,
			AcademicYear:  row.AcademicYear,
			CreatedAt:     row.CreatedAt,
		})
	}
	return table, nil
}
