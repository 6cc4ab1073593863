package grading

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
)

// Boundary maps an inclusive percentage range to a letter grade for an academic year.
type Boundary struct {
	ID            string              `json:"id"`
	Grade         string              `json:"grade"`
	MinPercentage decimal.Decimal     `json:"min_percentage"`
	MaxPercentage decimal.Decimal     `json:"max_percentage"`
	GradePoint    decimal.NullDecimal `json:"grade_point"`
	Description   string              `json:"description"`
	AcademicYear  string              `json:"academic_year"`
	CreatedAt     time.Time           `json:"created_at"`
}

func (b Boundary) Contains(pct decimal.Decimal) bool {
	return pct.GreaterThanOrEqual(b.MinPercentage) && pct.LessThanOrEqual(b.MaxPercentage)
}

// Table is a boundary table. Overlapping or gapped ranges are allowed.
type Table []Boundary

// Sorted returns a copy of the table ordered by descending MinPercentage.
// Ties keep their original order.
func (t Table) Sorted() Table {
	sorted := make(Table, len(t))
	copy(sorted, t)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinPercentage.GreaterThan(sorted[j].MinPercentage)
	})
	return sorted
}

// Lookup returns the first boundary, in descending MinPercentage order, whose range contains pct.
func (t Table) Lookup(pct decimal.Decimal) (Boundary, bool) {
	for _, b := range t.Sorted() {
		if b.Contains(pct) {
			return b, true
		}
	}
	return Boundary{}, false
}

// Rank returns the position of grade from best (0) to worst.
// Grades missing from the table rank after it, following the default ladder.
func (t Table) Rank(grade string) int {
	sorted := t.Sorted()
	for i, b := range sorted {
		if b.Grade == grade {
			return i
		}
	}
	for i, step := range defaultLadder {
		if step.grade == grade {
			return len(sorted) + i
		}
	}
	return len(sorted) + len(defaultLadder)
}

// Result is the outcome of a grade computation.
type Result struct {
	Percentage decimal.Decimal     `json:"percentage"`
	Grade      string              `json:"grade"`
	GradePoint decimal.NullDecimal `json:"grade_point"`
}

// InvalidMarksError is returned when total marks are not positive or obtained marks are negative.
type InvalidMarksError struct {
	Obtained decimal.Decimal
	Total    decimal.Decimal
}

func (err InvalidMarksError) Error() string {
	if !err.Total.IsPositive() {
		return fmt.Sprintf("invalid marks: total marks must be greater than 0, got %s", err.Total)
	}
	return fmt.Sprintf("invalid marks: marks obtained cannot be negative, got %s", err.Obtained)
}

func IsInvalidMarks(err error) bool {
	_, ok := err.(*InvalidMarksError)
	return ok
}

// NewBoundary contains information needed to add a grade boundary.
type NewBoundary struct {
	Grade         string              `json:"grade" validate:"required,notblank,max=5"`
	MinPercentage decimal.Decimal     `json:"min_percentage" validate:"gte=0,lte=100"`
	MaxPercentage decimal.Decimal     `json:"max_percentage" validate:"gte=0,lte=100"`
	GradePoint    decimal.NullDecimal `json:"grade_point" validate:"omitempty,gte=0"`
	Description   string              `json:"description"`
	AcademicYear  string              `json:"academic_year"`
}

func (nb *NewBoundary) Validate(validate *validator.Validate) error {
	nb.Grade = core.CleanString(nb.Grade)
	nb.Description = core.CleanString(nb.Description)
	nb.AcademicYear = core.CleanString(nb.AcademicYear)

	if err := validate.Struct(nb); err != nil {
		return err
	}
	return nb.checkRange()
}

// checkRange enforces 0 <= min <= max <= 100.
func (nb *NewBoundary) checkRange() error {
	for _, f := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"min_percentage", nb.MinPercentage},
		{"max_percentage", nb.MaxPercentage},
	} {
		if f.value.IsNegative() || f.value.GreaterThan(hundred) {
			return core.NewValidationError(nil, core.FieldError{
				Field: f.name,
				Error: "must be between 0 and 100",
			})
		}
	}
	if nb.MinPercentage.GreaterThan(nb.MaxPercentage) {
		return core.NewValidationError(nil, core.FieldError{
			Field: "min_percentage",
			Error: "minimum percentage must be less than or equal to maximum percentage",
		})
	}
	return nil
}

// ComputeRequest asks for the grade of a single mark.
type ComputeRequest struct {
	MarksObtained decimal.Decimal `json:"marks_obtained"`
	TotalMarks    decimal.Decimal `json:"total_marks"`
	AcademicYear  string          `json:"academic_year"`
}
