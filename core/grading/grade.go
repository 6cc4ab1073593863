package grading

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)

	defaultLadder = []struct {
		min   decimal.Decimal
		grade string
	}{
		{decimal.NewFromInt(90), "A+"},
		{decimal.NewFromInt(80), "A"},
		{decimal.NewFromInt(70), "B"},
		{decimal.NewFromInt(60), "C"},
		{decimal.NewFromInt(50), "D"},
		{decimal.NewFromInt(40), "E"},
		{decimal.Zero, "F"},
	}
)

// Percentage returns obtained/total*100 rounded to 2 decimal places.
// total must be positive.
func Percentage(obtained, total decimal.Decimal) decimal.Decimal {
	return obtained.Mul(hundred).Div(total).Round(2)
}

// DefaultGrade maps pct on the fixed A+ to F ladder.
func DefaultGrade(pct decimal.Decimal) string {
	for _, step := range defaultLadder {
		if pct.GreaterThanOrEqual(step.min) {
			return step.grade
		}
	}
	return "F"
}

// ComputeGrade computes the percentage of obtained over total and maps it to a grade.
// The table is consulted first; the default ladder applies when it is empty or has no matching range.
// Obtained marks above total are accepted and the percentage is not clamped.
func ComputeGrade(obtained, total decimal.Decimal, table Table) (Result, error) {
	if !total.IsPositive() || obtained.IsNegative() {
		return Result{}, &InvalidMarksError{Obtained: obtained, Total: total}
	}

	return GradeFor(Percentage(obtained, total), table), nil
}

// GradeFor maps an already computed percentage through table, falling back to the default ladder.
func GradeFor(pct decimal.Decimal, table Table) Result {
	if b, ok := table.Lookup(pct); ok {
		return Result{Percentage: pct, Grade: b.Grade, GradePoint: b.GradePoint}
	}
	return Result{Percentage: pct, Grade: DefaultGrade(pct)}
}
