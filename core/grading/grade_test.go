package grading

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func boundary(grade, min, max string) Boundary {
	return Boundary{Grade: grade, MinPercentage: dec(min), MaxPercentage: dec(max)}
}

func TestComputeGrade(t *testing.T) {
	configured := Table{
		boundary("Pass", "50", "100"),
		boundary("Distinction", "85", "100"),
		boundary("Fail", "0", "49.99"),
	}

	tests := []struct {
		name      string
		obtained  string
		total     string
		table     Table
		wantPct   string
		wantGrade string
		wantErr   bool
	}{
		{name: "default ladder", obtained: "75", total: "100", wantPct: "75", wantGrade: "B"},
		{name: "extra credit", obtained: "110", total: "100", wantPct: "110", wantGrade: "A+"},
		{name: "inclusive min", obtained: "90", total: "100", wantPct: "90", wantGrade: "A+"},
		{name: "just below", obtained: "89.99", total: "100", wantPct: "89.99", wantGrade: "A"},
		{name: "lowest rung", obtained: "39", total: "100", wantPct: "39", wantGrade: "F"},
		{name: "zero marks", obtained: "0", total: "50", wantPct: "0", wantGrade: "F"},
		{name: "rounded to 2 places", obtained: "2", total: "3", wantPct: "66.67", wantGrade: "C"},
		{name: "rounds half up", obtained: "1", total: "800", wantPct: "0.13", wantGrade: "F"},
		{name: "configured table wins", obtained: "90", total: "100", table: configured, wantPct: "90", wantGrade: "Distinction"},
		{name: "configured overlap resolved by highest min", obtained: "85", total: "100", table: configured, wantPct: "85", wantGrade: "Distinction"},
		{name: "configured lower range", obtained: "60", total: "100", table: configured, wantPct: "60", wantGrade: "Pass"},
		{name: "rounded into the next range", obtained: "49.995", total: "100", table: configured, wantPct: "50", wantGrade: "Pass"},
		{name: "no configured match falls back", obtained: "105", total: "100", table: configured, wantPct: "105", wantGrade: "A+"},
		{name: "zero total", obtained: "10", total: "0", wantErr: true},
		{name: "negative total", obtained: "10", total: "-5", wantErr: true},
		{name: "negative obtained", obtained: "-1", total: "100", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeGrade(dec(tt.obtained), dec(tt.total), tt.table)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsInvalidMarks(err))
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.wantPct).Equal(got.Percentage), "percentage = %s, want %s", got.Percentage, tt.wantPct)
			assert.Equal(t, tt.wantGrade, got.Grade)
		})
	}
}

func TestComputeGrade_GapWithoutFallbackMatch(t *testing.T) {
	table := Table{boundary("Top", "95", "100")}
	got, err := ComputeGrade(dec("72"), dec("100"), table)
	require.NoError(t, err)
	assert.Equal(t, "B", got.Grade)
}

func TestComputeGrade_GradePoint(t *testing.T) {
	b := boundary("A", "80", "100")
	b.GradePoint = decimal.NewNullDecimal(dec("4.0"))
	got, err := ComputeGrade(dec("40"), dec("50"), Table{b})
	require.NoError(t, err)
	assert.True(t, got.GradePoint.Valid)
	assert.True(t, dec("4").Equal(got.GradePoint.Decimal))
}

func TestTable_LookupDoesNotReorderInput(t *testing.T) {
	table := Table{
		boundary("C", "60", "69.99"),
		boundary("A", "80", "100"),
		boundary("B", "70", "79.99"),
	}
	b, ok := table.Lookup(dec("71"))
	require.True(t, ok)
	assert.Equal(t, "B", b.Grade)
	assert.Equal(t, "C", table[0].Grade)
}

func TestTable_LookupTiesKeepInsertionOrder(t *testing.T) {
	table := Table{
		boundary("first", "50", "100"),
		boundary("second", "50", "100"),
	}
	for i := 0; i < 10; i++ {
		b, ok := table.Lookup(dec("75"))
		require.True(t, ok)
		assert.Equal(t, "first", b.Grade)
	}
}

func TestComputeGrade_Monotonic(t *testing.T) {
	tables := map[string]Table{
		"default": nil,
		"configured": {
			boundary("A", "75", "100"),
			boundary("B", "60", "74.99"),
			boundary("C", "45", "59.99"),
			boundary("F", "0", "44.99"),
		},
	}
	for name, table := range tables {
		t.Run(name, func(t *testing.T) {
			prevRank := -1
			for obtained := int64(150); obtained >= 0; obtained-- {
				got, err := ComputeGrade(decimal.NewFromInt(obtained), dec("150"), table)
				require.NoError(t, err)
				rank := table.Rank(got.Grade)
				if rank < prevRank {
					t.Fatalf("grade(%d/150) = %s ranks better than a higher mark", obtained, got.Grade)
				}
				prevRank = rank
			}
		})
	}
}
