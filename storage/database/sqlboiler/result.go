package boiledrepos

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/result"
)

type statsRow struct {
	Count             int                 `boil:"count"`
	Students          int                 `boil:"students"`
	AveragePercentage decimal.NullDecimal `boil:"average_percentage"`
	HighestPercentage decimal.NullDecimal `boil:"highest_percentage"`
	LowestPercentage  decimal.NullDecimal `boil:"lowest_percentage"`
}

type subjectAverageRow struct {
	SubjectID         string          `boil:"subject_id"`
	SubjectName       null.String     `boil:"subject_name"`
	Exams             int             `boil:"exams"`
	AveragePercentage decimal.Decimal `boil:"average_percentage"`
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// filterMods renders filter as where clauses on the result table aliased r.
func filterMods(filter result.Filter) []qm.QueryMod {
	var mods []qm.QueryMod
	if filter.StudentID != "" {
		mods = append(mods, qm.Where("r.student_id::text = ?", filter.StudentID))
	}
	if filter.ClassID != "" {
		mods = append(mods, qm.Where("r.class_id::text = ?", filter.ClassID))
	}
	if filter.SubjectID != "" {
		mods = append(mods, qm.Where("r.subject_id::text = ?", filter.SubjectID))
	}
	if filter.ExamType != "" {
		mods = append(mods, qm.Where("r.exam_type = ?", filter.ExamType))
	}
	if filter.Search != "" {
		pattern := core.ContainsPattern(filter.Search)
		mods = append(mods, qm.Where(
			"r.student_id IN (SELECT s.id FROM student s WHERE s.full_name ILIKE ? OR s.code ILIKE ?)", pattern, pattern))
	}
	if filter.From != nil {
		mods = append(mods, qm.Where("r.exam_date >= ?", core.TruncateDate(*filter.From)))
	}
	if filter.To != nil {
		mods = append(mods, qm.Where("r.exam_date <= ?", core.TruncateDate(*filter.To)))
	}
	return mods
}

type resultReportRepository struct {
	repository
}

var _ result.ReportRepository = (*resultReportRepository)(nil) // interface compliance check

func NewResultReportRepository(exec core.DBExecutor) result.ReportRepository {
	return &resultReportRepository{repository{exec: exec}}
}

func (repo resultReportRepository) ResultStats(ctx context.Context, filter result.Filter, exec ...core.DBExecutor) (result.Stats, error) {
	mods := append([]qm.QueryMod{
		qm.Select(
			"COUNT(*) AS count",
			"COUNT(DISTINCT r.student_id) AS students",
			"ROUND(AVG(r.percentage), 2) AS average_percentage",
			"MAX(r.percentage) AS highest_percentage",
			"MIN(r.percentage) AS lowest_percentage",
		),
		qm.From("result r"),
	}, filterMods(filter)...)

	var row statsRow
	if err := newQuery(mods...).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return result.Stats{}, errors.Wrap(err, "computing result stats")
	}
	return result.Stats{
		Count:             row.Count,
		Students:          row.Students,
		AveragePercentage: orZero(row.AveragePercentage),
		HighestPercentage: orZero(row.HighestPercentage),
		LowestPercentage:  orZero(row.LowestPercentage),
	}, nil
}

func (repo resultReportRepository) SubjectAverages(ctx context.Context, studentID, examType string, exec ...core.DBExecutor) ([]result.SubjectAverage, error) {
	mods := append([]qm.QueryMod{
		qm.Select(
			"r.subject_id::text AS subject_id",
			"s.name AS subject_name",
			"COUNT(*) AS exams",
			"AVG(r.percentage) AS average_percentage",
		),
		qm.From("result r"),
		qm.LeftOuterJoin("subject s ON s.id = r.subject_id"),
		qm.GroupBy("r.subject_id, s.name"),
		qm.OrderBy("s.name, r.subject_id"),
	}, filterMods(result.Filter{StudentID: studentID, ExamType: examType})...)

	var rows []subjectAverageRow
	if err := newQuery(mods...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "computing subject averages")
	}
	avgs := make([]result.SubjectAverage, 0, len(rows))
	for _, row := range rows {
		avgs = append(avgs, result.SubjectAverage{
			SubjectID:         row.SubjectID,
			SubjectName:       row.SubjectName.String,
			Exams:             row.Exams,
			AveragePercentage: row.AveragePercentage,
		})
	}
	return avgs, nil
}
