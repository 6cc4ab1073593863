package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/result"
)

const resultColumns = `id, student_id, class_id, subject_id, exam_type, marks_obtained, total_marks, percentage, grade, ` +
	`remarks, exam_date, recorded_by, created_at`

type resultRow struct {
	ID            string          `db:"id"`
	StudentID     string          `db:"student_id"`
	ClassID       string          `db:"class_id"`
	SubjectID     string          `db:"subject_id"`
	ExamType      string          `db:"exam_type"`
	MarksObtained decimal.Decimal `db:"marks_obtained"`
	TotalMarks    decimal.Decimal `db:"total_marks"`
	Percentage    decimal.Decimal `db:"percentage"`
	Grade         string          `db:"grade"`
	Remarks       string          `db:"remarks"`
	ExamDate      time.Time       `db:"exam_date"`
	RecordedBy    null.String     `db:"recorded_by"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (row resultRow) toRecord() result.Record {
	return result.Record{
		ID:            row.ID,
		StudentID:     row.StudentID,
		ClassID:       row.ClassID,
		SubjectID:     row.SubjectID,
		ExamType:      row.ExamType,
		MarksObtained: row.MarksObtained,
		TotalMarks:    row.TotalMarks,
		Percentage:    row.Percentage,
		Grade:         row.Grade,
		Remarks:       row.Remarks,
		ExamDate:      core.TruncateDate(row.ExamDate),
		RecordedBy:    row.RecordedBy.String,
		CreatedAt:     row.CreatedAt,
	}
}

// resultWhere renders filter as conditions on the result table aliased r.
// It returns false when filter cannot match any stored result.
func resultWhere(filter result.Filter) ([]string, []interface{}, bool) {
	w := new(where)
	for col, id := range map[string]string{
		"r.student_id": filter.StudentID,
		"r.class_id":   filter.ClassID,
		"r.subject_id": filter.SubjectID,
	} {
		if id == "" {
			continue
		}
		if !isUUID(id) {
			return nil, nil, false
		}
		w.add(col+" = ?", id)
	}
	if filter.ExamType != "" {
		w.add("r.exam_type = ?", filter.ExamType)
	}
	if filter.Search != "" {
		pattern := core.ContainsPattern(filter.Search)
		w.add("r.student_id IN (SELECT s.id FROM student s WHERE s.full_name ILIKE ? OR s.code ILIKE ?)", pattern, pattern)
	}
	if filter.From != nil {
		w.add("r.exam_date >= ?", core.TruncateDate(*filter.From))
	}
	if filter.To != nil {
		w.add("r.exam_date <= ?", core.TruncateDate(*filter.To))
	}
	return w.conds, w.args, true
}

type resultRepository struct {
	repository
}

var _ result.Repository = (*resultRepository)(nil) // interface compliance check

func NewResultRepository(exec core.DBExecutor) result.Repository {
	return &resultRepository{repository{exec: exec}}
}

func (repo resultRepository) CreateResult(ctx context.Context, rec result.Record, exec ...core.DBExecutor) (result.Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO result (`+resultColumns+`)
		VALUES (:id, :student_id, :class_id, :subject_id, :exam_type, :marks_obtained, :total_marks, :percentage, :grade,
		        :remarks, :exam_date, :recorded_by, :created_at)`,
		resultRow{
			ID:            rec.ID,
			StudentID:     rec.StudentID,
			ClassID:       rec.ClassID,
			SubjectID:     rec.SubjectID,
			ExamType:      rec.ExamType,
			MarksObtained: rec.MarksObtained,
			TotalMarks:    rec.TotalMarks,
			Percentage:    rec.Percentage,
			Grade:         rec.Grade,
			Remarks:       rec.Remarks,
			ExamDate:      rec.ExamDate,
			RecordedBy:    null.NewString(rec.RecordedBy, isUUID(rec.RecordedBy)),
			CreatedAt:     rec.CreatedAt.UTC(),
		})
	if err != nil {
		return result.Record{}, errors.Wrap(err, "inserting result")
	}
	return rec, nil
}

func (repo resultRepository) QueryResults(ctx context.Context, filter result.Filter, exec ...core.DBExecutor) ([]result.Record, error) {
	conds, args, ok := resultWhere(filter)
	if !ok {
		return []result.Record{}, nil
	}
	w := &where{conds: conds, args: args}
	q, args := w.query(`SELECT `+resultColumns+` FROM result r`, "ORDER BY r.exam_date DESC, r.created_at DESC, r.id")

	var rows []resultRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying results")
	}
	records := make([]result.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}
