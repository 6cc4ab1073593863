package result

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/school"
)

// CSV columns
const (
	ColStudentID     = "student_id"
	ColSubjectName   = "subject_name"
	ColExamType      = "exam_type"
	ColMarksObtained = "marks_obtained"
	ColTotalMarks    = "total_marks"
	ColRemarks       = "remarks"
)

var RequiredColumns = []string{ColStudentID, ColSubjectName, ColExamType, ColMarksObtained, ColTotalMarks}

type csvHeader map[string]int

func parseHeader(record []string) (csvHeader, error) {
	header := make(csvHeader, len(record))
	for i, col := range record {
		col = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if _, dup := header[col]; !dup {
			header[col] = i
		}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := header[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, core.NewValidationError(
			errors.Errorf("CSV must contain columns: %s (missing: %s)",
				strings.Join(RequiredColumns, ", "), strings.Join(missing, ", ")),
			core.FieldError{Field: "file", Error: "missing columns: " + strings.Join(missing, ", ")},
		)
	}
	return header, nil
}

// get returns the trimmed value of col in row, or "" when the row is too short or the column is absent.
func (h csvHeader) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseMarks(value, col string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Decimal{}, errors.Errorf("%s is required", col)
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, errors.Errorf("%s %q is not a number", col, value)
	}
	return d, nil
}

// Import records every valid row of a CSV of results.
// A missing required column rejects the whole file before any row is read.
// Otherwise each row stands alone: rows that cannot be parsed, resolved or graded are reported and skipped.
func (svc *Service) Import(ctx context.Context, r io.Reader, opts ImportOptions) (ImportReport, error) {
	maxErrors := opts.MaxReportedErrors
	if maxErrors <= 0 {
		maxErrors = svc.conf.Results.MaxReportedErrors
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if err == io.EOF {
		return ImportReport{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "the file is empty"})
	}
	if err != nil {
		return ImportReport{}, core.NewValidationError(err, core.FieldError{Field: "file", Error: err.Error()})
	}
	header, err := parseHeader(first)
	if err != nil {
		return ImportReport{}, err
	}

	report := ImportReport{Errors: make([]RowError, 0)}
	addErr := func(idx int, msg string) {
		report.TotalErrors++
		if len(report.Errors) < maxErrors {
			report.Errors = append(report.Errors, RowError{RowIndex: idx, Message: msg})
		}
	}

	gb := svc.newGradeBook()
	for idx := 0; ; idx++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				addErr(idx, err.Error())
				continue
			}
			return report, errors.Wrap(err, "reading CSV")
		}

		if err := svc.importRow(ctx, gb, header, row, opts); err != nil {
			svc.logger.Warn(fmt.Sprintf("result.Import: row %d skipped: %v", idx, err))
			addErr(idx, err.Error())
			continue
		}
		report.ImportedCount++
	}

	svc.logger.Info(fmt.Sprintf("result.Import: %d imported, %d skipped", report.ImportedCount, report.TotalErrors))
	return report, nil
}

func (svc *Service) importRow(ctx context.Context, gb *gradeBook, header csvHeader, row []string, opts ImportOptions) error {
	code := header.get(row, ColStudentID)
	subjectName := header.get(row, ColSubjectName)
	examType := header.get(row, ColExamType)
	if code == "" {
		return errors.Errorf("%s is required", ColStudentID)
	}
	if subjectName == "" {
		return errors.Errorf("%s is required", ColSubjectName)
	}
	if examType == "" {
		return errors.Errorf("%s is required", ColExamType)
	}
	obtained, err := parseMarks(header.get(row, ColMarksObtained), ColMarksObtained)
	if err != nil {
		return err
	}
	total, err := parseMarks(header.get(row, ColTotalMarks), ColTotalMarks)
	if err != nil {
		return err
	}
	if _, err = grading.ComputeGrade(obtained, total, nil); err != nil {
		return err
	}

	std, err := svc.schools.GetStudent(ctx, school.StudentFilter{Code: code})
	if err != nil {
		if errors.Cause(err) == school.ErrStudentNotFound {
			return errors.Errorf("student %s not found", code)
		}
		return core.NewStoreError(err)
	}
	sub, err := svc.schools.GetSubject(ctx, school.SubjectFilter{Name: subjectName, ClassID: std.ClassID})
	if err != nil {
		if errors.Cause(err) == school.ErrSubjectNotFound {
			return errors.Errorf("subject %s not found for student's class", subjectName)
		}
		return core.NewStoreError(err)
	}

	_, err = gb.record(ctx, std, sub, NewResult{
		ExamType:      examType,
		MarksObtained: obtained,
		TotalMarks:    total,
		Remarks:       header.get(row, ColRemarks),
		ExamDate:      opts.ExamDate,
		RecordedBy:    opts.RecordedBy,
	})
	if err != nil && !core.IsNotFound(err) {
		return core.NewStoreError(err)
	}
	return err
}
