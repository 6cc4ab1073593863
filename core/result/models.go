package result

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

// Record is one exam outcome of a student in a subject. Records are never updated.
type Record struct {
	ID            string          `json:"id"`
	StudentID     string          `json:"student_id"`
	ClassID       string          `json:"class_id"`
	SubjectID     string          `json:"subject_id"`
	ExamType      string          `json:"exam_type"`
	MarksObtained decimal.Decimal `json:"marks_obtained"`
	TotalMarks    decimal.Decimal `json:"total_marks"`
	Percentage    decimal.Decimal `json:"percentage"`
	Grade         string          `json:"grade"`
	Remarks       string          `json:"remarks"`
	ExamDate      time.Time       `json:"exam_date"`
	RecordedBy    string          `json:"recorded_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewResult contains information needed to record a single result.
type NewResult struct {
	StudentID     string
	SubjectID     string
	ExamType      string
	MarksObtained decimal.Decimal
	TotalMarks    decimal.Decimal
	Remarks       string
	ExamDate      time.Time // today when zero
	RecordedBy    string
}

// Filter selects results. Search matches the student's name or code, case-insensitively.
type Filter struct {
	StudentID string
	ClassID   string
	SubjectID string
	ExamType  string
	Search    string
	From      *time.Time
	To        *time.Time
}

type Stats struct {
	Count             int             `json:"count"`
	Students          int             `json:"students"`
	AveragePercentage decimal.Decimal `json:"average_percentage"`
	HighestPercentage decimal.Decimal `json:"highest_percentage"`
	LowestPercentage  decimal.Decimal `json:"lowest_percentage"`
}

type QueryResult struct {
	Results []Record `json:"results"`
	Stats   Stats    `json:"stats"`
}

// SubjectAverage is the mean percentage of a student in one subject.
type SubjectAverage struct {
	SubjectID         string
	SubjectName       string
	Exams             int
	AveragePercentage decimal.Decimal
}

type ReportCardLine struct {
	SubjectID         string          `json:"subject_id"`
	SubjectName       string          `json:"subject_name"`
	Exams             int             `json:"exams"`
	AveragePercentage decimal.Decimal `json:"average_percentage"`
	Grade             string          `json:"grade"`
}

type ReportCard struct {
	Student           school.Student   `json:"student"`
	ExamType          string           `json:"exam_type"`
	Lines             []ReportCardLine `json:"lines"`
	OverallPercentage decimal.Decimal  `json:"overall_percentage"`
	OverallGrade      string           `json:"overall_grade"`
}

// RowError reports a skipped import row. RowIndex counts data rows from 0; the header and empty lines do not count.
type RowError struct {
	RowIndex int    `json:"row_index"`
	Message  string `json:"message"`
}

type ImportOptions struct {
	RecordedBy string
	ExamDate   time.Time // today when zero
	// MaxReportedErrors caps ImportReport.Errors; the configured default applies when <= 0.
	MaxReportedErrors int
}

type ImportReport struct {
	ImportedCount int        `json:"imported_count"`
	Errors        []RowError `json:"errors"`
	TotalErrors   int        `json:"total_errors"`
}

type (
	Repository interface {
		CreateResult(ctx context.Context, rec Record, exec ...core.DBExecutor) (Record, error)
		// QueryResults returns matching results, latest exam first.
		QueryResults(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Record, error)
	}

	ReportRepository interface {
		ResultStats(ctx context.Context, filter Filter, exec ...core.DBExecutor) (Stats, error)
		// SubjectAverages returns one row per subject the student has results in, by subject name.
		// An empty examType covers all exams.
		SubjectAverages(ctx context.Context, studentID, examType string, exec ...core.DBExecutor) ([]SubjectAverage, error)
	}
)
