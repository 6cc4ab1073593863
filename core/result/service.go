package result

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/school"
)

type Service struct {
	repo    Repository
	reports ReportRepository
	schools school.Repository
	grades  *grading.Service
	conf    *core.Config
	logger  core.Logger
}

func NewService(
	repo Repository,
	reports ReportRepository,
	schools school.Repository,
	grades *grading.Service,
	conf *core.Config,
	logger core.Logger,
) *Service {
	return &Service{
		repo:    repo,
		reports: reports,
		schools: schools,
		grades:  grades,
		conf:    conf,
		logger:  logger,
	}
}

// gradeBook caches what grading a row needs across one call.
type gradeBook struct {
	svc     *Service
	classes map[string]school.Class
	tables  map[string]grading.Table
}

func (svc *Service) newGradeBook() *gradeBook {
	return &gradeBook{
		svc:     svc,
		classes: make(map[string]school.Class),
		tables:  make(map[string]grading.Table),
	}
}

func (gb *gradeBook) table(ctx context.Context, classID string) (grading.Table, error) {
	cls, ok := gb.classes[classID]
	if !ok {
		var err error
		if cls, err = gb.svc.schools.GetClass(ctx, classID); err != nil {
			return nil, err
		}
		gb.classes[classID] = cls
	}
	table, ok := gb.tables[cls.AcademicYear]
	if !ok {
		var err error
		if table, err = gb.svc.grades.Table(ctx, cls.AcademicYear); err != nil {
			return nil, err
		}
		gb.tables[cls.AcademicYear] = table
	}
	return table, nil
}

// record grades and stores one result. Single entry and bulk import both go through here.
func (gb *gradeBook) record(ctx context.Context, std school.Student, sub school.Subject, nr NewResult) (Record, error) {
	table, err := gb.table(ctx, std.ClassID)
	if err != nil {
		return Record{}, err
	}
	res, err := grading.ComputeGrade(nr.MarksObtained, nr.TotalMarks, table)
	if err != nil {
		return Record{}, err
	}

	examDate := nr.ExamDate
	if examDate.IsZero() {
		examDate = core.Today()
	}
	rec := Record{
		ID:            uuid.New().String(),
		StudentID:     std.ID,
		ClassID:       std.ClassID,
		SubjectID:     sub.ID,
		ExamType:      nr.ExamType,
		MarksObtained: nr.MarksObtained,
		TotalMarks:    nr.TotalMarks,
		Percentage:    res.Percentage,
		Grade:         res.Grade,
		Remarks:       nr.Remarks,
		ExamDate:      core.TruncateDate(examDate),
		RecordedBy:    nr.RecordedBy,
		CreatedAt:     core.NowFunc().UTC(),
	}
	return gb.svc.repo.CreateResult(ctx, rec)
}

func marksError(err error) error {
	mErr, ok := err.(*grading.InvalidMarksError)
	if !ok {
		return err
	}
	field := "marks_obtained"
	if !mErr.Total.IsPositive() {
		field = "total_marks"
	}
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// Record validates, grades and stores a single result.
func (svc *Service) Record(ctx context.Context, nr NewResult) (Record, error) {
	nr.ExamType = core.CleanString(nr.ExamType)
	nr.Remarks = core.CleanString(nr.Remarks)
	if nr.ExamType == "" {
		return Record{}, core.NewValidationError(nil, core.FieldError{Field: "exam_type", Error: "this field is required"})
	}
	if _, err := grading.ComputeGrade(nr.MarksObtained, nr.TotalMarks, nil); err != nil {
		return Record{}, marksError(err)
	}

	std, err := svc.schools.GetStudent(ctx, school.StudentFilter{ID: nr.StudentID})
	if err != nil {
		return Record{}, err
	}
	sub, err := svc.schools.GetSubject(ctx, school.SubjectFilter{ID: nr.SubjectID})
	if err != nil {
		return Record{}, err
	}
	if sub.ClassID != std.ClassID {
		return Record{}, core.NewValidationError(nil, core.FieldError{
			Field: "subject_id",
			Error: "subject is not taught in the student's class",
		})
	}

	rec, err := svc.newGradeBook().record(ctx, std, sub, nr)
	if err != nil {
		return Record{}, errors.Wrap(err, "recording result")
	}
	return rec, nil
}

// Query returns the matching results with their aggregates.
func (svc *Service) Query(ctx context.Context, filter Filter) (QueryResult, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return QueryResult{}, core.NewValidationError(nil, core.FieldError{Field: "from", Error: "from must be before to"})
	}
	filter.Search = core.CleanString(filter.Search)

	results, err := svc.repo.QueryResults(ctx, filter)
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "querying results")
	}
	stats, err := svc.reports.ResultStats(ctx, filter)
	if err != nil {
		return QueryResult{}, errors.Wrap(err, "computing result stats")
	}
	return QueryResult{Results: results, Stats: stats}, nil
}

// ReportCard computes a student's per-subject averages and grades for an exam type (all exams when empty).
func (svc *Service) ReportCard(ctx context.Context, studentID, examType string) (ReportCard, error) {
	std, err := svc.schools.GetStudent(ctx, school.StudentFilter{ID: studentID})
	if err != nil {
		return ReportCard{}, err
	}
	examType = core.CleanString(examType)

	table, err := svc.newGradeBook().table(ctx, std.ClassID)
	if err != nil {
		return ReportCard{}, err
	}
	avgs, err := svc.reports.SubjectAverages(ctx, std.ID, examType)
	if err != nil {
		return ReportCard{}, errors.Wrap(err, "averaging results")
	}

	card := ReportCard{
		Student:           std,
		ExamType:          examType,
		Lines:             make([]ReportCardLine, 0, len(avgs)),
		OverallPercentage: decimal.Zero,
	}
	if len(avgs) == 0 {
		return card, nil
	}

	sum := decimal.Zero
	for _, avg := range avgs {
		pct := avg.AveragePercentage.Round(2)
		sum = sum.Add(pct)
		card.Lines = append(card.Lines, ReportCardLine{
			SubjectID:         avg.SubjectID,
			SubjectName:       avg.SubjectName,
			Exams:             avg.Exams,
			AveragePercentage: pct,
			Grade:             grading.GradeFor(pct, table).Grade,
		})
	}
	card.OverallPercentage = sum.Div(decimal.NewFromInt(int64(len(avgs)))).Round(2)
	card.OverallGrade = grading.GradeFor(card.OverallPercentage, table).Grade
	return card, nil
}
