package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

const (
	classColumns   = `id, name, grade_level, section, academic_year, created_at`
	studentColumns = `id, code, full_name, class_id, parent_name, parent_email, status, created_at`
	subjectColumns = `id, code, name, class_id, created_at`
)

type classRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	GradeLevel   string    `db:"grade_level"`
	Section      string    `db:"section"`
	AcademicYear string    `db:"academic_year"`
	CreatedAt    time.Time `db:"created_at"`
}

func (row classRow) toClass() school.Class {
	return school.Class{
		ID:           row.ID,
		Name:         row.Name,
		GradeLevel:   row.GradeLevel,
		Section:      row.Section,
		AcademicYear: row.AcademicYear,
		CreatedAt:    row.CreatedAt,
	}
}

type studentRow struct {
	ID          string      `db:"id"`
	Code        string      `db:"code"`
	FullName    string      `db:"full_name"`
	ClassID     null.String `db:"class_id"`
	ParentName  string      `db:"parent_name"`
	ParentEmail string      `db:"parent_email"`
	Status      string      `db:"status"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (row studentRow) toStudent() school.Student {
	return school.Student{
		ID:          row.ID,
		Code:        row.Code,
		FullName:    row.FullName,
		ClassID:     row.ClassID.String,
		ParentName:  row.ParentName,
		ParentEmail: row.ParentEmail,
		Status:      row.Status,
		CreatedAt:   row.CreatedAt,
	}
}

type subjectRow struct {
	ID        string      `db:"id"`
	Code      string      `db:"code"`
	Name      string      `db:"name"`
	ClassID   null.String `db:"class_id"`
	CreatedAt time.Time   `db:"created_at"`
}

func (row subjectRow) toSubject() school.Subject {
	return school.Subject{
		ID:        row.ID,
		Code:      row.Code,
		Name:      row.Name,
		ClassID:   row.ClassID.String,
		CreatedAt: row.CreatedAt,
	}
}

type schoolRepository struct {
	repository
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) school.Repository {
	return &schoolRepository{repository{exec: exec}}
}

func (repo schoolRepository) CreateClass(ctx context.Context, cls school.Class, exec ...core.DBExecutor) (school.Class, error) {
	if cls.ID == "" {
		cls.ID = uuid.New().String()
	}
	if cls.CreatedAt.IsZero() {
		cls.CreatedAt = core.NowFunc().UTC()
	}
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO class (`+classColumns+`)
		VALUES (:id, :name, :grade_level, :section, :academic_year, :created_at)`,
		classRow{
			ID:           cls.ID,
			Name:         cls.Name,
			GradeLevel:   cls.GradeLevel,
			Section:      cls.Section,
			AcademicYear: cls.AcademicYear,
			CreatedAt:    cls.CreatedAt,
		})
	if err != nil {
		return school.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo schoolRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (school.Class, error) {
	if !isUUID(id) {
		return school.Class{}, school.ErrClassNotFound
	}
	var rows []classRow
	err := selectAll(ctx, repo.getExec(exec), &rows, `SELECT `+classColumns+` FROM class WHERE id = $1`, id)
	if err != nil {
		return school.Class{}, errors.Wrap(err, "finding class")
	}
	if len(rows) == 0 {
		return school.Class{}, school.ErrClassNotFound
	}
	return rows[0].toClass(), nil
}

func (repo schoolRepository) QueryClasses(ctx context.Context, academicYear string, exec ...core.DBExecutor) ([]school.Class, error) {
	w := new(where)
	if academicYear != "" {
		w.add("academic_year = ?", academicYear)
	}
	q, args := w.query(`SELECT `+classColumns+` FROM class`, "ORDER BY academic_year DESC, grade_level, name, id")

	var rows []classRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]school.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.toClass())
	}
	return classes, nil
}

func (repo schoolRepository) CreateStudent(ctx context.Context, std school.Student, exec ...core.DBExecutor) (school.Student, error) {
	if std.ID == "" {
		std.ID = uuid.New().String()
	}
	if std.Status == "" {
		std.Status = school.StudentActive
	}
	if std.CreatedAt.IsZero() {
		std.CreatedAt = core.NowFunc().UTC()
	}
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO student (`+studentColumns+`)
		VALUES (:id, :code, :full_name, :class_id, :parent_name, :parent_email, :status, :created_at)`,
		studentRow{
			ID:          std.ID,
			Code:        std.Code,
			FullName:    std.FullName,
			ClassID:     null.NewString(std.ClassID, std.ClassID != ""),
			ParentName:  std.ParentName,
			ParentEmail: std.ParentEmail,
			Status:      std.Status,
			CreatedAt:   std.CreatedAt,
		})
	if err != nil {
		return school.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

// studentWhere returns false when filter cannot match any stored student.
func studentWhere(filter school.StudentFilter) (*where, bool) {
	w := new(where)
	if filter.ID != "" {
		if !isUUID(filter.ID) {
			return nil, false
		}
		w.add("id = ?", filter.ID)
	}
	if filter.Code != "" {
		w.add("code = ?", filter.Code)
	}
	if filter.ClassID != "" {
		if !isUUID(filter.ClassID) {
			return nil, false
		}
		w.add("class_id = ?", filter.ClassID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	return w, true
}

func (repo schoolRepository) queryStudents(ctx context.Context, filter school.StudentFilter, suffix string, exec []core.DBExecutor) ([]school.Student, error) {
	w, ok := studentWhere(filter)
	if !ok {
		return []school.Student{}, nil
	}
	q, args := w.query(`SELECT `+studentColumns+` FROM student`, "ORDER BY created_at, id "+suffix)

	var rows []studentRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]school.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toStudent())
	}
	return students, nil
}

func (repo schoolRepository) GetStudent(ctx context.Context, filter school.StudentFilter, exec ...core.DBExecutor) (school.Student, error) {
	students, err := repo.queryStudents(ctx, filter, limit(1), exec)
	if err != nil {
		return school.Student{}, err
	}
	if len(students) == 0 {
		return school.Student{}, school.ErrStudentNotFound
	}
	return students[0], nil
}

func (repo schoolRepository) QueryStudents(ctx context.Context, filter school.StudentFilter, exec ...core.DBExecutor) ([]school.Student, error) {
	return repo.queryStudents(ctx, filter, "", exec)
}

func (repo schoolRepository) SetStudentStatus(ctx context.Context, id, status string, exec ...core.DBExecutor) (school.Student, error) {
	if !isUUID(id) {
		return school.Student{}, school.ErrStudentNotFound
	}
	var rows []studentRow
	err := selectAll(ctx, repo.getExec(exec), &rows,
		`UPDATE student SET status = $1 WHERE id = $2 RETURNING `+studentColumns, status, id)
	if err != nil {
		return school.Student{}, errors.Wrap(err, "updating student status")
	}
	if len(rows) == 0 {
		return school.Student{}, school.ErrStudentNotFound
	}
	return rows[0].toStudent(), nil
}

func (repo schoolRepository) CreateSubject(ctx context.Context, sub school.Subject, exec ...core.DBExecutor) (school.Subject, error) {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = core.NowFunc().UTC()
	}
	_, err := namedExec(ctx, repo.getExec(exec), `
		INSERT INTO subject (`+subjectColumns+`)
		VALUES (:id, :code, :name, :class_id, :created_at)`,
		subjectRow{
			ID:        sub.ID,
			Code:      sub.Code,
			Name:      sub.Name,
			ClassID:   null.NewString(sub.ClassID, sub.ClassID != ""),
			CreatedAt: sub.CreatedAt,
		})
	if err != nil {
		return school.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return sub, nil
}

// subjectWhere returns false when filter cannot match any stored subject.
func subjectWhere(filter school.SubjectFilter) (*where, bool) {
	w := new(where)
	if filter.ID != "" {
		if !isUUID(filter.ID) {
			return nil, false
		}
		w.add("id = ?", filter.ID)
	}
	if filter.Code != "" {
		w.add("code = ?", filter.Code)
	}
	if filter.Name != "" {
		w.add("LOWER(name) = LOWER(?)", filter.Name)
	}
	if filter.ClassID != "" {
		if !isUUID(filter.ClassID) {
			return nil, false
		}
		w.add("class_id = ?", filter.ClassID)
	}
	return w, true
}

func (repo schoolRepository) querySubjects(ctx context.Context, filter school.SubjectFilter, suffix string, exec []core.DBExecutor) ([]school.Subject, error) {
	w, ok := subjectWhere(filter)
	if !ok {
		return []school.Subject{}, nil
	}
	q, args := w.query(`SELECT `+subjectColumns+` FROM subject`, "ORDER BY created_at, id "+suffix)

	var rows []subjectRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]school.Subject, 0, len(rows))
	for _, row := range rows {
		subjects = append(subjects, row.toSubject())
	}
	return subjects, nil
}

func (repo schoolRepository) GetSubject(ctx context.Context, filter school.SubjectFilter, exec ...core.DBExecutor) (school.Subject, error) {
	subjects, err := repo.querySubjects(ctx, filter, limit(1), exec)
	if err != nil {
		return school.Subject{}, err
	}
	if len(subjects) == 0 {
		return school.Subject{}, school.ErrSubjectNotFound
	}
	return subjects[0], nil
}

func (repo schoolRepository) QuerySubjects(ctx context.Context, filter school.SubjectFilter, exec ...core.DBExecutor) ([]school.Subject, error) {
	return repo.querySubjects(ctx, filter, "", exec)
}
