package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// Student statuses
const (
	StudentActive    = "Active"
	StudentInactive  = "Inactive"
	StudentGraduated = "Graduated"
)

var StudentStatuses = []string{StudentActive, StudentInactive, StudentGraduated}

var (
	// errors
	ErrClassNotFound   = core.NewNotFoundError("class", "")
	ErrStudentNotFound = core.NewNotFoundError("student", "")
	ErrSubjectNotFound = core.NewNotFoundError("subject", "")
)

type Class struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	GradeLevel   string    `json:"grade_level"`
	Section      string    `json:"section"`
	AcademicYear string    `json:"academic_year"`
	CreatedAt    time.Time `json:"created_at"`
}

type Student struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"` // admission number
	FullName    string    `json:"full_name"`
	ClassID     string    `json:"class_id"`
	ParentName  string    `json:"parent_name"`
	ParentEmail string    `json:"parent_email"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s Student) IsActive() bool { return s.Status == StudentActive }

type Subject struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	ClassID   string    `json:"class_id"`
	CreatedAt time.Time `json:"created_at"`
}

type StudentFilter struct {
	ID      string
	Code    string
	ClassID string
	Status  string
}

// SubjectFilter matches Name case-insensitively.
type SubjectFilter struct {
	ID      string
	Code    string
	Name    string
	ClassID string
}

type Repository interface {
	CreateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
	GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
	// QueryClasses lists the classes of academicYear, or all classes when it is empty.
	QueryClasses(ctx context.Context, academicYear string, exec ...core.DBExecutor) ([]Class, error)
	CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
	// GetStudent returns the first student matching filter or ErrStudentNotFound.
	GetStudent(ctx context.Context, filter StudentFilter, exec ...core.DBExecutor) (Student, error)
	QueryStudents(ctx context.Context, filter StudentFilter, exec ...core.DBExecutor) ([]Student, error)
	// SetStudentStatus returns the updated student or ErrStudentNotFound.
	SetStudentStatus(ctx context.Context, id, status string, exec ...core.DBExecutor) (Student, error)
	CreateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
	// GetSubject returns the first subject matching filter or ErrSubjectNotFound.
	GetSubject(ctx context.Context, filter SubjectFilter, exec ...core.DBExecutor) (Subject, error)
	QuerySubjects(ctx context.Context, filter SubjectFilter, exec ...core.DBExecutor) ([]Subject, error)
}

// NewClass contains information needed to open a class.
type NewClass struct {
	Name         string `json:"name" validate:"required,notblank"`
	GradeLevel   string `json:"grade_level"`
	Section      string `json:"section"`
	AcademicYear string `json:"academic_year"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.GradeLevel = core.CleanString(nc.GradeLevel)
	nc.Section = core.CleanString(nc.Section)
	nc.AcademicYear = core.CleanString(nc.AcademicYear)
	return validate.Struct(nc)
}

// NewSubject contains information needed to add a subject to a class.
type NewSubject struct {
	Code    string `json:"code" validate:"required,notblank"`
	Name    string `json:"name" validate:"required,notblank"`
	ClassID string `json:"class_id" validate:"required"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Code = core.CleanString(ns.Code)
	ns.Name = core.CleanString(ns.Name)
	ns.ClassID = core.CleanString(ns.ClassID)
	return validate.Struct(ns)
}

// Admission contains information needed to enroll a student.
// Code is generated when empty.
type Admission struct {
	Code          string    `json:"code"`
	FullName      string    `json:"full_name" validate:"required,notblank"`
	ClassID       string    `json:"class_id" validate:"required"`
	ParentName    string    `json:"parent_name"`
	ParentEmail   string    `json:"parent_email" validate:"omitempty,email"`
	AdmissionDate time.Time `json:"admission_date"`
}

func (adm *Admission) Validate(validate *validator.Validate) error {
	adm.Code = core.CleanString(adm.Code)
	adm.FullName = core.CleanString(adm.FullName)
	adm.ClassID = core.CleanString(adm.ClassID)
	adm.ParentName = core.CleanString(adm.ParentName)
	adm.ParentEmail = core.CleanString(adm.ParentEmail, true /* lower */)
	return validate.Struct(adm)
}
