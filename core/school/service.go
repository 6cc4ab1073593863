package school

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

const admissionAttempts = 10

var (
	// admissionDigits returns the random part of an admission number.
	admissionDigits = func() string { // mockable
		n, err := rand.Int(rand.Reader, big.NewInt(100000))
		if err != nil {
			return fmt.Sprintf("%05d", core.NowFunc().UnixNano()%100000)
		}
		return fmt.Sprintf("%05d", n.Int64())
	}

	errCodeTaken = "this code is already taken"
	errNameTaken = "this class already has a subject with this name"
)

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

func (svc *Service) OpenClass(ctx context.Context, nc NewClass) (Class, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Class{}, err
	}
	cls, err := svc.repo.CreateClass(ctx, Class{
		Name:         nc.Name,
		GradeLevel:   nc.GradeLevel,
		Section:      nc.Section,
		AcademicYear: nc.AcademicYear,
		CreatedAt:    core.NowFunc().UTC(),
	})
	if err != nil {
		return Class{}, errors.Wrap(err, "creating class")
	}
	return cls, nil
}

func (svc *Service) Classes(ctx context.Context, academicYear string) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, core.CleanString(academicYear))
}

// AddSubject adds a subject to an existing class. Codes are unique school-wide
// and names unique within a class, since imports resolve subjects by name.
func (svc *Service) AddSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Subject{}, err
	}
	if _, err := svc.repo.GetClass(ctx, ns.ClassID); err != nil {
		return Subject{}, err
	}

	if err := svc.checkFree(ctx, "code", errCodeTaken, SubjectFilter{Code: ns.Code}); err != nil {
		return Subject{}, err
	}
	if err := svc.checkFree(ctx, "name", errNameTaken, SubjectFilter{Name: ns.Name, ClassID: ns.ClassID}); err != nil {
		return Subject{}, err
	}

	sub, err := svc.repo.CreateSubject(ctx, Subject{
		Code:      ns.Code,
		Name:      ns.Name,
		ClassID:   ns.ClassID,
		CreatedAt: core.NowFunc().UTC(),
	})
	if err != nil {
		return Subject{}, errors.Wrap(err, "creating subject")
	}
	return sub, nil
}

func (svc *Service) checkFree(ctx context.Context, field, msg string, filter SubjectFilter) error {
	_, err := svc.repo.GetSubject(ctx, filter)
	switch {
	case err == nil:
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: msg})
	case core.IsNotFound(err):
		return nil
	default:
		return errors.Wrap(err, "checking subject "+field)
	}
}

func (svc *Service) Subjects(ctx context.Context, classID string) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx, SubjectFilter{ClassID: core.CleanString(classID)})
}

// Admit enrolls an active student in an existing class.
func (svc *Service) Admit(ctx context.Context, adm Admission) (Student, error) {
	if err := adm.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	if _, err := svc.repo.GetClass(ctx, adm.ClassID); err != nil {
		return Student{}, err
	}

	code := adm.Code
	if code == "" {
		date := adm.AdmissionDate
		if date.IsZero() {
			date = core.Today()
		}
		var err error
		if code, err = svc.AdmissionNumber(ctx, date.Year()); err != nil {
			return Student{}, err
		}
	} else if _, err := svc.repo.GetStudent(ctx, StudentFilter{Code: code}); err == nil {
		return Student{}, core.NewValidationError(nil, core.FieldError{Field: "code", Error: errCodeTaken})
	} else if !core.IsNotFound(err) {
		return Student{}, errors.Wrap(err, "checking admission number")
	}

	std, err := svc.repo.CreateStudent(ctx, Student{
		Code:        code,
		FullName:    adm.FullName,
		ClassID:     adm.ClassID,
		ParentName:  adm.ParentName,
		ParentEmail: adm.ParentEmail,
		Status:      StudentActive,
		CreatedAt:   core.NowFunc().UTC(),
	})
	if err != nil {
		return Student{}, errors.Wrap(err, "creating student")
	}
	return std, nil
}

// AdmissionNumber returns an unused number of the form ADM-<year>-<5 digits>.
// After admissionAttempts collisions it falls back to the clock.
func (svc *Service) AdmissionNumber(ctx context.Context, year int) (string, error) {
	for i := 0; i < admissionAttempts; i++ {
		code := fmt.Sprintf("ADM-%d-%s", year, admissionDigits())
		_, err := svc.repo.GetStudent(ctx, StudentFilter{Code: code})
		if core.IsNotFound(err) {
			return code, nil
		}
		if err != nil {
			return "", errors.Wrap(err, "checking admission number")
		}
	}
	return fmt.Sprintf("ADM-%d-%05d", year, core.NowFunc().Unix()%100000), nil
}

func validStatus(status string) bool {
	for _, st := range StudentStatuses {
		if st == status {
			return true
		}
	}
	return false
}

func statusError() error {
	return core.NewValidationError(nil, core.FieldError{
		Field: "status",
		Error: fmt.Sprintf("must be one of %v", StudentStatuses),
	})
}

// SetStatus activates, deactivates or graduates a student. Inactive students
// are skipped by class fee assessment.
func (svc *Service) SetStatus(ctx context.Context, studentID, status string) (Student, error) {
	if status = core.CleanString(status); !validStatus(status) {
		return Student{}, statusError()
	}
	return svc.repo.SetStudentStatus(ctx, core.CleanString(studentID), status)
}

func (svc *Service) Students(ctx context.Context, filter StudentFilter) ([]Student, error) {
	filter.Status = core.CleanString(filter.Status)
	if filter.Status != "" && !validStatus(filter.Status) {
		return nil, statusError()
	}
	return svc.repo.QueryStudents(ctx, filter)
}
