package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
)

type schoolRepository struct {
	class   *classTable
	student *studentTable
	subject *subjectTable
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{class: db.class, student: db.student, subject: db.subject}
}

func (repo *schoolRepository) CreateClass(_ context.Context, cls school.Class, _ ...core.DBExecutor) (school.Class, error) {
	repo.class.Lock()
	defer repo.class.Unlock()

	if cls.ID == "" {
		cls.ID = uuid.New().String()
	}
	repo.class.table[cls.ID] = &cls
	repo.class.seq = append(repo.class.seq, cls.ID)
	return cls, nil
}

func (repo *schoolRepository) QueryClasses(_ context.Context, academicYear string, _ ...core.DBExecutor) ([]school.Class, error) {
	repo.class.RLock()
	defer repo.class.RUnlock()

	classes := make([]school.Class, 0)
	for _, id := range repo.class.seq {
		if cls := repo.class.table[id]; academicYear == "" || cls.AcademicYear == academicYear {
			classes = append(classes, *cls)
		}
	}
	return classes, nil
}

func (repo *schoolRepository) GetClass(_ context.Context, id string, _ ...core.DBExecutor) (school.Class, error) {
	repo.class.RLock()
	defer repo.class.RUnlock()

	if cls, ok := repo.class.table[id]; ok {
		return *cls, nil
	}
	return school.Class{}, school.ErrClassNotFound
}

func (repo *schoolRepository) CreateStudent(_ context.Context, std school.Student, _ ...core.DBExecutor) (school.Student, error) {
	repo.student.Lock()
	defer repo.student.Unlock()

	if std.ID == "" {
		std.ID = uuid.New().String()
	}
	if std.Status == "" {
		std.Status = school.StudentActive
	}
	repo.student.table[std.ID] = &std
	repo.student.seq = append(repo.student.seq, std.ID)
	return std, nil
}

func matchStudent(std *school.Student, filter school.StudentFilter) bool {
	return (filter.ID == "" || std.ID == filter.ID) &&
		(filter.Code == "" || std.Code == filter.Code) &&
		(filter.ClassID == "" || std.ClassID == filter.ClassID) &&
		(filter.Status == "" || std.Status == filter.Status)
}

func (repo *schoolRepository) queryStudents(filter school.StudentFilter) []school.Student {
	students := make([]school.Student, 0)
	for _, id := range repo.student.seq {
		if std := repo.student.table[id]; matchStudent(std, filter) {
			students = append(students, *std)
		}
	}
	return students
}

func (repo *schoolRepository) GetStudent(_ context.Context, filter school.StudentFilter, _ ...core.DBExecutor) (school.Student, error) {
	repo.student.RLock()
	defer repo.student.RUnlock()

	if students := repo.queryStudents(filter); len(students) > 0 {
		return students[0], nil
	}
	return school.Student{}, school.ErrStudentNotFound
}

func (repo *schoolRepository) QueryStudents(_ context.Context, filter school.StudentFilter, _ ...core.DBExecutor) ([]school.Student, error) {
	repo.student.RLock()
	defer repo.student.RUnlock()
	return repo.queryStudents(filter), nil
}

func (repo *schoolRepository) SetStudentStatus(_ context.Context, id, status string, _ ...core.DBExecutor) (school.Student, error) {
	repo.student.Lock()
	defer repo.student.Unlock()

	std, ok := repo.student.table[id]
	if !ok {
		return school.Student{}, school.ErrStudentNotFound
	}
	std.Status = status
	return *std, nil
}

func (repo *schoolRepository) CreateSubject(_ context.Context, sub school.Subject, _ ...core.DBExecutor) (school.Subject, error) {
	repo.subject.Lock()
	defer repo.subject.Unlock()

	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	repo.subject.table[sub.ID] = &sub
	repo.subject.seq = append(repo.subject.seq, sub.ID)
	return sub, nil
}

func matchSubject(sub *school.Subject, filter school.SubjectFilter) bool {
	return (filter.ID == "" || sub.ID == filter.ID) &&
		(filter.Code == "" || sub.Code == filter.Code) &&
		(filter.Name == "" || strings.EqualFold(sub.Name, filter.Name)) &&
		(filter.ClassID == "" || sub.ClassID == filter.ClassID)
}

func (repo *schoolRepository) querySubjects(filter school.SubjectFilter) []school.Subject {
	subjects := make([]school.Subject, 0)
	for _, id := range repo.subject.seq {
		if sub := repo.subject.table[id]; matchSubject(sub, filter) {
			subjects = append(subjects, *sub)
		}
	}
	return subjects
}

func (repo *schoolRepository) GetSubject(_ context.Context, filter school.SubjectFilter, _ ...core.DBExecutor) (school.Subject, error) {
	repo.subject.RLock()
	defer repo.subject.RUnlock()

	if subjects := repo.querySubjects(filter); len(subjects) > 0 {
		return subjects[0], nil
	}
	return school.Subject{}, school.ErrSubjectNotFound
}

func (repo *schoolRepository) QuerySubjects(_ context.Context, filter school.SubjectFilter, _ ...core.DBExecutor) ([]school.Subject, error) {
	repo.subject.RLock()
	defer repo.subject.RUnlock()
	return repo.querySubjects(filter), nil
}
