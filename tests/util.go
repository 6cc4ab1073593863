package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

// Dec parses s as a decimal or panics.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Date returns the UTC midnight of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// FreezeTime makes core.NowFunc return now until the test ends.
func FreezeTime(t *testing.T, now time.Time) {
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = time.Now })
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateClass(t *testing.T, repo school.Repository, name, academicYear string) school.Class {
	cls, err := repo.CreateClass(context.Background(), school.Class{
		Name:         name,
		AcademicYear: academicYear,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createClass() failed: %v", err)
	}
	return cls
}

func CreateStudent(t *testing.T, repo school.Repository, code, fullName string, cls school.Class, parentEmail ...string) school.Student {
	std := school.Student{
		Code:       code,
		FullName:   fullName,
		ClassID:    cls.ID,
		ParentName: "Parent of " + fullName,
		Status:     school.StudentActive,
		CreatedAt:  time.Now().UTC(),
	}
	if len(parentEmail) > 0 {
		std.ParentEmail = parentEmail[0]
	}
	std, err := repo.CreateStudent(context.Background(), std)
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return std
}

func CreateSubject(t *testing.T, repo school.Repository, code, name string, cls school.Class) school.Subject {
	sub, err := repo.CreateSubject(context.Background(), school.Subject{
		Code:      code,
		Name:      name,
		ClassID:   cls.ID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createSubject() failed: %v", err)
	}
	return sub
}

// CreateCharge stores a charge with the status matching paid.
func CreateCharge(t *testing.T, repo fee.Repository, std school.Student, feeType, amount, paid string, dueDate time.Time) fee.Charge {
	now := time.Now().UTC()
	ch := fee.Charge{
		StudentID:  std.ID,
		FeeType:    feeType,
		Amount:     Dec(amount),
		PaidAmount: Dec(paid),
		DueDate:    dueDate,
		Status:     fee.DeriveStatus(Dec(paid), Dec(amount)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	ch, err := repo.CreateCharge(context.Background(), ch)
	if err != nil {
		t.Fatalf("createCharge() failed: %v", err)
	}
	return ch
}

func CreateBoundary(t *testing.T, repo grading.Repository, grade, min, max, academicYear string) grading.Boundary {
	b, err := repo.CreateBoundary(context.Background(), grading.Boundary{
		Grade:         grade,
		MinPercentage: Dec(min),
		MaxPercentage: Dec(max),
		AcademicYear:  academicYear,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("createBoundary() failed: %v", err)
	}
	return b
}
