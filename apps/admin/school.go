package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/school"
)

func (cli *commandLine) addClass(name, gradeLevel, section, academicYear string) error {
	cls, err := cli.schoolSvc.OpenClass(context.Background(), school.NewClass{
		Name:         name,
		GradeLevel:   gradeLevel,
		Section:      section,
		AcademicYear: academicYear,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "class %q opened with id %s\n", cls.Name, cls.ID)
	return nil
}

func (cli *commandLine) addSubject(classID, code, name string) error {
	sub, err := cli.schoolSvc.AddSubject(context.Background(), school.NewSubject{Code: code, Name: name, ClassID: classID})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "subject %s (%s) added with id %s\n", sub.Code, sub.Name, sub.ID)
	return nil
}

func (cli *commandLine) admit(adm school.Admission, date string) error {
	if date != "" {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return errors.Errorf("invalid admission date %q, expected YYYY-MM-DD", date)
		}
		adm.AdmissionDate = d
	}
	std, err := cli.schoolSvc.Admit(context.Background(), adm)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s admitted with admission number %s\n", std.FullName, std.Code)
	return nil
}

// setStatus finds the student by admission number.
func (cli *commandLine) setStatus(code, status string) error {
	ctx := context.Background()
	students, err := cli.schoolSvc.Students(ctx, school.StudentFilter{Code: code})
	if err != nil {
		return err
	}
	if len(students) == 0 {
		return school.ErrStudentNotFound
	}
	std, err := cli.schoolSvc.SetStatus(ctx, students[0].ID, status)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s (%s) is now %s\n", std.FullName, std.Code, std.Status)
	return nil
}
