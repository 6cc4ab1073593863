package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sql.DB
	out       io.Writer
	usrRepo   user.Repository
	usrSvc    user.ServiceInterface
	schoolSvc *school.Service
	resultSvc *result.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run goose migration commands (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-name NAME] [-admin|-teacher] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  addclass -name NAME [-grade-level LEVEL] [-section SECTION] [-year YEAR] - open a class")
	fmt.Fprintln(cli.out, "  addsubject -class CLASS_ID -code CODE -name NAME - add a subject to a class")
	fmt.Fprintln(cli.out, "  admit -class CLASS_ID -name FULL_NAME [-code ADM_NO] [-parent NAME] [-parent-email EMAIL] [-date YYYY-MM-DD] - admit a student")
	fmt.Fprintln(cli.out, "  setstatus -code ADM_NO -status Active|Inactive|Graduated - change a student's status")
	fmt.Fprintln(cli.out, "  importresults -file PATH [-recorder USER_ID] [-exam-date YYYY-MM-DD] [-max-errors N] - import exam results from a CSV")
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role.")
	addUserTeacher := addUserCmd.Bool("teacher", false, "Grant the teacher role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	importResultsCmd := flag.NewFlagSet("importresults", flag.ContinueOnError)
	importFile := importResultsCmd.String("file", "", "Path of the CSV file.")
	importRecorder := importResultsCmd.String("recorder", "", "ID of the user recording the results.")
	importExamDate := importResultsCmd.String("exam-date", "", "Exam date of every row (default today).")
	importMaxErrors := importResultsCmd.Int("max-errors", 0, "Maximum number of row errors to print.")

	addClassCmd := flag.NewFlagSet("addclass", flag.ContinueOnError)
	addClassName := addClassCmd.String("name", "", "The class name.")
	addClassLevel := addClassCmd.String("grade-level", "", "The grade level.")
	addClassSection := addClassCmd.String("section", "", "The stream or section.")
	addClassYear := addClassCmd.String("year", "", "The academic year.")

	addSubjectCmd := flag.NewFlagSet("addsubject", flag.ContinueOnError)
	addSubjectClass := addSubjectCmd.String("class", "", "ID of the class.")
	addSubjectCode := addSubjectCmd.String("code", "", "The subject code, unique across the school.")
	addSubjectName := addSubjectCmd.String("name", "", "The subject name, as used in result imports.")

	admitCmd := flag.NewFlagSet("admit", flag.ContinueOnError)
	admitClass := admitCmd.String("class", "", "ID of the admission class.")
	admitName := admitCmd.String("name", "", "The student's full name.")
	admitCode := admitCmd.String("code", "", "Admission number (generated when empty).")
	admitParent := admitCmd.String("parent", "", "The parent's or guardian's name.")
	admitParentEmail := admitCmd.String("parent-email", "", "Where fee receipts and reminders are sent.")
	admitDate := admitCmd.String("date", "", "Admission date (default today).")

	setStatusCmd := flag.NewFlagSet("setstatus", flag.ContinueOnError)
	setStatusCode := setStatusCmd.String("code", "", "The student's admission number.")
	setStatusValue := setStatusCmd.String("status", "", "The new status.")

	for _, fs := range []*flag.FlagSet{
		addUserCmd, resetPasswordCmd, importResultsCmd, addClassCmd, addSubjectCmd, admitCmd, setStatusCmd,
	} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		var roles []string
		switch {
		case *addUserAdmin:
			roles = user.AllRoles
		case *addUserTeacher:
			roles = user.TeacherRoles
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, roles)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "addclass":
		if err := addClassCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addClassName == "" {
			addClassCmd.Usage()
			return errHelp
		}
		return cli.addClass(*addClassName, *addClassLevel, *addClassSection, *addClassYear)

	case "addsubject":
		if err := addSubjectCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addSubjectClass == "" || *addSubjectCode == "" || *addSubjectName == "" {
			addSubjectCmd.Usage()
			return errHelp
		}
		return cli.addSubject(*addSubjectClass, *addSubjectCode, *addSubjectName)

	case "admit":
		if err := admitCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *admitClass == "" || *admitName == "" {
			admitCmd.Usage()
			return errHelp
		}
		return cli.admit(school.Admission{
			Code:        *admitCode,
			FullName:    *admitName,
			ClassID:     *admitClass,
			ParentName:  *admitParent,
			ParentEmail: *admitParentEmail,
		}, *admitDate)

	case "setstatus":
		if err := setStatusCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setStatusCode == "" || *setStatusValue == "" {
			setStatusCmd.Usage()
			return errHelp
		}
		return cli.setStatus(*setStatusCode, *setStatusValue)

	case "importresults":
		if err := importResultsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" {
			importResultsCmd.Usage()
			return errHelp
		}
		return cli.importResults(*importFile, *importRecorder, *importExamDate, *importMaxErrors)

	default:
		cli.printUsage()
		return errHelp
	}
}
