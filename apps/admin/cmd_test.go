package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	dummydb "github.com/trezcool/shule/storage/database/dummy"
	"github.com/trezcool/shule/tests"
)

var (
	usrRepo    user.Repository
	schoolRepo school.Repository
	resultRepo result.Repository
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	// set up DB & repos
	db, err := dummydb.Open()
	require.NoError(t, err)
	usrRepo = dummydb.NewUserRepository(db)
	schoolRepo = dummydb.NewSchoolRepository(db)
	resultRepo = dummydb.NewResultRepository(db)

	conf := core.NewTestConfig()
	logger := core.NewNoopLogger()
	grades := grading.NewService(dummydb.NewGradingRepository(db), conf)

	// start CLI
	var out bytes.Buffer
	return &commandLine{
		out:       &out,
		usrRepo:   usrRepo,
		usrSvc:    user.NewService(usrRepo),
		schoolSvc: school.NewService(schoolRepo, core.NewValidator(core.NewTranslator())),
		resultSvc: result.NewService(resultRepo, dummydb.NewResultReportRepository(db), schoolRepo, grades, conf, logger),
	}, &out
}

// mockPassword makes the password prompt answer pwd until the test ends.
func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func checkErr(t *testing.T, tt cliTest, err error) {
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "fee_discount", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "bursar"}, wantErr: errHelp},
		{name: "weak password", args: []string{"adduser", "-username", "bursar"}, pwd: "bursar", wantErr: core.NewValidationError(nil, core.FieldError{Field: "password", Error: "pwdminlen"})},
		{name: "create admin", args: []string{"adduser", "-username", "Bursar", "-email", "bursar@test.cd", "-admin"}, pwd: "Ada!Lovelace1"},
		{name: "update name", args: []string{"adduser", "-email", "bursar@test.cd", "-name", "Head Bursar"}, pwd: "Grace!Hopper2"},
		{name: "create teacher", args: []string{"adduser", "-username", "mwalimu", "-teacher"}, pwd: "Kufundisha#3"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			checkErr(t, tt, cli.run(args))
		})
	}

	bursar, err := usrRepo.GetUser(context.Background(), user.GetFilter{Username: "bursar"})
	require.NoError(t, err)
	assert.Equal(t, "Head Bursar", bursar.Name)
	assert.Equal(t, user.AllRoles, bursar.Roles)
	assert.NoError(t, bursar.CheckPassword("Grace!Hopper2"))

	teacher, err := usrRepo.GetUser(context.Background(), user.GetFilter{Username: "mwalimu"})
	require.NoError(t, err)
	assert.True(t, teacher.IsTeacher())
	assert.False(t, teacher.IsAdmin())
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, _ := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "mdr", nil, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, pwd: "Strong!Pass1", wantErr: user.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-username", usr.Username}, pwd: "12345678", wantErr: core.NewValidationError(nil, core.FieldError{Field: "password", Error: "pwdnotallnum"})},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, pwd: "Strong!Pass1"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, pwd: "Strong!Pass2"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			checkErr(t, tt, cli.run(args))
		})
	}

	refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, refreshedUsr.CheckPassword("Strong!Pass2"))
}

func Test_commandLine_importResults(t *testing.T) {
	cli, out := setup(t)

	cls := testutil.CreateClass(t, schoolRepo, "Form 1", "2021")
	std := testutil.CreateStudent(t, schoolRepo, "ADM-001", "Imani Chebet", cls)
	testutil.CreateSubject(t, schoolRepo, "BIO-1", "Biology", cls)

	path := filepath.Join(t.TempDir(), "results.csv")
	csv := "student_id,subject_name,exam_type,marks_obtained,total_marks\n" +
		"ADM-001,Biology,Final,81,100\n" +
		"ADM-001,Physics,Final,70,100\n"
	require.NoError(t, ioutil.WriteFile(path, []byte(csv), 0o600))

	tests := []cliTest{
		{name: "no file", args: []string{"importresults"}, wantErr: errHelp},
		{name: "bad date", args: []string{"importresults", "-file", path, "-exam-date", "tomorrow"}, wantErrStr: `invalid exam date "tomorrow", expected YYYY-MM-DD`},
		{name: "ok", args: []string{"importresults", "-file", path, "-exam-date", "2021-07-30", "-recorder", "registrar"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	assert.Contains(t, out.String(), "1 result(s) imported, 1 row(s) skipped")
	assert.Contains(t, out.String(), "row 1: subject Physics not found for student's class")

	recs, err := resultRepo.QueryResults(context.Background(), result.Filter{StudentID: std.ID})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "A", recs[0].Grade)
	assert.Equal(t, "registrar", recs[0].RecordedBy)
	assert.Equal(t, "2021-07-30", recs[0].ExamDate.Format("2006-01-02"))
}

func Test_commandLine_school(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	cls := testutil.CreateClass(t, schoolRepo, "Form 2", "2021")
	testutil.CreateStudent(t, schoolRepo, "ADM-2021-00100", "Baraka Otieno", cls)

	tests := []cliTest{
		{name: "addclass without name", args: []string{"addclass", "-year", "2021"}, wantErr: errHelp},
		{name: "addclass", args: []string{"addclass", "-name", "Form 1", "-grade-level", "9", "-year", "2021"}},
		{name: "addsubject without class", args: []string{"addsubject", "-code", "GEO-F2", "-name", "Geography"}, wantErr: errHelp},
		{name: "addsubject", args: []string{"addsubject", "-class", cls.ID, "-code", "GEO-F2", "-name", "Geography"}},
		{name: "admit without name", args: []string{"admit", "-class", cls.ID}, wantErr: errHelp},
		{name: "admit bad date", args: []string{"admit", "-class", cls.ID, "-name", "Imani", "-date", "soon"}, wantErrStr: `invalid admission date "soon", expected YYYY-MM-DD`},
		{name: "admit unknown class", args: []string{"admit", "-class", "nope", "-name", "Imani"}, wantErr: school.ErrClassNotFound},
		{
			name: "admit",
			args: []string{"admit", "-class", cls.ID, "-name", "Imani Chebet", "-code", "ADM-2021-00101", "-parent-email", "chebet@example.com"},
		},
		{name: "setstatus unknown student", args: []string{"setstatus", "-code", "ADM-1999-00000", "-status", "Inactive"}, wantErr: school.ErrStudentNotFound},
		{name: "setstatus bad status", args: []string{"setstatus", "-code", "ADM-2021-00100", "-status", "Gone"}, wantErrStr: "status: must be one of [Active Inactive Graduated]"},
		{name: "setstatus", args: []string{"setstatus", "-code", "ADM-2021-00100", "-status", "Graduated"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	assert.Contains(t, out.String(), `class "Form 1" opened`)
	assert.Contains(t, out.String(), "subject GEO-F2 (Geography) added")
	assert.Contains(t, out.String(), "Imani Chebet admitted with admission number ADM-2021-00101")
	assert.Contains(t, out.String(), "Baraka Otieno (ADM-2021-00100) is now Graduated")

	_, err := schoolRepo.GetSubject(ctx, school.SubjectFilter{Name: "geography", ClassID: cls.ID})
	assert.NoError(t, err)
	imani, err := schoolRepo.GetStudent(ctx, school.StudentFilter{Code: "ADM-2021-00101"})
	require.NoError(t, err)
	assert.Equal(t, "chebet@example.com", imani.ParentEmail)
	assert.Equal(t, school.StudentActive, imani.Status)
}
