package main

import (
	"fmt"
	"os"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database"
	boiledrepos "github.com/trezcool/shule/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(logsvc.NewStdLogger("ADMIN"), conf)
	defer logger.Close()

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer db.Close()
	if err = database.Ping(db); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	// set up services
	usrRepo := sqlxrepos.NewUserRepository(db)
	schools := sqlxrepos.NewSchoolRepository(db)
	grades := grading.NewService(sqlxrepos.NewGradingRepository(db), conf)

	// start CLI
	cli := commandLine{
		db:        db,
		out:       os.Stdout,
		usrRepo:   usrRepo,
		usrSvc:    user.NewService(usrRepo),
		schoolSvc: school.NewService(schools, core.NewValidator(core.NewTranslator())),
		resultSvc: result.NewService(
			sqlxrepos.NewResultRepository(db),
			boiledrepos.NewResultReportRepository(db),
			schools,
			grades,
			conf,
			logger,
		),
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		logger.Close()
		os.Exit(1)
	}
}
