package dig_container

import (
	"database/sql"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/apps/api/jobs"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/grading"
	"github.com/trezcool/shule/core/result"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	"github.com/trezcool/shule/storage/database"
	boiledrepos "github.com/trezcool/shule/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

type dbLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type schedulerParams struct {
	dig.In
	Conf   *core.Config
	Logger core.Logger `name:"jobsLogger"`
	Fees   *fee.Service
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	UserSvc    user.ServiceInterface
	SchoolSvc  *school.Service
	FeeSvc     *fee.Service
	ResultSvc  *result.Service
	GradingSvc *grading.Service
}

func newComponentLogger(component string) func(conf *core.Config) core.Logger {
	return func(conf *core.Config) core.Logger {
		return logsvc.NewRollbarLogger(logsvc.NewStdLogger(component), conf)
	}
}

func newDB(conf *core.Config, loggerParam dbLoggerParam) (*sql.DB, core.DB, core.DBExecutor) {
	setUp := func() (*sql.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, db, db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newScheduler(p schedulerParams) (*jobs.Scheduler, error) {
	return jobs.NewScheduler(p.Conf, p.Logger, p.Fees)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		UserSvc:    p.UserSvc,
		SchoolSvc:  p.SchoolSvc,
		FeeSvc:     p.FeeSvc,
		ResultSvc:  p.ResultSvc,
		GradingSvc: p.GradingSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	// config & loggers
	must(c.Provide(core.NewConfig))
	must(c.Provide(newComponentLogger("API")))
	must(c.Provide(newComponentLogger("DB"), dig.Name("dbLogger")))
	must(c.Provide(newComponentLogger("JOBS"), dig.Name("jobsLogger")))

	// storage
	must(c.Provide(newDB))
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewSchoolRepository))
	must(c.Provide(sqlxrepos.NewFeeRepository))
	must(c.Provide(sqlxrepos.NewGradingRepository))
	must(c.Provide(sqlxrepos.NewResultRepository))
	must(c.Provide(boiledrepos.NewFeeReportRepository))
	must(c.Provide(boiledrepos.NewResultReportRepository))

	// services
	must(c.Provide(newEmailService))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(core.NewValidator))
	must(c.Provide(user.NewService, dig.As(new(user.ServiceInterface))))
	must(c.Provide(school.NewService))
	must(c.Provide(grading.NewService))
	must(c.Provide(fee.NewService))
	must(c.Provide(result.NewService))

	// apps
	must(c.Provide(newScheduler))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
