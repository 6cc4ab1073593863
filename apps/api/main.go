package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"go.uber.org/dig"

	dig_container "github.com/trezcool/shule/apps/api/di/dig"
	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/apps/api/jobs"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
	logsvc "github.com/trezcool/shule/services/logger"
)

type app struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	DBLogger   core.Logger `name:"dbLogger"`
	DB         *sql.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Scheduler  *jobs.Scheduler
	Server     *echoapi.Server
}

func main() {
	if err := dig_container.New().Invoke(run); err != nil {
		log.Fatal(err)
	}
}

func run(a app) {
	a.Logger.Info(fmt.Sprintf("Application initializing : version %q", a.Conf.Build))
	defer flush(a.Logger)

	user.InitValidators(a.Validate, a.Translator)
	core.ParseEmailTemplates(a.Conf, a.Logger)

	defer func() {
		if err := a.DB.Close(); err != nil {
			a.DBLogger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	serveDebug(a.Conf, a.Logger)

	a.Scheduler.Start()
	defer a.Scheduler.Stop()

	go a.Server.Start()
	waitForShutdown(a.Conf, a.Logger, a.Server)
}

// serveDebug exposes /debug/vars (expvar) and /debug/pprof on the debug host.
func serveDebug(conf *core.Config, logger core.Logger) {
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}

// waitForShutdown blocks until the server fails or a shutdown is signaled,
// then gives outstanding requests until the shutdown timeout to complete.
func waitForShutdown(conf *core.Config, logger core.Logger, server *echoapi.Server) {
	select {
	case err := <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func flush(logger core.Logger) {
	logger.Info("Application stopped")
	if rl, ok := logger.(*logsvc.RollbarLogger); ok {
		rl.Close()
	}
}
