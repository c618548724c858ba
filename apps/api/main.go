package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	echoapi "github.com/openstud/openstud/apps/api/echo"
	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/billing"
	"github.com/openstud/openstud/core/course"
	"github.com/openstud/openstud/core/pending"
	"github.com/openstud/openstud/core/reminder"
	"github.com/openstud/openstud/core/tutor"
	"github.com/openstud/openstud/core/user"
	"github.com/openstud/openstud/core/workspace"
	emailsvc "github.com/openstud/openstud/services/email"
	logsvc "github.com/openstud/openstud/services/logger"
	tutorsvc "github.com/openstud/openstud/services/tutor"
	"github.com/openstud/openstud/storage/database"
	inmemdb "github.com/openstud/openstud/storage/database/inmem"
	sqlxrepos "github.com/openstud/openstud/storage/database/sqlx"
)

const (
	engineMemory = "memory"
	envDev       = "DEV"
)

type repositories struct {
	user      user.Repository
	workspace workspace.Repository
	course    course.Repository
	close     func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	repos, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(repos.user, mailSvc, conf)
	wsSvc := workspace.NewService(repos.workspace)
	courseSvc := course.NewService(repos.course)

	completer, err := newTutorCompleter(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up tutor: %v", err), err)
	}
	tutorSvc := tutor.NewService(completer, courseSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus metrics.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	sessions := pending.NewRegistry(conf.Pending.MaxSessions, conf.Pending.SessionTTL)
	expvar.Publish("pending_sessions", expvar.Func(func() interface{} { return sessions.Len() }))

	http.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Reminders

	reminders, err := reminder.NewService(repos.workspace, usrSvc, mailSvc, logger, conf.Reminders.Window).
		Schedule(conf.Reminders.Schedule)
	if err != nil {
		logger.Fatal(fmt.Sprintf("scheduling reminders: %v", err), err)
	}
	reminders.Start()
	defer func() { <-reminders.Stop().Done() }()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:         conf,
			Logger:       logger,
			Validate:     validate,
			Translator:   translator,
			UserSvc:      usrSvc,
			WorkspaceSvc: wsSvc,
			CourseSvc:    courseSvc,
			TutorSvc:     tutorSvc,
			BillingSvc:   billing.NewService(),
			Pending:      sessions,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*repositories, error) {
	if conf.Database.Engine == engineMemory {
		if conf.Env != envDev {
			return nil, errors.Errorf("database engine %q is only available in %s, not %s", engineMemory, envDev, conf.Env)
		}
		db := inmemdb.Open()
		return &repositories{
			user:      inmemdb.NewUserRepository(db),
			workspace: inmemdb.NewWorkspaceRepository(db),
			course:    inmemdb.NewCourseRepository(db),
			close:     func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &repositories{
		user:      sqlxrepos.NewUserRepository(db),
		workspace: sqlxrepos.NewWorkspaceRepository(db),
		course:    sqlxrepos.NewCourseRepository(db),
		close:     db.Close,
	}, nil
}

func newTutorCompleter(conf *core.Config) (tutor.Completer, error) {
	switch conf.Tutor.Provider {
	case "bedrock":
		return tutorsvc.NewBedrockCompleter(context.Background(), conf)
	case "", "echo":
		return tutorsvc.NewEchoCompleter(), nil
	}
	return nil, errors.Errorf("unknown tutor provider %q", conf.Tutor.Provider)
}
