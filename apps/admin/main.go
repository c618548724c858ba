package main

import (
	"fmt"
	"log"
	"os"

	"github.com/openstud/openstud/core"
	"github.com/openstud/openstud/core/reminder"
	"github.com/openstud/openstud/core/user"
	emailsvc "github.com/openstud/openstud/services/email"
	logsvc "github.com/openstud/openstud/services/logger"
	"github.com/openstud/openstud/storage/database"
	sqlxrepos "github.com/openstud/openstud/storage/database/sqlx"
)

func main() {
	os.Exit(start())
}

func start() int {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Error(fmt.Sprintf("opening database: %v", err), err)
		return 1
	}
	defer func() { _ = db.Close() }()

	var mailSvc core.EmailService
	if conf.Debug || conf.SendgridApiKey == "" {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	core.ParseEmailTemplates(logger)

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)

	// start CLI
	cli := commandLine{
		db:        db.DB,
		usrRepo:   usrRepo,
		reminders: reminder.NewService(sqlxrepos.NewWorkspaceRepository(db), usrSvc, mailSvc, logger, conf.Reminders.Window),
		mailSvc:   mailSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		return 1
	}
	return 0
}
