package main

import (
	"log"
	"os"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/registry"
	"github.com/trezcool/darasa/core/report"
	"github.com/trezcool/darasa/services/email"
	"github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/services/recordstore"
	"github.com/trezcool/darasa/services/recordstore/dummy"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "REGISTRAR : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	var appLogger core.Logger
	if core.Conf.GetBool("debug") {
		appLogger = logsvc.NewStdLogger(logger)
	} else {
		appLogger = logsvc.NewRollbarLogger(logger)
	}

	var mailSvc core.EmailService
	if core.Conf.GetBool("debug") {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(appLogger)
	}

	cli := commandLine{logger: appLogger, out: os.Stdout}

	if core.Conf.GetBool("demoMode") {
		db, err := dummystore.Open()
		errAndDie(err)
		errAndDie(seedDemo(db))
		cli.reg = registry.NewService(db)
		cli.rosterStore = db
		cli.gradeStore = db
		cli.reportSvc = report.NewService(db, mailSvc)
	} else {
		auth := recordstore.NewAuthContext(core.Conf.GetString("recordstore.token"), nil)
		client, err := recordstore.NewClient(auth, recordstore.WithLogger(appLogger))
		errAndDie(err)
		cli.client = client
		cli.reg = registry.NewService(client)
		cli.rosterStore = client
		cli.gradeStore = client
		cli.reportSvc = report.NewService(client, mailSvc)
	}

	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
