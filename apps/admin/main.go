package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/grading"
	"github.com/trezcool/alama/core/publish"
	cachesvc "github.com/trezcool/alama/services/cache"
	emailsvc "github.com/trezcool/alama/services/email"
	logsvc "github.com/trezcool/alama/services/logger"
	metricsvc "github.com/trezcool/alama/services/metrics"
	"github.com/trezcool/alama/storage/database"
	boiledrepos "github.com/trezcool/alama/storage/database/sqlboiler"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err.Error(), err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	tx := database.NewTransactor(db)
	examRepo := boiledrepos.NewExamRepository(db)
	scaleRepo := boiledrepos.NewGradeScaleRepository(db)
	mailSvc := emailsvc.New(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), conf, logger)
	cache := cachesvc.New(ctx, conf, logger)
	cancel()

	// start CLI
	cli := commandLine{
		db:         db,
		out:        os.Stdout,
		usrRepo:    boiledrepos.NewUserRepository(db),
		examRepo:   examRepo,
		gradingSvc: grading.NewService(tx, scaleRepo, exam.NewRegrader(examRepo), cache, logger),
		publishSvc: publish.NewService(publish.ServiceDeps{
			Tx:           tx,
			Exams:        examRepo,
			Notices:      boiledrepos.NewNoticeRepository(db),
			Publications: boiledrepos.NewPublicationRepository(db),
			MailSvc:      mailSvc,
			Cache:        cache,
			Metrics:      metricsvc.New(conf),
			Logger:       logger,
		}),
	}

	err = cli.run(os.Args)

	// let the emails of a publish go out before exiting
	if w, ok := mailSvc.(interface{ Wait() }); ok {
		w.Wait()
	}
	_ = db.Close()
	logger.Close()
	if err != nil {
		if err != errHelp {
			log.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
