package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof on the default mux
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/sqlboiler/v4/boil"

	echoapi "github.com/trezcool/alama/apps/api/echo"
	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/grading"
	"github.com/trezcool/alama/core/notice"
	"github.com/trezcool/alama/core/publish"
	"github.com/trezcool/alama/core/report"
	"github.com/trezcool/alama/core/user"
	cachesvc "github.com/trezcool/alama/services/cache"
	emailsvc "github.com/trezcool/alama/services/email"
	logsvc "github.com/trezcool/alama/services/logger"
	metricsvc "github.com/trezcool/alama/services/metrics"
	"github.com/trezcool/alama/storage/database"
	boiledrepos "github.com/trezcool/alama/storage/database/sqlboiler"
)

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
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()
	boil.DebugMode = conf.Database.Debug

	// set up repositories
	tx := database.NewTransactor(db)
	usrRepo := boiledrepos.NewUserRepository(db)
	examRepo := boiledrepos.NewExamRepository(db)
	scaleRepo := boiledrepos.NewGradeScaleRepository(db)
	noticeRepo := boiledrepos.NewNoticeRepository(db)

	// set up services
	cache := cachesvc.New(context.Background(), conf, logger)
	metrics := metricsvc.New(conf)
	mailSvc := emailsvc.New(log.New(os.Stdout, "EMAIL : ", log.LstdFlags), conf, logger)

	usrSvc := user.NewService(usrRepo)
	gradingSvc := grading.NewService(tx, scaleRepo, exam.NewRegrader(examRepo), cache, logger)
	examSvc := exam.NewService(tx, examRepo, scaleRepo, cache, metrics, logger)
	reportSvc := report.NewService(examRepo, scaleRepo, cache, metrics, logger)
	noticeSvc := notice.NewService(noticeRepo)
	publishSvc := publish.NewService(publish.ServiceDeps{
		Tx:           tx,
		Exams:        examRepo,
		Notices:      noticeRepo,
		Publications: boiledrepos.NewPublicationRepository(db),
		MailSvc:      mailSvc,
		Cache:        cache,
		Metrics:      metrics,
		Logger:       logger,
	})

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	if err = core.ParseEmailTemplates(); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /debug/metrics - Prometheus metrics.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/debug/metrics", metrics.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugAddress, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Validate:   validate,
			Translator: translator,
			UserSvc:    usrSvc,
			GradingSvc: gradingSvc,
			ExamSvc:    examSvc,
			ReportSvc:  reportSvc,
			PublishSvc: publishSvc,
			NoticeSvc:  noticeSvc,
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

func setUpDB(conf *core.Config) (*sql.DB, error) {
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
