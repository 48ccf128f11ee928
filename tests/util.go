// Package testutil wires the application on the in-memory storage and seeds fixtures.
package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

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
	inmemdb "github.com/trezcool/alama/storage/database/inmem"
)

type (
	PublicationRepository interface {
		publish.Repository
		Publications() []publish.Publication
	}

	// App is the application running on the in-memory storage.
	App struct {
		Conf       *core.Config
		DB         *inmemdb.DB
		Tx         core.Transactor
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator
		Mail       *emailsvc.ConsoleServiceMock
		Cache      core.Cache
		Metrics    *metricsvc.Metrics

		UserRepo        user.Repository
		ExamRepo        exam.Repository
		ScaleRepo       grading.Repository
		NoticeRepo      notice.Repository
		PublicationRepo PublicationRepository

		UserSvc    user.Service
		GradingSvc grading.Service
		ExamSvc    exam.Service
		ReportSvc  report.Service
		PublishSvc publish.Service
		NoticeSvc  notice.Service
	}
)

// Config returns the configuration used by the tests.
func Config() *core.Config {
	return &core.Config{
		AppName:          "Alama",
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://localhost:8080",
		DefaultFromEmail: mail.Address{Name: "Alama", Address: "noreply@localhost"},
		Server: core.ServerConfig{
			Host:                      "localhost",
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			DisableReqLogs:            true,
		},
		Report: core.ReportConfig{CacheTTL: time.Minute},
	}
}

func NewApp(t *testing.T) *App {
	t.Helper()

	conf := Config()
	db := inmemdb.Open()
	app := &App{
		Conf:            conf,
		DB:              db,
		Tx:              inmemdb.NewTransactor(db),
		Logger:          logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", 0), conf),
		Validate:        validator.New(),
		Translator:      core.NewTranslator(),
		Cache:           cachesvc.NewMemoryCache(conf.Report.CacheTTL),
		Metrics:         metricsvc.New(conf),
		UserRepo:        inmemdb.NewUserRepository(db),
		ExamRepo:        inmemdb.NewExamRepository(db),
		ScaleRepo:       inmemdb.NewGradeScaleRepository(db),
		NoticeRepo:      inmemdb.NewNoticeRepository(db),
		PublicationRepo: inmemdb.NewPublicationRepository(db),
	}
	core.InitValidators(app.Validate, app.Translator)
	user.InitValidators(app.Validate, app.Translator)
	app.Mail = emailsvc.NewConsoleServiceMock(conf, app.Logger)

	app.UserSvc = user.NewService(app.UserRepo)
	app.GradingSvc = grading.NewService(app.Tx, app.ScaleRepo, exam.NewRegrader(app.ExamRepo), app.Cache, app.Logger)
	app.ExamSvc = exam.NewService(app.Tx, app.ExamRepo, app.ScaleRepo, app.Cache, app.Metrics, app.Logger)
	app.ReportSvc = report.NewService(app.ExamRepo, app.ScaleRepo, app.Cache, app.Metrics, app.Logger)
	app.NoticeSvc = notice.NewService(app.NoticeRepo)
	app.PublishSvc = publish.NewService(publish.ServiceDeps{
		Tx:           app.Tx,
		Exams:        app.ExamRepo,
		Notices:      app.NoticeRepo,
		Publications: app.PublicationRepo,
		MailSvc:      app.Mail,
		Cache:        app.Cache,
		Metrics:      app.Metrics,
		Logger:       app.Logger,
	})
	return app
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// School is a class of two students taught two subjects. Alice has a parent, Bob does not.
type School struct {
	Class   exam.Class
	Math    exam.Subject
	English exam.Subject

	Admin      user.User
	Teacher    user.User
	AliceUser  user.User
	BobUser    user.User
	ParentUser user.User

	Alice exam.Student
	Bob   exam.Student
}

func SeedSchool(t *testing.T, app *App) School {
	t.Helper()

	var s School
	s.Admin = CreateUser(t, app.UserRepo, "Admin", "admin", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	s.Teacher = CreateUser(t, app.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	s.AliceUser = CreateUser(t, app.UserRepo, "Alice Moke", "alice", "alice@test.cd", "", []string{user.RoleStudent}, true)
	s.BobUser = CreateUser(t, app.UserRepo, "Bob Zola", "bob", "", "", []string{user.RoleStudent}, true)
	s.ParentUser = CreateUser(t, app.UserRepo, "Mama Moke", "mama", "mama@test.cd", "", []string{user.RoleParent}, true)

	s.Class = app.DB.AddClass("Grade 6")
	s.Math = app.DB.AddSubject(s.Class.ID, "Mathematics", s.Teacher.ID)
	s.English = app.DB.AddSubject(s.Class.ID, "English", s.Teacher.ID)

	parent := app.DB.AddParent(s.ParentUser)
	s.Alice = app.DB.AddStudent(s.AliceUser, s.Class.ID, "Alice", "Moke", parent.ID)
	s.Bob = app.DB.AddStudent(s.BobUser, s.Class.ID, "Bob", "Zola", 0)
	return s
}

// CreateExam stores an Upcoming exam of subj, bypassing the service checks.
func CreateExam(t *testing.T, app *App, subj exam.Subject, title, date string, total float64, term string) exam.Exam {
	t.Helper()

	examDate, err := time.Parse("2006-01-02", date)
	if err != nil {
		t.Fatalf("CreateExam() failed: %v", err)
	}
	parsedTerm, err := exam.ParseTerm(term)
	if err != nil {
		t.Fatalf("CreateExam() failed: %v", err)
	}
	now := time.Now().UTC()
	e, err := app.ExamRepo.CreateExam(context.Background(), exam.Exam{
		Title:       title,
		ExamDate:    examDate,
		TotalMarks:  total,
		Term:        parsedTerm,
		ClassID:     subj.ClassID,
		SubjectID:   subj.ID,
		SubjectName: subj.Name,
		TeacherID:   subj.TeacherID,
		Status:      exam.StatusUpcoming,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateExam() failed: %v", err)
	}
	return e
}

// RecordResult stores the marks of st, graded with the default scale.
func RecordResult(t *testing.T, app *App, e exam.Exam, st exam.Student, marks float64) exam.Result {
	t.Helper()

	now := time.Now().UTC()
	results, err := app.ExamRepo.UpsertResults(context.Background(), []exam.Result{{
		ExamID:    e.ID,
		StudentID: st.ID,
		Marks:     marks,
		Grade:     grading.Resolve(grading.Percent(marks, e.TotalMarks), grading.DefaultScale),
		CreatedAt: now,
		UpdatedAt: now,
	}})
	if err != nil {
		t.Fatalf("RecordResult() failed: %v", err)
	}
	return results[0]
}
