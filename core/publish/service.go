// Package publish releases the results of a class term: exams become Published and every
// student, and their parent, receives a notice.
package publish

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/notice"
	"github.com/trezcool/alama/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNothingToPublish = core.NewNotFoundError("no exams found for this class and term")
	ErrAlreadyPublished = core.NewConflictError("results of this class and term are already published")

	resultPublishedTmpl = "result_published"
)

type (
	// Publication is the audit record of one publish.
	Publication struct {
		ID             string    `json:"id"`
		ClassID        int64     `json:"class_id"`
		Term           string    `json:"term"`
		TermKey        string    `json:"-"`
		ExamsCount     int       `json:"exams_published"`
		NoticesCount   int       `json:"notices_created"`
		StudentNotices int       `json:"student_notices"`
		ParentNotices  int       `json:"parent_notices"`
		PublishedBy    string    `json:"published_by,omitempty"` // user ID
		PublishedAt    time.Time `json:"published_at"`
	}

	Repository interface {
		CreatePublication(ctx context.Context, pub Publication, exec ...core.DBExecutor) error
	}

	Service interface {
		// PublishTerm publishes the pending exams of the scope and notifies students and parents.
		// The status changes and notices are saved in a single transaction.
		PublishTerm(ctx context.Context, scope exam.Scope, by user.User) (Publication, error)
	}

	service struct {
		tx           core.Transactor
		exams        exam.Repository
		notices      notice.Repository
		publications Repository
		mailSvc      core.EmailService
		cache        core.Cache
		metrics      core.Metrics
		logger       core.Logger
	}

	// ServiceDeps are the collaborators of the publish service.
	ServiceDeps struct {
		Tx           core.Transactor
		Exams        exam.Repository
		Notices      notice.Repository
		Publications Repository
		MailSvc      core.EmailService
		Cache        core.Cache
		Metrics      core.Metrics
		Logger       core.Logger
	}

	// emailData feeds the result_published email template.
	emailData struct {
		RecipientName string
		ForParent     bool
		StudentName   string
		Subject       string
		ExamTitle     string
		Term          string
		Marks         float64
		TotalMarks    float64
		Grade         string
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(deps ServiceDeps) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Tx, "Tx"),
		vala.IsNotNil(deps.Exams, "Exams"),
		vala.IsNotNil(deps.Notices, "Notices"),
		vala.IsNotNil(deps.Publications, "Publications"),
		vala.IsNotNil(deps.MailSvc, "MailSvc"),
		vala.IsNotNil(deps.Cache, "Cache"),
		vala.IsNotNil(deps.Metrics, "Metrics"),
		vala.IsNotNil(deps.Logger, "Logger"),
	).CheckAndPanic()

	return &service{
		tx:           deps.Tx,
		exams:        deps.Exams,
		notices:      deps.Notices,
		publications: deps.Publications,
		mailSvc:      deps.MailSvc,
		cache:        deps.Cache,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
	}
}

func (svc *service) PublishTerm(ctx context.Context, scope exam.Scope, by user.User) (Publication, error) {
	var (
		pub    Publication
		emails []*core.EmailMessage
	)
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		exams, err := svc.exams.LockExams(ctx, scope, exec)
		if err != nil {
			return errors.Wrap(err, "locking exams")
		}
		if len(exams) == 0 {
			return ErrNothingToPublish
		}

		// exams published earlier are neither updated nor notified again
		pending := make([]exam.Exam, 0, len(exams))
		ids := make([]int64, 0, len(exams))
		for _, e := range exams {
			if !e.IsPublished() {
				pending = append(pending, e)
				ids = append(ids, e.ID)
			}
		}
		if len(pending) == 0 {
			return ErrAlreadyPublished
		}

		results, err := svc.exams.QueryResults(ctx, exam.ResultFilter{ExamIDs: ids}, exec)
		if err != nil {
			return errors.Wrap(err, "querying results")
		}
		students, err := svc.students(ctx, results, exec)
		if err != nil {
			return err
		}

		now := NowFunc().UTC()
		pub = Publication{
			ID:          uuid.New().String(),
			ClassID:     scope.ClassID,
			Term:        scope.Term.Label(),
			TermKey:     scope.Term.Key(),
			ExamsCount:  len(pending),
			PublishedBy: by.ID,
			PublishedAt: now,
		}

		var notices []notice.Notice
		notices, emails = svc.fanOut(pending, results, students, now, &pub)

		if _, err = svc.exams.SetExamsStatus(ctx, ids, exam.StatusPublished, exec); err != nil {
			return errors.Wrap(err, "updating exams status")
		}
		if len(notices) > 0 {
			if _, err = svc.notices.CreateNotices(ctx, notices, exec); err != nil {
				return errors.Wrap(err, "creating notices")
			}
		}
		return errors.Wrap(svc.publications.CreatePublication(ctx, pub, exec), "recording publication")
	})
	if err != nil {
		return Publication{}, err
	}

	// committed: notify outside of the transaction
	if len(emails) > 0 {
		svc.mailSvc.SendMessages(emails...)
	}
	if err = svc.cache.Delete(ctx, scope.ReportCacheKey()); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating cached report: %v", err), err)
	}
	svc.metrics.ResultsPublished(pub.ExamsCount, pub.NoticesCount)
	svc.logger.Info(fmt.Sprintf("results published: %s - %d exams, %d notices", scope, pub.ExamsCount, pub.NoticesCount))
	return pub, nil
}

// students loads the students of the results, with their parents.
func (svc *service) students(ctx context.Context, results []exam.Result, exec core.DBExecutor) (map[int64]exam.Student, error) {
	if len(results) == 0 {
		return map[int64]exam.Student{}, nil
	}
	ids := make([]int64, 0, len(results))
	seen := make(map[int64]bool, len(results))
	for _, r := range results {
		if !seen[r.StudentID] {
			seen[r.StudentID] = true
			ids = append(ids, r.StudentID)
		}
	}
	list, err := svc.exams.QueryStudents(ctx, exam.StudentFilter{IDs: ids}, exec)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make(map[int64]exam.Student, len(list))
	for _, st := range list {
		students[st.ID] = st
	}
	return students, nil
}

// fanOut builds one notice per (exam, result) for the student, plus one for the parent when there is one.
func (svc *service) fanOut(
	exams []exam.Exam,
	results []exam.Result,
	students map[int64]exam.Student,
	now time.Time,
	pub *Publication,
) ([]notice.Notice, []*core.EmailMessage) {
	byExam := make(map[int64][]exam.Result, len(exams))
	for _, r := range results {
		byExam[r.ExamID] = append(byExam[r.ExamID], r)
	}

	notices := make([]notice.Notice, 0, len(results)*2)
	emails := make([]*core.EmailMessage, 0, len(results)*2)
	for _, e := range exams {
		for _, r := range byExam[e.ID] {
			st, ok := students[r.StudentID]
			if !ok {
				continue
			}
			data := emailData{
				RecipientName: st.FullName(),
				StudentName:   st.FullName(),
				Subject:       e.SubjectName,
				ExamTitle:     e.Title,
				Term:          e.Term.Label(),
				Marks:         r.Marks,
				TotalMarks:    e.TotalMarks,
				Grade:         r.Grade,
			}

			n := notice.ResultPublished(e, st, r, now)
			notices = append(notices, n)
			pub.StudentNotices++
			if st.Email != "" {
				emails = append(emails, resultEmail(n, st.FullName(), st.Email, data))
			}

			if st.HasParent() {
				n = notice.ChildResultPublished(e, st, r, now)
				notices = append(notices, n)
				pub.ParentNotices++
				if st.Parent.Email != "" {
					data.RecipientName = st.Parent.Name
					data.ForParent = true
					emails = append(emails, resultEmail(n, st.Parent.Name, st.Parent.Email, data))
				}
			}
		}
	}
	pub.NoticesCount = len(notices)
	return notices, emails
}

func resultEmail(n notice.Notice, name, email string, data emailData) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: email}},
		Subject:      n.Title,
		TemplateName: resultPublishedTmpl,
		TemplateData: data,
	}
}
