package exam

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grading"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound        = core.NewNotFoundError("exam not found")
	ErrClassNotFound   = core.NewNotFoundError("class not found")
	ErrSubjectNotFound = core.NewNotFoundError("subject not found")
	ErrStudentNotFound = core.NewNotFoundError("student not found")
)

type (
	Repository interface {
		GetClass(ctx context.Context, id int64, exec ...core.DBExecutor) (Class, error)
		GetSubject(ctx context.Context, id int64, exec ...core.DBExecutor) (Subject, error)
		GetStudent(ctx context.Context, id int64, exec ...core.DBExecutor) (Student, error)
		// QueryStudents returns students ordered by last name, first name and ID.
		QueryStudents(ctx context.Context, filter StudentFilter, exec ...core.DBExecutor) ([]Student, error)

		CreateExam(ctx context.Context, e Exam, exec ...core.DBExecutor) (Exam, error)
		UpdateExam(ctx context.Context, e Exam, exec ...core.DBExecutor) (Exam, error)
		GetExam(ctx context.Context, id int64, exec ...core.DBExecutor) (Exam, error)
		QueryExams(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Exam, error)
		// LockExams returns the exams of the scope ordered by date and ID, locked until the end of the transaction.
		LockExams(ctx context.Context, scope Scope, exec ...core.DBExecutor) ([]Exam, error)
		SetExamsStatus(ctx context.Context, ids []int64, status Status, exec ...core.DBExecutor) (int, error)

		// QueryResults returns results ordered by exam and ID.
		QueryResults(ctx context.Context, filter ResultFilter, exec ...core.DBExecutor) ([]Result, error)
		// UpsertResults creates or updates the result of each (exam, student) pair.
		UpsertResults(ctx context.Context, results []Result, exec ...core.DBExecutor) ([]Result, error)
	}

	Service interface {
		Create(ctx context.Context, ne NewExam) (Exam, error)
		Update(ctx context.Context, id int64, ue UpdateExam) (Exam, error)
		Get(ctx context.Context, id int64) (Exam, error)
		// Query lists exams with their display status.
		Query(ctx context.Context, filter Filter) ([]Exam, error)
		Results(ctx context.Context, examID int64) ([]Result, error)
		RecordMarks(ctx context.Context, examID int64, nm NewMarks) ([]Result, error)
		GetStudent(ctx context.Context, id int64) (Student, error)
	}

	service struct {
		tx      core.Transactor
		repo    Repository
		scales  grading.Repository
		cache   core.Cache
		metrics core.Metrics
		logger  core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	tx core.Transactor,
	repo Repository,
	scales grading.Repository,
	cache core.Cache,
	metrics core.Metrics,
	logger core.Logger,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(scales, "scales"),
		vala.IsNotNil(cache, "cache"),
		vala.IsNotNil(metrics, "metrics"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{
		tx:      tx,
		repo:    repo,
		scales:  scales,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

func (svc *service) Create(ctx context.Context, ne NewExam) (Exam, error) {
	if _, err := svc.repo.GetClass(ctx, ne.ClassID); err != nil {
		if errors.Cause(err) == ErrClassNotFound {
			return Exam{}, core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Exam{}, errors.Wrap(err, "finding class")
	}
	subj, err := svc.classSubject(ctx, ne.ClassID, ne.SubjectID)
	if err != nil {
		return Exam{}, err
	}

	now := NowFunc().UTC()
	e := Exam{
		Title:       ne.Title,
		ExamDate:    ne.date,
		TotalMarks:  ne.TotalMarks,
		Term:        ne.term,
		ClassID:     ne.ClassID,
		SubjectID:   subj.ID,
		SubjectName: subj.Name,
		TeacherID:   subj.TeacherID,
		Status:      StatusUpcoming,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	e, err = svc.repo.CreateExam(ctx, e)
	if err != nil {
		return Exam{}, errors.Wrap(err, "creating exam")
	}
	svc.invalidateReports(ctx, Scope{ClassID: e.ClassID, Term: e.Term})
	return e, nil
}

// classSubject finds the subject and checks it is taught in the class.
func (svc *service) classSubject(ctx context.Context, classID, subjectID int64) (Subject, error) {
	subj, err := svc.repo.GetSubject(ctx, subjectID)
	if err != nil {
		if errors.Cause(err) == ErrSubjectNotFound {
			return Subject{}, core.NewValidationError(nil, core.FieldError{Field: "subject_id", Error: err.Error()})
		}
		return Subject{}, errors.Wrap(err, "finding subject")
	}
	if subj.ClassID != classID {
		return Subject{}, core.NewValidationError(nil, core.FieldError{
			Field: "subject_id",
			Error: "subject is not taught in this class",
		})
	}
	return subj, nil
}

func (svc *service) Update(ctx context.Context, id int64, ue UpdateExam) (Exam, error) {
	var (
		orig Exam
		e    Exam
	)
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		orig, err = svc.repo.GetExam(ctx, id, exec)
		if err != nil {
			return err
		}
		e = orig

		if ue.Title != nil {
			e.Title = *ue.Title
		}
		if ue.ExamDate != nil {
			e.ExamDate = ue.date
		}
		if ue.Term != nil {
			e.Term = ue.term
		}
		if ue.SubjectID != nil && *ue.SubjectID != e.SubjectID {
			subj, err := svc.classSubject(ctx, e.ClassID, *ue.SubjectID)
			if err != nil {
				return err
			}
			e.SubjectID = subj.ID
			e.SubjectName = subj.Name
			e.TeacherID = subj.TeacherID
		}

		regrade := ue.TotalMarks != nil && *ue.TotalMarks != e.TotalMarks
		if regrade {
			e.TotalMarks = *ue.TotalMarks
		}
		e.UpdatedAt = NowFunc().UTC()
		if e, err = svc.repo.UpdateExam(ctx, e, exec); err != nil {
			return errors.Wrap(err, "updating exam")
		}
		if regrade {
			return svc.regrade(ctx, e, exec)
		}
		return nil
	})
	if err != nil {
		return Exam{}, err
	}

	svc.invalidateReports(ctx, Scope{ClassID: orig.ClassID, Term: orig.Term}, Scope{ClassID: e.ClassID, Term: e.Term})
	return e, nil
}

// regrade recomputes the grades of the results of an exam whose total marks changed.
func (svc *service) regrade(ctx context.Context, e Exam, exec core.DBExecutor) error {
	results, err := svc.repo.QueryResults(ctx, ResultFilter{ExamIDs: []int64{e.ID}}, exec)
	if err != nil {
		return errors.Wrap(err, "querying results")
	}
	if len(results) == 0 {
		return nil
	}
	scale, err := svc.scales.GetScale(ctx, exec)
	if err != nil {
		return errors.Wrap(err, "loading grade scale")
	}
	for i, r := range results {
		if r.Marks > e.TotalMarks {
			return core.NewValidationError(nil, core.FieldError{
				Field: "total_marks",
				Error: fmt.Sprintf("recorded marks (%g) exceed the new total", r.Marks),
			})
		}
		results[i].Grade = scale.Resolve(grading.Percent(r.Marks, e.TotalMarks))
		results[i].UpdatedAt = e.UpdatedAt
	}
	_, err = svc.repo.UpsertResults(ctx, results, exec)
	return errors.Wrap(err, "updating grades")
}

type regrader struct {
	repo Repository
}

var _ grading.Regrader = (*regrader)(nil) // interface compliance check

// NewRegrader regrades the stored results of every exam when the grade scale changes.
func NewRegrader(repo Repository) grading.Regrader {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()

	return &regrader{repo: repo}
}

// Regrade updates the results whose grade differs under scale and returns how many changed.
func (rg *regrader) Regrade(ctx context.Context, scale grading.Scale, exec core.DBExecutor) (int, error) {
	results, err := rg.repo.QueryResults(ctx, ResultFilter{}, exec)
	if err != nil {
		return 0, errors.Wrap(err, "querying results")
	}
	if len(results) == 0 {
		return 0, nil
	}

	ids := make([]int64, 0)
	seen := make(map[int64]bool)
	for _, r := range results {
		if !seen[r.ExamID] {
			seen[r.ExamID] = true
			ids = append(ids, r.ExamID)
		}
	}
	exams, err := rg.repo.QueryExams(ctx, Filter{IDs: ids}, exec)
	if err != nil {
		return 0, errors.Wrap(err, "querying exams")
	}
	totals := make(map[int64]float64, len(exams))
	for _, e := range exams {
		totals[e.ID] = e.TotalMarks
	}

	now := NowFunc().UTC()
	changed := make([]Result, 0)
	for _, r := range results {
		grade := scale.Resolve(grading.Percent(r.Marks, totals[r.ExamID]))
		if grade == r.Grade {
			continue
		}
		r.Grade = grade
		r.UpdatedAt = now
		changed = append(changed, r)
	}
	if len(changed) == 0 {
		return 0, nil
	}
	if _, err = rg.repo.UpsertResults(ctx, changed, exec); err != nil {
		return 0, errors.Wrap(err, "updating grades")
	}
	return len(changed), nil
}

func (svc *service) Get(ctx context.Context, id int64) (Exam, error) {
	return svc.repo.GetExam(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter Filter) ([]Exam, error) {
	exams, err := svc.repo.QueryExams(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying exams")
	}
	now := NowFunc()
	for i := range exams {
		exams[i].Status = exams[i].DisplayStatus(now)
	}
	return exams, nil
}

func (svc *service) Results(ctx context.Context, examID int64) ([]Result, error) {
	if _, err := svc.repo.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	results, err := svc.repo.QueryResults(ctx, ResultFilter{ExamIDs: []int64{examID}})
	return results, errors.Wrap(err, "querying results")
}

func (svc *service) RecordMarks(ctx context.Context, examID int64, nm NewMarks) ([]Result, error) {
	var (
		e       Exam
		results []Result
	)
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if e, err = svc.repo.GetExam(ctx, examID, exec); err != nil {
			return err
		}
		if err = svc.checkMarks(ctx, e, nm, exec); err != nil {
			return err
		}

		// the scale is loaded once and applied to every entry
		scale, err := svc.scales.GetScale(ctx, exec)
		if err != nil {
			return errors.Wrap(err, "loading grade scale")
		}
		now := NowFunc().UTC()
		toSave := make([]Result, 0, len(nm.Marks))
		for _, entry := range nm.Marks {
			toSave = append(toSave, Result{
				ExamID:    e.ID,
				StudentID: entry.StudentID,
				Marks:     entry.Marks,
				Grade:     scale.Resolve(grading.Percent(entry.Marks, e.TotalMarks)),
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		results, err = svc.repo.UpsertResults(ctx, toSave, exec)
		return errors.Wrap(err, "saving results")
	})
	if err != nil {
		return nil, err
	}

	svc.metrics.MarksRecorded(len(results))
	svc.invalidateReports(ctx, Scope{ClassID: e.ClassID, Term: e.Term})
	return results, nil
}

// checkMarks validates each entry against the exam total and the exam class roll.
func (svc *service) checkMarks(ctx context.Context, e Exam, nm NewMarks, exec core.DBExecutor) error {
	ids := make([]int64, 0, len(nm.Marks))
	seen := make(map[int64]bool, len(nm.Marks))
	var fldErrs []core.FieldError
	for i, entry := range nm.Marks {
		field := fmt.Sprintf("marks[%d]", i)
		if entry.Marks > e.TotalMarks {
			fldErrs = append(fldErrs, core.FieldError{
				Field: field + ".marks",
				Error: fmt.Sprintf("marks cannot exceed the exam total (%g)", e.TotalMarks),
			})
		}
		if seen[entry.StudentID] {
			fldErrs = append(fldErrs, core.FieldError{Field: field + ".student_id", Error: "duplicate student"})
		}
		seen[entry.StudentID] = true
		ids = append(ids, entry.StudentID)
	}

	students, err := svc.repo.QueryStudents(ctx, StudentFilter{IDs: ids}, exec)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	classOf := make(map[int64]int64, len(students))
	for _, st := range students {
		classOf[st.ID] = st.ClassID
	}
	for i, entry := range nm.Marks {
		if classID, ok := classOf[entry.StudentID]; !ok || classID != e.ClassID {
			fldErrs = append(fldErrs, core.FieldError{
				Field: fmt.Sprintf("marks[%d].student_id", i),
				Error: "student is not enrolled in the exam class",
			})
		}
	}

	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}
	return nil
}

func (svc *service) GetStudent(ctx context.Context, id int64) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

// invalidateReports drops the cached class reports of the scopes. Cache failures are only logged.
func (svc *service) invalidateReports(ctx context.Context, scopes ...Scope) {
	keys := make([]string, 0, len(scopes))
	for _, sc := range scopes {
		keys = append(keys, sc.ReportCacheKey())
	}
	if err := svc.cache.Delete(ctx, keys...); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating cached reports: %v", err), err)
	}
}
