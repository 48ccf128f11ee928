package report

import (
	"context"
	"fmt"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/grading"
)

const (
	msgNoStudents = "no students enrolled in this class"
	msgNoExams    = "no exams found for this class and term"
	msgNoResults  = "no results recorded for this student"

	kindClass   = "class"
	kindStudent = "student"
)

type (
	Service interface {
		// ClassTerm returns the ranked report of a class for one term.
		ClassTerm(ctx context.Context, scope exam.Scope) (ClassReport, error)
		// Student returns the report of one student across all terms, or one term when term is not zero.
		Student(ctx context.Context, studentID int64, term exam.Term) (StudentReport, error)
	}

	service struct {
		exams   exam.Repository
		scales  grading.Repository
		cache   core.Cache
		metrics core.Metrics
		logger  core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	exams exam.Repository,
	scales grading.Repository,
	cache core.Cache,
	metrics core.Metrics,
	logger core.Logger,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(exams, "exams"),
		vala.IsNotNil(scales, "scales"),
		vala.IsNotNil(cache, "cache"),
		vala.IsNotNil(metrics, "metrics"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{
		exams:   exams,
		scales:  scales,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

func (svc *service) ClassTerm(ctx context.Context, scope exam.Scope) (ClassReport, error) {
	var rep ClassReport
	key := scope.ReportCacheKey()
	if found, err := svc.cache.Get(ctx, key, &rep); err != nil {
		svc.logger.Warn(fmt.Sprintf("reading cached report %s: %v", key, err), err)
	} else if found {
		svc.metrics.ReportServed(kindClass, true)
		return rep, nil
	}

	rep, err := svc.buildClassReport(ctx, scope)
	if err != nil {
		return ClassReport{}, err
	}

	if err = svc.cache.Set(ctx, key, rep); err != nil {
		svc.logger.Warn(fmt.Sprintf("caching report %s: %v", key, err), err)
	}
	svc.metrics.ReportServed(kindClass, false)
	return rep, nil
}

func (svc *service) buildClassReport(ctx context.Context, scope exam.Scope) (ClassReport, error) {
	class, err := svc.exams.GetClass(ctx, scope.ClassID)
	if err != nil {
		return ClassReport{}, err
	}
	rep := ClassReport{
		ClassID:   class.ID,
		ClassName: class.Name,
		Term:      scope.Term.Label(),
		Students:  make([]RankedStudent, 0),
	}

	students, err := svc.exams.QueryStudents(ctx, exam.StudentFilter{ClassID: scope.ClassID})
	if err != nil {
		return ClassReport{}, errors.Wrap(err, "querying students")
	}
	if len(students) == 0 {
		rep.Message = msgNoStudents
		return rep, nil
	}
	exams, err := svc.exams.QueryExams(ctx, exam.Filter{ClassID: scope.ClassID, TermKey: scope.Term.Key()})
	if err != nil {
		return ClassReport{}, errors.Wrap(err, "querying exams")
	}
	if len(exams) == 0 {
		rep.Message = msgNoExams
		return rep, nil
	}

	results, err := svc.exams.QueryResults(ctx, exam.ResultFilter{ExamIDs: examIDs(exams)})
	if err != nil {
		return ClassReport{}, errors.Wrap(err, "querying results")
	}
	scale, err := svc.scales.GetScale(ctx)
	if err != nil {
		return ClassReport{}, errors.Wrap(err, "loading grade scale")
	}

	grouped := resultsByStudent(results)
	rolled := make([]StudentResult, 0, len(students))
	for _, st := range students {
		rolled = append(rolled, Rollup(st, Aggregate(exams, grouped[st.ID], scale), scale))
	}
	rep.Students = Rank(rolled)
	rep.Summary = Summarize(rep.Students)
	return rep, nil
}

func (svc *service) Student(ctx context.Context, studentID int64, term exam.Term) (StudentReport, error) {
	st, err := svc.exams.GetStudent(ctx, studentID)
	if err != nil {
		return StudentReport{}, err
	}

	results, err := svc.exams.QueryResults(ctx, exam.ResultFilter{StudentID: st.ID})
	if err != nil {
		return StudentReport{}, errors.Wrap(err, "querying results")
	}
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ExamID)
	}

	var exams []exam.Exam
	if len(ids) > 0 {
		filter := exam.Filter{IDs: ids}
		if !term.IsZero() {
			filter.TermKey = term.Key()
		}
		if exams, err = svc.exams.QueryExams(ctx, filter); err != nil {
			return StudentReport{}, errors.Wrap(err, "querying exams")
		}
	}

	scale, err := svc.scales.GetScale(ctx)
	if err != nil {
		return StudentReport{}, errors.Wrap(err, "loading grade scale")
	}

	rep := StudentReport{
		StudentResult: Rollup(st, Aggregate(exams, results, scale), scale),
		ClassID:       st.ClassID,
		Term:          term.Label(),
	}
	if len(rep.Subjects) == 0 {
		rep.Message = msgNoResults
	}
	svc.metrics.ReportServed(kindStudent, false)
	return rep, nil
}

func examIDs(exams []exam.Exam) []int64 {
	ids := make([]int64, 0, len(exams))
	for _, e := range exams {
		ids = append(ids, e.ID)
	}
	return ids
}
