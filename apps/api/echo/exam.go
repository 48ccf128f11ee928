package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/user"
)

type examApi struct {
	svc      exam.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := examApi{svc: deps.ExamSvc, usrSvc: deps.UserSvc, validate: deps.Validate}

	eg := g.Group("/exams", jwt)
	eg.GET("", api.query, staffMiddleware())
	eg.POST("", api.create, adminMiddleware())

	// detail endpoints
	dg := eg.Group("/:id", api.examMiddleware)
	dg.PUT("", api.update, adminMiddleware())
	dg.GET("/results", api.results, staffMiddleware())
	dg.PUT("/results", api.recordMarks, staffMiddleware())
}

type ExamQuery struct {
	ClassID   int64  `query:"class_id"`
	SubjectID int64  `query:"subject_id"`
	Term      string `query:"term"`
}

func (api *examApi) query(ctx echo.Context) error {
	var q ExamQuery
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to ExamQuery")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	filter := exam.Filter{ClassID: q.ClassID, SubjectID: q.SubjectID, Ordering: ordering.Orderings}
	if q.Term != "" {
		term, err := exam.ParseTerm(q.Term)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "term", Error: err.Error()})
		}
		filter.TermKey = term.Key()
	}

	exams, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examApi) create(ctx echo.Context) error {
	var data exam.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *examApi) update(ctx echo.Context) error {
	e := ctx.Get("object").(exam.Exam)

	var data exam.UpdateExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	e, err := api.svc.Update(ctx.Request().Context(), e.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating exam")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *examApi) results(ctx echo.Context) error {
	e := ctx.Get("object").(exam.Exam)

	results, err := api.svc.Results(ctx.Request().Context(), e.ID)
	if err != nil {
		return errors.Wrap(err, "querying results")
	}
	return ctx.JSON(http.StatusOK, results)
}

// recordMarks is open to admins and to the teacher of the exam subject.
func (api *examApi) recordMarks(ctx echo.Context) error {
	e := ctx.Get("object").(exam.Exam)

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsAdmin() && (e.TeacherID == "" || e.TeacherID != ctxUsr.ID) {
		return errHttpForbidden
	}

	var data exam.NewMarks
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMarks")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	results, err := api.svc.RecordMarks(ctx.Request().Context(), e.ID, data)
	if err != nil {
		return errors.Wrap(err, "recording marks")
	}
	return ctx.JSON(http.StatusOK, results)
}

// examMiddleware loads the exam of the `:id` path param into the context "object".
func (api *examApi) examMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
		if err != nil {
			return errHttpNotFound
		}
		e, err := api.svc.Get(ctx.Request().Context(), id)
		if err != nil {
			if core.IsNotFound(err) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding exam")
		}
		ctx.Set("object", e)
		return next(ctx)
	}
}
