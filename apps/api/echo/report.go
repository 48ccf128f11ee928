package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/exam"
	"github.com/trezcool/alama/core/publish"
	"github.com/trezcool/alama/core/report"
	"github.com/trezcool/alama/core/user"
)

type reportApi struct {
	svc        report.Service
	examSvc    exam.Service
	publishSvc publish.Service
	usrSvc     user.Service
	validate   *validator.Validate
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := reportApi{
		svc:        deps.ReportSvc,
		examSvc:    deps.ExamSvc,
		publishSvc: deps.PublishSvc,
		usrSvc:     deps.UserSvc,
		validate:   deps.Validate,
	}

	rg := g.Group("/reports", jwt)
	rg.GET("/class", api.classTerm, staffMiddleware())
	rg.GET("/students/:id", api.student)
	rg.POST("/publish", api.publish, adminMiddleware())
}

type (
	// ScopeRequest selects the exams of a class for a term.
	ScopeRequest struct {
		ClassID int64  `json:"class_id" query:"class_id" validate:"required"`
		Term    string `json:"term" query:"term" validate:"required,notblank,max=100"`

		term exam.Term
	}

	StudentReportQuery struct {
		Term string `query:"term"`
	}
)

func (sr *ScopeRequest) Validate(validate *validator.Validate) error {
	if err := validate.Struct(sr); err != nil {
		return err
	}
	term, err := exam.ParseTerm(sr.Term)
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "term", Error: err.Error()})
	}
	sr.term = term
	return nil
}

func (sr ScopeRequest) Scope() exam.Scope {
	return exam.Scope{ClassID: sr.ClassID, Term: sr.term}
}

func (api *reportApi) classTerm(ctx echo.Context) error {
	var data ScopeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScopeRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	rep, err := api.svc.ClassTerm(ctx.Request().Context(), data.Scope())
	if err != nil {
		return errors.Wrap(err, "building class report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

// student is open to staff, to the student and to their parent.
func (api *reportApi) student(ctx echo.Context) error {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return errHttpNotFound
	}
	reqCtx := ctx.Request().Context()

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !(ctxUsr.IsAdmin() || ctxUsr.IsTeacher()) {
		st, err := api.examSvc.GetStudent(reqCtx, id)
		if err != nil {
			if core.IsNotFound(err) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding student")
		}
		isSelf := st.UserID == ctxUsr.ID
		isParent := st.HasParent() && st.Parent.UserID == ctxUsr.ID
		if !(isSelf || isParent) {
			return errHttpForbidden
		}
	}

	var q StudentReportQuery
	if err = ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to StudentReportQuery")
	}
	var term exam.Term
	if q.Term != "" {
		if term, err = exam.ParseTerm(q.Term); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "term", Error: err.Error()})
		}
	}

	rep, err := api.svc.Student(reqCtx, id, term)
	if err != nil {
		return errors.Wrap(err, "building student report")
	}
	return ctx.JSON(http.StatusOK, rep)
}

func (api *reportApi) publish(ctx echo.Context) error {
	var data ScopeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScopeRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	pub, err := api.publishSvc.PublishTerm(ctx.Request().Context(), data.Scope(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "publishing results")
	}
	return ctx.JSON(http.StatusOK, PublishResponse{
		Success:     "Results published successfully.",
		Publication: pub,
	})
}

type PublishResponse struct {
	Success     string              `json:"success"`
	Publication publish.Publication `json:"publication"`
}
