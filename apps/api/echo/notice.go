package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core/notice"
	"github.com/trezcool/alama/core/user"
)

type noticeApi struct {
	svc    notice.Service
	usrSvc user.Service
}

func registerNoticeAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := noticeApi{svc: deps.NoticeSvc, usrSvc: deps.UserSvc}
	g.GET("/notices", api.query, jwt)
}

func (api *noticeApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	notices, err := api.svc.QueryForUser(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "querying notices")
	}
	return ctx.JSON(http.StatusOK, notices)
}
