package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/openstud/openstud/core/tutor"
)

type tutorApi struct {
	svc      tutor.Service
	validate *validator.Validate
}

func registerTutorAPI(g *echo.Group, jwt, authed echo.MiddlewareFunc, deps ServerDeps) {
	api := tutorApi{svc: deps.TutorSvc, validate: deps.Validate}

	tg := g.Group("/tutor", jwt, authed)
	tg.POST("/chat", api.chat)
}

func (api *tutorApi) chat(ctx echo.Context) error {
	var data tutor.ChatRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChatRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	reply, err := api.svc.Chat(ctx.Request().Context(), actor(ctx), data)
	if err != nil {
		tutorReplies.WithLabelValues("error").Inc()
		return errors.Wrap(err, "chatting with tutor")
	}
	tutorReplies.WithLabelValues("ok").Inc()
	return ctx.JSON(http.StatusOK, reply)
}
