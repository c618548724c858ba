package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/openstud/openstud/core/billing"
)

type billingApi struct {
	svc      billing.Service
	validate *validator.Validate
}

func registerBillingAPI(g *echo.Group, jwt, authed echo.MiddlewareFunc, deps ServerDeps) {
	api := billingApi{svc: deps.BillingSvc, validate: deps.Validate}

	bg := g.Group("/billing")
	bg.GET("/plans", api.plans)

	ag := bg.Group("", jwt, authed)
	ag.GET("/subscription", api.subscription)
	ag.POST("/checkout", api.checkout)
}

func (api *billingApi) plans(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Plans())
}

func (api *billingApi) subscription(ctx echo.Context) error {
	sub, err := api.svc.Subscription(ctx.Request().Context(), actor(ctx))
	if err != nil {
		return errors.Wrap(err, "getting subscription")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *billingApi) checkout(ctx echo.Context) error {
	var data billing.Checkout
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Checkout")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	if err := api.svc.Checkout(ctx.Request().Context(), actor(ctx), data); err != nil {
		return errors.Wrap(err, "checking out")
	}
	return ctx.NoContent(http.StatusNoContent)
}
