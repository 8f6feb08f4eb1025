package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-memberships/app/factory"
	"github.com/vibast-solutions/ms-go-memberships/app/service"
)

const maxIPNBodyBytes = 64 << 10

// WebhookController receives PayPal IPN posts. PayPal retries anything but a
// 200, so every outcome is acknowledged with an empty body.
type WebhookController struct {
	notifications *service.NotificationService
	tokenParam    string
	logger        logrus.FieldLogger
}

func NewWebhookController(notifications *service.NotificationService, tokenParam string) *WebhookController {
	return &WebhookController{
		notifications: notifications,
		tokenParam:    tokenParam,
		logger:        factory.NewModuleLogger("webhook-controller"),
	}
}

func (c *WebhookController) PayPalIPN(ctx echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxIPNBodyBytes))
	if err != nil {
		c.logger.WithError(err).Warn("Read IPN body failed")
		return ctx.NoContent(http.StatusOK)
	}

	outcome, err := c.notifications.HandleIPN(ctx.Request().Context(), ctx.QueryParam(c.tokenParam), body)
	entry := c.logger.WithField("outcome", outcome)
	switch {
	case err == nil:
		entry.Info("IPN processed")
	case errors.Is(err, service.ErrUnauthenticated):
		entry.WithError(err).Warn("IPN rejected")
	default:
		entry.WithError(err).Error("IPN processing failed")
	}
	return ctx.NoContent(http.StatusOK)
}
