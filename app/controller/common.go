package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-memberships/app/factory"
	"github.com/vibast-solutions/ms-go-memberships/app/identity"
	"github.com/vibast-solutions/ms-go-memberships/app/service"
	"github.com/vibast-solutions/ms-go-memberships/app/types"
)

func writeError(ctx echo.Context, code int, message string) error {
	return ctx.JSON(code, &types.ErrorResponse{Error: message})
}

// statusFor maps a service error class to an HTTP status. Unknown errors are
// logged and reported as 500 without detail.
func statusFor(logger logrus.FieldLogger, op string, err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrGateway):
		logger.WithError(err).Warn(op + " failed at the payment gateway")
		return http.StatusBadGateway, service.GatewayMessage(err)
	default:
		logger.WithError(err).Error(op + " failed")
		return http.StatusInternalServerError, "internal server error"
	}
}

func serviceError(ctx echo.Context, logger logrus.FieldLogger, op string, err error) error {
	code, message := statusFor(factory.LoggerWithContext(logger, ctx), op, err)
	return writeError(ctx, code, message)
}

func currentSubscriber(ctx echo.Context) (identity.Subscriber, bool) {
	subscriber, ok := identity.SubscriberFromContext(ctx)
	if !ok {
		return identity.Subscriber{}, false
	}
	return *subscriber, true
}
