package factory

import (
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func NewModuleLogger(module string) logrus.FieldLogger {
	return logrus.WithField("module", module)
}

// LoggerWithContext tags the logger with the request id, falling back to the
// one the request-id middleware generated on the response.
func LoggerWithContext(logger logrus.FieldLogger, ctx echo.Context) logrus.FieldLogger {
	requestID := ctx.Request().Header.Get(echo.HeaderXRequestID)
	if requestID == "" {
		requestID = ctx.Response().Header().Get(echo.HeaderXRequestID)
	}
	return logger.WithField("request_id", requestID)
}

func LoggerWithSubscriber(logger logrus.FieldLogger, subscriberID string) logrus.FieldLogger {
	return logger.WithField("subscriber_id", subscriberID)
}
