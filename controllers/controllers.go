package controllers

import (
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/lawoffice/billinghub/lib/responses"
)

func idParam(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.Logger().Errorf("Invalid %s path parameter: %v", name, c.Param(name))
		return 0, false
	}
	return id, true
}

// serviceError renders a service error. Only unexpected failures are
// reported to Sentry, domain rejections are part of normal operation.
func serviceError(c echo.Context, err error) error {
	resp := responses.ServiceError(err)
	if resp.HttpStatusCode >= http.StatusInternalServerError {
		c.Logger().Errorf("Billing service failure: %v", err)
		sentry.CaptureException(err)
	} else {
		c.Logger().Warnf("Request rejected: %v", err)
	}
	return c.JSON(resp.HttpStatusCode, resp)
}
