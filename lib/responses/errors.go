package responses

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/lawoffice/billinghub/lib/service"
)

type ErrorResponse struct {
	Error          bool        `json:"error"`
	Code           int         `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	HttpStatusCode int         `json:"-"`
}

var GeneralServerError = ErrorResponse{
	Error:          true,
	Code:           6,
	Message:        "Something went wrong. Please try again later",
	HttpStatusCode: 500,
}

var BadArgumentsError = ErrorResponse{
	Error:          true,
	Code:           8,
	Message:        "Bad arguments",
	HttpStatusCode: 400,
}

var BadAuthError = ErrorResponse{
	Error:          true,
	Code:           1,
	Message:        "bad auth",
	HttpStatusCode: 401,
}

var NotFoundError = ErrorResponse{
	Error:          true,
	Code:           4,
	Message:        "not found",
	HttpStatusCode: 404,
}

var TimeConflictError = ErrorResponse{
	Error:          true,
	Code:           10,
	Message:        "time conflict with committed billing entries",
	HttpStatusCode: 409,
}

var InvoiceValidationError = ErrorResponse{
	Error:          true,
	Code:           11,
	Message:        "invoice has unresolved time conflicts",
	HttpStatusCode: 409,
}

var AlreadySubmittedError = ErrorResponse{
	Error:          true,
	Code:           12,
	Message:        "invoice already submitted",
	HttpStatusCode: 409,
}

var DuplicateAttachmentError = ErrorResponse{
	Error:          true,
	Code:           13,
	Message:        "billing entry already on invoice",
	HttpStatusCode: 409,
}

var AlreadyCommittedError = ErrorResponse{
	Error:          true,
	Code:           14,
	Message:        "billing entry already committed on another invoice",
	HttpStatusCode: 409,
}

var DuplicateInvoiceNumberError = ErrorResponse{
	Error:          true,
	Code:           15,
	Message:        "invoice number already in use",
	HttpStatusCode: 409,
}

var ImmutableInvoiceError = ErrorResponse{
	Error:          true,
	Code:           20,
	Message:        "invoice is not a draft",
	HttpStatusCode: 422,
}

var ImmutableEntryError = ErrorResponse{
	Error:          true,
	Code:           21,
	Message:        "committed billing entry bounds and hours can not change",
	HttpStatusCode: 422,
}

var MismatchError = ErrorResponse{
	Error:          true,
	Code:           22,
	Message:        "resources belong to different matters or clients",
	HttpStatusCode: 422,
}

// ServiceError maps an error returned by the billing service to the response
// sent to the client. The message carries the error text, conflict errors
// carry the conflicting entries as details.
func ServiceError(err error) ErrorResponse {
	var (
		conflictErr   *service.ConflictError
		validationErr *service.ValidationError
		submittedErr  *service.AlreadySubmittedError
		duplicateErr  *service.DuplicateAttachmentError
		committedErr  *service.AlreadyCommittedError
		numberErr     *service.DuplicateInvoiceNumberError
		invoiceErr    *service.ImmutableInvoiceError
		entryErr      *service.ImmutableEntryError
		matterErr     *service.MatterMismatchError
		clientErr     *service.ClientMismatchError
		intervalErr   *service.InvalidIntervalError
		argumentErr   *service.InvalidArgumentError
		notFoundErr   *service.NotFoundError
	)

	var resp ErrorResponse
	switch {
	case errors.As(err, &conflictErr):
		resp = TimeConflictError
		resp.Details = conflictErr.Conflicts
	case errors.As(err, &validationErr):
		resp = InvoiceValidationError
		resp.Details = validationErr.Conflicts
	case errors.As(err, &submittedErr):
		resp = AlreadySubmittedError
	case errors.As(err, &duplicateErr):
		resp = DuplicateAttachmentError
	case errors.As(err, &committedErr):
		resp = AlreadyCommittedError
	case errors.As(err, &numberErr):
		resp = DuplicateInvoiceNumberError
	case errors.As(err, &invoiceErr):
		resp = ImmutableInvoiceError
	case errors.As(err, &entryErr):
		resp = ImmutableEntryError
	case errors.As(err, &matterErr), errors.As(err, &clientErr):
		resp = MismatchError
	case errors.As(err, &intervalErr), errors.As(err, &argumentErr):
		resp = BadArgumentsError
	case errors.As(err, &notFoundErr):
		resp = NotFoundError
	default:
		return GeneralServerError
	}
	resp.Message = err.Error()
	return resp
}

func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil && isErrAllowedForSentry(err) {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("RequestID", c.Response().Header().Get(echo.HeaderXRequestID))
			hub.CaptureException(err)
		})
	}
	if he, ok := err.(*echo.HTTPError); ok {
		c.JSON(he.Code, he.Message)
		return
	}
	resp := ServiceError(err)
	c.JSON(resp.HttpStatusCode, resp)
}

// isErrAllowedForSentry filters out bad auth responses and expected domain
// rejections, only unexpected failures are reported.
func isErrAllowedForSentry(err error) bool {
	if he, ok := err.(*echo.HTTPError); ok {
		if m, ok := he.Message.(echo.Map); ok && m["code"] == BadAuthError.Code {
			return false
		}
		return he.Code >= http.StatusInternalServerError || he.Code == http.StatusBadRequest
	}
	return ServiceError(err).HttpStatusCode >= http.StatusInternalServerError
}
