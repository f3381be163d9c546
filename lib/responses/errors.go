package responses

import (
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/invoiceflow/invoiceflow/lib/service"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error          bool   `json:"error"`
	Code           int    `json:"code"`
	Message        string `json:"message"`
	HttpStatusCode int    `json:"-"`
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

var ForbiddenError = ErrorResponse{
	Error:          true,
	Code:           3,
	Message:        "not allowed for this wallet",
	HttpStatusCode: 403,
}

var NotFoundError = ErrorResponse{
	Error:          true,
	Code:           4,
	Message:        "not found",
	HttpStatusCode: 404,
}

var ConflictError = ErrorResponse{
	Error:          true,
	Code:           5,
	Message:        "already exists",
	HttpStatusCode: 409,
}

var UnsupportedChainError = ErrorResponse{
	Error:          true,
	Code:           2,
	Message:        "unsupported chain",
	HttpStatusCode: 400,
}

var InsufficientPoolBalanceError = ErrorResponse{
	Error:          true,
	Code:           2,
	Message:        "insufficient research pool balance",
	HttpStatusCode: 400,
}

var ContractNotConfiguredError = ErrorResponse{
	Error:          true,
	Code:           7,
	Message:        "invoice registry is not configured",
	HttpStatusCode: 503,
}

var ChainCallError = ErrorResponse{
	Error:          true,
	Code:           9,
	Message:        "chain call failed",
	HttpStatusCode: 502,
}

// serviceErrors maps service sentinels to responses. Order matters for
// errors wrapping more than one sentinel.
var serviceErrors = []struct {
	err      error
	response ErrorResponse
}{
	{service.ErrNotFound, NotFoundError},
	{service.ErrConflict, ConflictError},
	{service.ErrForbidden, ForbiddenError},
	{service.ErrBadSignature, BadAuthError},
	{service.ErrInvalidArgument, BadArgumentsError},
	{service.ErrUnsupportedChain, UnsupportedChainError},
	{service.ErrInsufficientPoolBalance, InsufficientPoolBalanceError},
	{service.ErrContractNotConfigured, ContractNotConfiguredError},
	{service.ErrChainCall, ChainCallError},
}

// FromServiceError picks the response for an error returned by the service
// layer. Expected failures carry the error text; anything else is a
// GeneralServerError.
func FromServiceError(err error) ErrorResponse {
	for _, candidate := range serviceErrors {
		if errors.Is(err, candidate.err) {
			response := candidate.response
			response.Message = err.Error()
			return response
		}
	}
	return GeneralServerError
}

// ServiceError writes the response for err. Unexpected errors are logged and
// reported to sentry.
func ServiceError(c echo.Context, err error) error {
	response := FromServiceError(err)
	if response.HttpStatusCode >= http.StatusInternalServerError {
		c.Logger().Error(err)
		if hub := sentryecho.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
	}
	return c.JSON(response.HttpStatusCode, response)
}

func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	c.Logger().Error(err)
	if hub := sentryecho.GetHubFromContext(c); hub != nil && isErrAllowedForSentry(err) {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetExtra("WalletAddress", c.Get("WalletAddress"))
			hub.CaptureException(err)
		})
	}
	if he, ok := err.(*echo.HTTPError); ok {
		c.JSON(he.Code, he.Message)
		return
	}
	c.JSON(http.StatusInternalServerError, GeneralServerError)
}

// isErrAllowedForSentry keeps bad auth noise out of sentry.
func isErrAllowedForSentry(err error) bool {
	he, ok := err.(*echo.HTTPError)
	if !ok {
		return true
	}
	switch message := he.Message.(type) {
	case echo.Map:
		return message["code"] != BadAuthError.Code
	case ErrorResponse:
		return message.Code != BadAuthError.Code
	}
	return true
}
