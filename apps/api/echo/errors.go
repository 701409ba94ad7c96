package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/curriculum"
	"github.com/trezcool/elimu/core/school"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errFinalSubmitted       = echo.NewHTTPError(http.StatusConflict, school.ErrFinalSubmitted.Error())
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// domainHTTPError maps service errors to their HTTP counterpart, or returns nil.
func domainHTTPError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, school.ErrAuthenticationFailed):
		return errAuthenticationFailed
	case errors.Is(err, school.ErrAccountInactive):
		return errAccountDeactivated
	case errors.Is(err, school.ErrFinalSubmitted):
		return errFinalSubmitted
	case errors.Is(err, school.ErrNotFound), errors.Is(err, curriculum.ErrActivityNotFound):
		return errHttpNotFound
	}
	return nil
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			vErrs   validator.ValidationErrors
			appVErr *core.ValidationError
			httpErr *echo.HTTPError
		)

		switch {
		// validation errors first: they may wrap a domain error
		case errors.As(err, &vErrs):
			fldErrs := make(map[string]string, len(vErrs))
			for _, vErr := range vErrs {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case errors.As(err, &appVErr):
			if fldErrs := appVErr.FieldMap(); fldErrs != nil {
				message = fldErrs
			} else {
				message = appVErr.Error()
			}
			code = http.StatusBadRequest
		case domainHTTPError(err) != nil:
			httpErr = domainHTTPError(err)
			code = httpErr.Code
			message = httpErr.Message
		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			message = httpErr.Message
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if ident, ok := contextIdentity(ctx); ok {
				args = append(args, ident)
			}
			logger.Error(msg, args...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
