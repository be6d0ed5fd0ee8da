package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/grade"
)

var (
	errNoAccountID        = echo.NewHTTPError(http.StatusBadRequest, "token does not identify an account")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "account not authenticated")
	errFileRequired       = core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
)

// partialImportError reports an import that failed after some rows were saved.
type partialImportError struct {
	err     error
	results []grade.ImportResult
}

func (e *partialImportError) Error() string { return e.err.Error() }

var kindStatus = map[core.Kind]int{
	core.KindValidation:           http.StatusBadRequest,
	core.KindConflict:             http.StatusConflict,
	core.KindNotFound:             http.StatusNotFound,
	core.KindUnauthorized:         http.StatusUnauthorized,
	core.KindForbidden:            http.StatusForbidden,
	core.KindConfigurationMissing: http.StatusBadRequest,
	core.KindRateLimited:          http.StatusTooManyRequests,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if pErr, ok := err.(*partialImportError); ok {
			code, msg := internalError(ctx, logger, pErr.err, signalShutdown)
			if !ctx.Response().Committed {
				if err = ctx.JSON(code, echo.Map{"error": msg, "results": pErr.results}); err != nil {
					ctx.Echo().Logger.Error(err)
				}
			}
			return
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.Error:
			if c, ok := kindStatus[origErr.Kind]; ok {
				code = c
				message = origErr.Message
				break
			}
			code, message = internalError(ctx, logger, err, signalShutdown)
		default: // any other error is a server error
			code, message = internalError(ctx, logger, err, signalShutdown)
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

// internalError logs err in full; clients only ever get the status text, debug mode included.
func internalError(ctx echo.Context, logger core.Logger, err error, signalShutdown func()) (int, string) {
	msg := http.StatusText(http.StatusInternalServerError)

	args := []interface{}{errors.Wrap(err, msg)}
	if id, ok := contextIdentity(ctx); ok {
		args = append(args, id)
	}
	logger.Error(msg, args...)

	// shutting down...
	if core.IsShutdown(err) {
		signalShutdown()
	}
	return http.StatusInternalServerError, msg
}
