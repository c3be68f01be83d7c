package apperror

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler returns an Echo error handler that renders every error
// as {"error": "<message>"} with the error kind's status. Internal causes
// are logged, never serialised.
func HTTPErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "an internal error occurred"

		var appErr *Error
		var he *echo.HTTPError
		// errors.As, not a type assertion: services wrap error kinds
		// with fmt.Errorf("...: %w", err) and the status must survive.
		if errors.As(err, &appErr) {
			code = appErr.HTTPStatus
			message = appErr.Message
		} else if errors.As(err, &he) {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			} else {
				message = http.StatusText(code)
			}
		}

		if code >= 500 {
			log.Error("request error",
				slog.Int("status", code),
				slog.String("error", err.Error()),
			)
		}

		if c.Request().Method == http.MethodHead {
			c.NoContent(code)
		} else {
			c.JSON(code, map[string]string{"error": message})
		}
	}
}
