package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// fieldError is one entry of a 400 {errors:[...]} validation response.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func validationFailed(c echo.Context, errs []fieldError) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"errors": errs})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func notFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, echo.Map{"error": msg})
}

// serverError logs err with the request logger and answers 500.  The
// underlying error is echoed back only in development.
func serverError(c echo.Context, dev bool, err error) error {
	zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("request failed")
	body := echo.Map{"error": "server error"}
	if dev {
		body["detail"] = err.Error()
	}
	return c.JSON(http.StatusInternalServerError, body)
}

// ErrorHandler renders errors returned by handlers and by echo itself
// (unknown route, wrong method, bind failures) in the {error} shape.
func ErrorHandler(dev bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			_ = serverError(c, dev, err)
			return
		}
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		if he.Code >= http.StatusInternalServerError {
			_ = serverError(c, dev, err)
			return
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(he.Code)
			return
		}
		_ = c.JSON(he.Code, echo.Map{"error": msg})
	}
}
