package middleware

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorHandler renders every unhandled error in the service's JSON error
// shape. Validation and not-found errors surface their message as-is;
// anything in the 5xx range is also logged server-side.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		default:
			msg = fmt.Sprintf("%v", m)
		}
	}

	if code >= http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s: %v", c.Request().Method, c.Request().RequestURI, err)
	}

	if err := c.JSON(code, map[string]string{"message": msg}); err != nil {
		log.Printf("[HTTP] writing error response failed: %v", err)
	}
}
