package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Skarath13/cards/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrorHandler answers for errors a handler attached with c.Error without
// writing a response. Bind errors become 400; everything else is a 500 whose
// cause is logged and never sent.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last()
		bind := err.IsType(gin.ErrorTypeBind)

		ev := log.Error()
		if bind {
			ev = log.Warn()
		}
		withRequest(ev, c).Err(err.Err).Msg("request error")

		if c.Writer.Written() {
			return
		}
		if bind {
			c.AbortWithStatusJSON(http.StatusBadRequest, apierror.New("Invalid request body"))
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Internal server error"))
	}
}

// Recovery turns a panic into a 500 and logs it with the stack and the
// device that sent the request.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				withRequest(log.Error(), c).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, apierror.New("Internal server error"))
			}
		}()
		c.Next()
	}
}

// Logger writes one line per request, at a level that follows the status.
// Successful probes of /health and /metrics log at debug.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		case isProbe(c.Request.URL.Path):
			ev = log.Debug()
		default:
			ev = log.Info()
		}
		withRequest(ev, c).
			Str("client_ip", c.ClientIP()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func withRequest(ev *zerolog.Event, c *gin.Context) *zerolog.Event {
	ev = ev.Str("request_id", c.GetString(RequestIDKey)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path)
	if claims := GetClaims(c); claims != nil {
		ev = ev.Str("user_id", claims.UserID).Str("device_id", claims.DeviceID)
	}
	return ev
}

func isProbe(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/metrics")
}
