package middleware

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sqlmerr/twotty/internal/logger"
	"github.com/sqlmerr/twotty/internal/monitoring"
)

// Metrics records request count, duration and in-flight requests per route.
// A handler error is rendered here so the recorded status is final, and is
// still returned so outer middleware such as the request logger see it.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			monitoring.ActiveRequests.Inc()
			defer monitoring.ActiveRequests.Dec()

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			timer := prometheus.NewTimer(monitoring.HttpRequestDuration.WithLabelValues(route))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			timer.ObserveDuration()
			monitoring.HttpRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Response().Status)).Inc()
			return err
		}
	}
}

// RequestLogger writes one entry per request through logg.
func RequestLogger(logg *logger.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			l := logg.With(logger.Fields{
				"request_id": v.RequestID,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
			})
			msg := fmt.Sprintf("%s %s", v.Method, v.URI)
			if v.Error != nil {
				l.Error("http", msg, v.Error)
				return nil
			}
			l.Info("http", msg)
			return nil
		},
	})
}
