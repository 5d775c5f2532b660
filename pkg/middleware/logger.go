package middleware

import (
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

func Logger(logger ectologger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()
			res := c.Response()
			start := time.Now()
			if err = next(c); err != nil {
				c.Error(err)
			}
			stop := time.Now()

			ctx := c.Request().Context()
			fields := map[string]any{
				"request_id":    context.GetRequestID(ctx),
				"method":        context.GetMethod(ctx),
				"uri":           req.RequestURI,
				"status":        res.Status,
				"route":         context.GetRoute(ctx),
				"remote_ip":     context.GetRemoteIP(ctx),
				"user_agent":    req.UserAgent(),
				"response_time": stop.Sub(start),
				"request_size":  req.Header.Get(echo.HeaderContentLength),
				"response_size": strconv.FormatInt(res.Size, 10),
			}
			if traceID := tracing.GetTraceID(ctx); traceID != "" {
				fields["trace_id"] = traceID
				fields["span_id"] = tracing.GetSpanID(ctx)
			}
			if userID := context.GetUserID(ctx); userID != "" {
				fields["user_id"] = userID
			}

			entry := logger.WithContext(ctx).WithFields(fields)
			if res.Status >= 500 {
				entry.Warn("Request")
			} else {
				entry.Info("Request")
			}

			return nil
		}
	}
}
