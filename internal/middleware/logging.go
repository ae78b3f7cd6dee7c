package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// RequestObserver receives one call per completed request.
type RequestObserver interface {
	RequestObserved(method, route string, status int, took time.Duration)
}

// RequestLogger logs every request through zap and reports it to obs,
// which may be nil.
func RequestLogger(log *zap.Logger, obs RequestObserver) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			}
			if sid := SessionID(c); sid != "" {
				fields = append(fields, zap.String("session_id", sid))
			}
			switch {
			case v.Error != nil:
				log.Warn("request failed", append(fields, zap.Error(v.Error))...)
			case v.Status >= 500:
				log.Warn("request", fields...)
			default:
				log.Info("request", fields...)
			}
			if obs != nil {
				route := v.RoutePath
				if route == "" {
					route = "unmatched"
				}
				obs.RequestObserved(v.Method, route, v.Status, v.Latency)
			}
			return nil
		},
	})
}
