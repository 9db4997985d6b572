package middleware

import (
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
)

// RequestLogger writes one structured line per request.  Server errors log
// at error level, client errors at warn.
func RequestLogger(log *zap.Logger) echo.MiddlewareFunc {
    if log == nil {
        log = zap.NewNop()
    }
    log = log.Named("http")
    return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
        LogMethod:    true,
        LogURIPath:   true,
        LogRoutePath: true,
        LogStatus:    true,
        LogLatency:   true,
        LogRemoteIP:  true,
        LogRequestID: true,
        LogError:     true,
        HandleError:  true,
        LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
            level := zapcore.InfoLevel
            switch {
            case v.Status >= 500:
                level = zapcore.ErrorLevel
            case v.Status >= 400:
                level = zapcore.WarnLevel
            }
            fields := []zap.Field{
                zap.String("method", v.Method),
                zap.String("path", v.URIPath),
                zap.String("route", v.RoutePath),
                zap.Int("status", v.Status),
                zap.Duration("latency", v.Latency),
                zap.String("remote_ip", v.RemoteIP),
                zap.String("request_id", v.RequestID),
            }
            if v.Error != nil {
                fields = append(fields, zap.Error(v.Error))
            }
            log.Log(level, "request", fields...)
            return nil
        },
    })
}
