// Package router wires handlers and middleware onto an echo instance.
package router

import (
    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"
    "go.uber.org/zap"

    "github.com/iliyamo/dorm-seat-reservation/internal/handler"
    "github.com/iliyamo/dorm-seat-reservation/internal/middleware"
)

// Handlers bundles everything RegisterRoutes mounts.
type Handlers struct {
    Reservations *handler.ReservationHandler
    Admin        *handler.AdminHandler
    Realtime     *handler.RealtimeHandler
}

// Middleware holds the per-route middleware built from configuration.
// Nil entries are skipped.
type Middleware struct {
    RateLimit echo.MiddlewareFunc
    Cache     echo.MiddlewareFunc
}

func orPass(m echo.MiddlewareFunc) echo.MiddlewareFunc {
    if m == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return m
}

// New returns an echo instance with the global middleware installed.
func New(log *zap.Logger, corsOrigins []string) *echo.Echo {
    e := echo.New()
    e.HideBanner = true
    e.HidePort = true
    e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
        Generator: func() string { return uuid.NewString() },
    }))
    e.Use(middleware.RequestLogger(log))
    e.Use(echomw.Recover())
    cors := echomw.DefaultCORSConfig
    if len(corsOrigins) > 0 {
        cors.AllowOrigins = corsOrigins
    }
    cors.AllowHeaders = []string{
        echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
        middleware.HeaderAdminName, middleware.HeaderAdminSecret, middleware.HeaderDeviceID,
    }
    e.Use(echomw.CORSWithConfig(cors))
    return e
}

// RegisterRoutes mounts the API.  The rate limiter guards the
// per-reservation mutations only; the admin bulk cancel is not throttled.
func RegisterRoutes(e *echo.Echo, h Handlers, mw Middleware) {
    limit := orPass(mw.RateLimit)
    cache := orPass(mw.Cache)

    e.GET("/healthz", handler.Health)

    r := h.Reservations
    e.GET("/reservations", r.List, cache)
    e.POST("/reservations", r.Create, limit)
    e.PUT("/reservations/:id", r.Move, limit)
    e.DELETE("/reservations/:id", r.Cancel, limit)
    e.DELETE("/reservations", r.CancelAll)

    a := h.Admin
    e.GET("/admin-settings", a.GetSettings, cache)
    e.PUT("/admin-settings", a.UpdateSettings)
    for _, p := range []string{"/announcement", "/announcements"} {
        e.GET(p, a.GetAnnouncement, cache)
        e.PUT(p, a.UpdateAnnouncement)
    }
    e.GET("/admin-announcement", a.GetAdminAnnouncement)
    e.PUT("/admin-announcement", a.UpdateAdminAnnouncement)
    e.POST("/admin-login", a.Login)
    e.GET("/admin/cancelled-reservations", a.CancelledReservations)

    if h.Realtime != nil {
        e.GET("/ws", h.Realtime.Subscribe)
    }
}
