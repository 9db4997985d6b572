package handler

import (
    "context"
    "net/http"

    "github.com/gorilla/websocket"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dorm-seat-reservation/internal/middleware"
    "github.com/iliyamo/dorm-seat-reservation/internal/notify"
    "github.com/iliyamo/dorm-seat-reservation/internal/service"
)

// RealtimeHandler upgrades GET /ws to a change subscription.
type RealtimeHandler struct {
    Hub      *notify.Hub
    Mod      *service.ModerationService
    Upgrader websocket.Upgrader
}

// NewRealtimeHandler builds the handler.  An empty origins list accepts any
// origin; subscribers only receive data that GET /reservations already
// exposes.
func NewRealtimeHandler(hub *notify.Hub, mod *service.ModerationService, origins []string) *RealtimeHandler {
    if hub == nil || mod == nil {
        panic("nil dependency passed to NewRealtimeHandler")
    }
    allowed := make(map[string]struct{}, len(origins))
    for _, o := range origins {
        allowed[o] = struct{}{}
    }
    return &RealtimeHandler{
        Hub: hub,
        Mod: mod,
        Upgrader: websocket.Upgrader{
            CheckOrigin: func(r *http.Request) bool {
                if len(allowed) == 0 {
                    return true
                }
                _, ok := allowed[r.Header.Get("Origin")]
                return ok
            },
        },
    }
}

// Subscribe handles GET /ws.  Browsers cannot set headers on a websocket
// handshake, so the admin token may also be passed as ?token=.  A bad
// admin credential is rejected before the upgrade.
func (h *RealtimeHandler) Subscribe(c echo.Context) error {
    cred := middleware.Admin(c)
    if tok := c.QueryParam("token"); tok != "" {
        cred.Token = tok
    }
    admin := false
    if cred.Present() {
        if _, err := h.Mod.Authorize(cred); err != nil {
            return fail(c, err)
        }
        admin = true
    }

    conn, err := h.Upgrader.Upgrade(c.Response(), c.Request(), nil)
    if err != nil {
        // the upgrader has already written the error response
        return nil
    }
    h.Hub.Serve(c.Request().Context(), conn, admin, func(ctx context.Context) ([]notify.Message, error) {
        events, err := h.Mod.InitialState(ctx, admin)
        if err != nil {
            return nil, err
        }
        msgs := make([]notify.Message, 0, len(events))
        for _, ev := range events {
            msgs = append(msgs, notify.Message{Event: ev.Event, Data: ev.Payload})
        }
        return msgs, nil
    })
    return nil
}
