package handler

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dorm-seat-reservation/internal/middleware"
    "github.com/iliyamo/dorm-seat-reservation/internal/model"
    "github.com/iliyamo/dorm-seat-reservation/internal/service"
)

// AdminHandler exposes the booking window, the announcements, admin login
// and the cancellation audit.
type AdminHandler struct {
    Mod *service.ModerationService
}

// NewAdminHandler panics when mod is nil.
func NewAdminHandler(mod *service.ModerationService) *AdminHandler {
    if mod == nil {
        panic("nil service passed to NewAdminHandler")
    }
    return &AdminHandler{Mod: mod}
}

// parseTime accepts RFC3339 or an empty string / null for "unset".
func parseTime(raw *string, field string) (*time.Time, error) {
    if raw == nil || strings.TrimSpace(*raw) == "" {
        return nil, nil
    }
    t, err := time.Parse(time.RFC3339, strings.TrimSpace(*raw))
    if err != nil {
        return nil, &service.Error{Kind: service.KindValidation, Code: service.CodeValidation, Message: field + " must be an RFC3339 timestamp"}
    }
    return &t, nil
}

// GetSettings handles GET /admin-settings.
func (h *AdminHandler) GetSettings(c echo.Context) error {
    st, err := h.Mod.Settings(c.Request().Context())
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, st)
}

// UpdateSettings handles PUT /admin-settings.
func (h *AdminHandler) UpdateSettings(c echo.Context) error {
    var body struct {
        Start *string `json:"reservationStartTime"`
        End   *string `json:"reservationEndTime"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    start, err := parseTime(body.Start, "reservationStartTime")
    if err != nil {
        return fail(c, err)
    }
    end, err := parseTime(body.End, "reservationEndTime")
    if err != nil {
        return fail(c, err)
    }
    st, err := h.Mod.UpdateSettings(c.Request().Context(), middleware.Admin(c), start, end)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, st)
}

type announcementBody struct {
    Message string `json:"message"`
    Active  bool   `json:"active"`
}

// GetAnnouncement handles GET /announcement.
func (h *AdminHandler) GetAnnouncement(c echo.Context) error {
    a, err := h.Mod.Announcement(c.Request().Context())
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, a)
}

// UpdateAnnouncement handles PUT /announcement.
func (h *AdminHandler) UpdateAnnouncement(c echo.Context) error {
    return h.updateAnnouncement(c, model.AnnouncementPublic)
}

// GetAdminAnnouncement handles GET /admin-announcement.
func (h *AdminHandler) GetAdminAnnouncement(c echo.Context) error {
    a, err := h.Mod.AdminAnnouncement(c.Request().Context(), middleware.Admin(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, a)
}

// UpdateAdminAnnouncement handles PUT /admin-announcement.
func (h *AdminHandler) UpdateAdminAnnouncement(c echo.Context) error {
    return h.updateAnnouncement(c, model.AnnouncementAdmin)
}

func (h *AdminHandler) updateAnnouncement(c echo.Context, key string) error {
    var body announcementBody
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    a, err := h.Mod.UpdateAnnouncement(c.Request().Context(), middleware.Admin(c), key, body.Message, body.Active)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, a)
}

// Login handles POST /admin-login.  Credentials come from the body, with
// the admin headers as a fallback.
func (h *AdminHandler) Login(c echo.Context) error {
    var body struct {
        Name   string `json:"name"`
        Secret string `json:"secret"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    cred := middleware.Admin(c)
    cred.Token = ""
    if body.Secret != "" {
        cred.Name, cred.Secret = body.Name, body.Secret
    }
    res, err := h.Mod.Login(cred)
    if err != nil {
        return fail(c, err)
    }
    out := echo.Map{"success": true, "name": res.Name}
    if res.Token.Token != "" {
        out["token"] = res.Token.Token
        out["expires"] = res.Token.Exp
    }
    return c.JSON(http.StatusOK, out)
}

// CancelledReservations handles GET /admin/cancelled-reservations.
func (h *AdminHandler) CancelledReservations(c echo.Context) error {
    list, err := h.Mod.CancelledReservations(c.Request().Context(), middleware.Admin(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, list)
}
