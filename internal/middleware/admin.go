package middleware

import (
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dorm-seat-reservation/internal/service"
)

// Request headers understood by the API.
const (
    HeaderAdminName   = "X-Admin-Name"
    HeaderAdminSecret = "X-Admin-Secret"
    HeaderDeviceID    = "X-Device-ID"
)

const adminKey = "admin_credential"

// Admin returns the admin credential presented with the request: a Bearer
// session token, or the name and shared secret headers.  The result is
// memoised on the context.  Verification is left to the service layer.
func Admin(c echo.Context) service.AdminCredential {
    if v, ok := c.Get(adminKey).(service.AdminCredential); ok {
        return v
    }
    h := c.Request().Header
    cred := service.AdminCredential{
        Name:   strings.TrimSpace(h.Get(HeaderAdminName)),
        Secret: h.Get(HeaderAdminSecret),
    }
    if auth := h.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
        cred.Token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    c.Set(adminKey, cred)
    return cred
}

// DeviceID prefers the id sent in the body and falls back to the header.
func DeviceID(c echo.Context, fromBody string) string {
    if id := strings.TrimSpace(fromBody); id != "" {
        return id
    }
    return strings.TrimSpace(c.Request().Header.Get(HeaderDeviceID))
}
