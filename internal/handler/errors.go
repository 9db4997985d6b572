package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dorm-seat-reservation/internal/service"
)

func statusOf(k service.Kind) int {
    switch k {
    case service.KindValidation, service.KindWeakCredential:
        return http.StatusBadRequest
    case service.KindAuthentication:
        return http.StatusUnauthorized
    case service.KindAuthorization, service.KindWindowClosed:
        return http.StatusForbidden
    case service.KindNotFound:
        return http.StatusNotFound
    case service.KindConflict:
        return http.StatusConflict
    default:
        return http.StatusInternalServerError
    }
}

// fail writes err as {"error": code, "message": msg}.  Errors that did not
// come from the service layer are reported as an opaque store failure.
func fail(c echo.Context, err error) error {
    var se *service.Error
    if !errors.As(err, &se) {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": service.CodeStore, "message": "storage failure"})
    }
    msg := se.Message
    if se.Kind == service.KindStore {
        msg = "storage failure"
    }
    return c.JSON(statusOf(se.Kind), echo.Map{"error": se.Code, "message": msg})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": service.CodeValidation, "message": msg})
}
