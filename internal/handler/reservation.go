package handler

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dorm-seat-reservation/internal/middleware"
    "github.com/iliyamo/dorm-seat-reservation/internal/model"
    "github.com/iliyamo/dorm-seat-reservation/internal/service"
)

// ReservationHandler exposes the reservation endpoints.
type ReservationHandler struct {
    Svc *service.ReservationService
}

// NewReservationHandler panics when svc is nil.
func NewReservationHandler(svc *service.ReservationService) *ReservationHandler {
    if svc == nil {
        panic("nil service passed to NewReservationHandler")
    }
    return &ReservationHandler{Svc: svc}
}

type placementBody struct {
    Dormitory string `json:"dormitory"`
    Floor     string `json:"floor"`
    Seat      int    `json:"seat"`
}

func (b placementBody) placement() model.Placement {
    return model.Placement{Dormitory: b.Dormitory, Floor: b.Floor, Seat: b.Seat}
}

type bookingBody struct {
    RoomNo string `json:"roomNo"`
    Name   string `json:"name"`
    placementBody
    Password string `json:"password"`
    DeviceID string `json:"deviceId"`
    Website  string `json:"website"`
}

type credentialBody struct {
    Password string `json:"password"`
    DeviceID string `json:"deviceId"`
}

func reservationID(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    return id, err == nil && id > 0
}

// List handles GET /reservations.
func (h *ReservationHandler) List(c echo.Context) error {
    list, err := h.Svc.List(c.Request().Context())
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, list)
}

// Create handles POST /reservations.  An identity that already holds a
// reservation is moved instead; the status code tells the two apart.
func (h *ReservationHandler) Create(c echo.Context) error {
    var body bookingBody
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    res, created, err := h.Svc.CreateOrMove(c.Request().Context(), service.BookingRequest{
        Identity:  model.Identity{RoomNo: body.RoomNo, Name: body.Name},
        Placement: body.placement(),
        Password:  body.Password,
        DeviceID:  middleware.DeviceID(c, body.DeviceID),
        Honeypot:  body.Website,
    })
    if err != nil {
        return fail(c, err)
    }
    status := http.StatusOK
    if created {
        status = http.StatusCreated
    }
    return c.JSON(status, echo.Map{"success": true, "created": created, "reservation": res})
}

// Move handles PUT /reservations/:id.
func (h *ReservationHandler) Move(c echo.Context) error {
    id, ok := reservationID(c)
    if !ok {
        return badRequest(c, "invalid reservation id")
    }
    var body struct {
        placementBody
        credentialBody
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    res, err := h.Svc.Move(c.Request().Context(), id, service.MoveRequest{
        Placement: body.placement(),
        Password:  body.Password,
        DeviceID:  middleware.DeviceID(c, body.DeviceID),
        Admin:     middleware.Admin(c),
    })
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"success": true, "reservation": res})
}

// Cancel handles DELETE /reservations/:id.  The password may come in the
// body or, for clients that cannot send a DELETE body, as ?password=.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    id, ok := reservationID(c)
    if !ok {
        return badRequest(c, "invalid reservation id")
    }
    var body credentialBody
    if c.Request().ContentLength != 0 {
        if err := c.Bind(&body); err != nil {
            return badRequest(c, "invalid request body")
        }
    }
    if body.Password == "" {
        body.Password = c.QueryParam("password")
    }
    err := h.Svc.Cancel(c.Request().Context(), id, service.CancelRequest{
        Password: body.Password,
        DeviceID: middleware.DeviceID(c, body.DeviceID),
        Admin:    middleware.Admin(c),
    })
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"success": true})
}

// CancelAll handles DELETE /reservations (admin bulk cancel).
func (h *ReservationHandler) CancelAll(c echo.Context) error {
    n, err := h.Svc.BulkCancel(c.Request().Context(), middleware.Admin(c))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"success": true, "deleted": n})
}
