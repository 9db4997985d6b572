package handler

import (
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/dorm-seat-reservation/internal/service"
)

func TestStatusOf(t *testing.T) {
    cases := map[service.Kind]int{
        service.KindValidation:     http.StatusBadRequest,
        service.KindWeakCredential: http.StatusBadRequest,
        service.KindAuthentication: http.StatusUnauthorized,
        service.KindAuthorization:  http.StatusForbidden,
        service.KindWindowClosed:   http.StatusForbidden,
        service.KindNotFound:       http.StatusNotFound,
        service.KindConflict:       http.StatusConflict,
        service.KindMisconfigured:  http.StatusInternalServerError,
        service.KindStore:          http.StatusInternalServerError,
    }
    for kind, want := range cases {
        assert.Equal(t, want, statusOf(kind), "kind %d", kind)
    }
}

func TestFailHidesInternalDetail(t *testing.T) {
    e := echo.New()

    rec := httptest.NewRecorder()
    c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
    require.NoError(t, fail(c, errors.New("dial tcp 10.0.0.5:3306: refused")))
    assert.Equal(t, http.StatusInternalServerError, rec.Code)
    assert.JSONEq(t, `{"error":"StoreFailure","message":"storage failure"}`, rec.Body.String())

    rec = httptest.NewRecorder()
    c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
    require.NoError(t, fail(c, &service.Error{Kind: service.KindConflict, Code: service.CodePlacementTaken, Message: "this seat is already reserved"}))
    assert.Equal(t, http.StatusConflict, rec.Code)
    assert.JSONEq(t, `{"error":"PlacementTaken","message":"this seat is already reserved"}`, rec.Body.String())
}
