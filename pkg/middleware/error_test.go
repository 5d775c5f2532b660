package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appctx "github.com/Ramsey-B/fern/pkg/context"
)

func serveWithError(t *testing.T, handlerErr error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = Error(testLogger())
	e.Use(Context())
	e.GET("/boom", func(c echo.Context) error { return handlerErr })

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestError_HTTPError(t *testing.T) {
	rec, body := serveWithError(t, httperror.NewHTTPError(http.StatusConflict, "candidate already reviewed"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, body.Message, "candidate already reviewed")
	assert.Equal(t, "req-123", body.RequestID)
}

func TestError_EchoError(t *testing.T) {
	rec, body := serveWithError(t, echo.NewHTTPError(http.StatusForbidden, "insufficient role"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "insufficient role", body.Message)
}

func TestError_UnknownError(t *testing.T) {
	rec, body := serveWithError(t, errors.New("pq: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", body.Message)
}

func TestContext_GeneratesRequestID(t *testing.T) {
	e := echo.New()
	e.Use(Context())
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestContext_RequestValues(t *testing.T) {
	e := echo.New()
	e.HTTPErrorHandler = Error(testLogger())
	e.Use(Context())
	e.Use(Logger(testLogger()))

	var method, route, remoteIP string
	e.POST("/api/v1/candidates/:id/approve", func(c echo.Context) error {
		ctx := c.Request().Context()
		method = appctx.GetMethod(ctx)
		route = appctx.GetRoute(ctx)
		remoteIP = appctx.GetRemoteIP(ctx)
		return httperror.NewHTTPError(http.StatusConflict, "candidate already reviewed")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/candidates/abc/approve", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/api/v1/candidates/:id/approve", route)
	assert.Equal(t, "10.0.0.7", remoteIP)
}
