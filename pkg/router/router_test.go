package router_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"tap-appstore/pkg/router"
)

func hit(t *testing.T, r *router.Router, method, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec.Code, rec.Body.String()
}

func named(name string) router.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(name)) }
}

func TestRouter_Dispatch(t *testing.T) {
	r := router.New(nil)
	r.GET("/api/v1/runs", named("list"))
	r.GET("/api/v1/runs/*/errors", named("errors"))
	r.GET("/api/v1/runs/*", named("get"))
	r.GET("/swagger/*", named("swagger"))

	code, body := hit(t, r, http.MethodGet, "/api/v1/runs")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "list", body)

	_, body = hit(t, r, http.MethodGet, "/api/v1/runs/abc/errors")
	require.Equal(t, "errors", body)

	_, body = hit(t, r, http.MethodGet, "/api/v1/runs/abc")
	require.Equal(t, "get", body)

	_, body = hit(t, r, http.MethodGet, "/swagger/index.html")
	require.Equal(t, "swagger", body)

	code, _ = hit(t, r, http.MethodPost, "/api/v1/runs")
	require.Equal(t, http.StatusMethodNotAllowed, code)

	code, _ = hit(t, r, http.MethodPost, "/api/v1/runs/abc")
	require.Equal(t, http.StatusMethodNotAllowed, code)

	code, _ = hit(t, r, http.MethodGet, "/api/v2/nothing")
	require.Equal(t, http.StatusNotFound, code)

	require.Len(t, r.Routes(), 4)
	require.True(t, r.Paths()["/api/v1/runs/*"])
}
