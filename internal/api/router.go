package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "tap-appstore/docs"
	"tap-appstore/internal/api/handler"
	"tap-appstore/pkg/router"
)

func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.GET("/api/v1/runs", h.ListRuns)
	// More specific routes first
	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.GET("/api/v1/runs/*/streams", h.GetRunStreams)
	// Generic run route last
	r.GET("/api/v1/runs/*", h.GetRun)
	r.GET("/api/v1/bookmarks", h.ListBookmarks)
	r.GET("/api/v1/streams", h.ListStreams)

	r.GET("/swagger/*", router.HandlerFunc(httpSwagger.WrapHandler))
}
