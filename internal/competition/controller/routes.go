package controller

import "github.com/gin-gonic/gin"

// RouteOptions holds per-group middleware. Nil entries are skipped.
type RouteOptions struct {
	Auth       gin.HandlerFunc
	ReadLimit  gin.HandlerFunc
	WriteLimit gin.HandlerFunc
}

// RegisterRoutes mounts competition endpoints. Mutations go through auth.
func RegisterRoutes(router gin.IRouter, h *CompetitionController, opts RouteOptions) {
	api := router.Group("/api/v1/competitions")

	read := api.Group("")
	use(read, opts.ReadLimit)
	read.GET("", h.List)
	read.GET("/ws", h.Watch)
	read.GET("/:id/status", h.GetStatus)
	read.GET("/:id/archive", h.GetArchive)

	write := api.Group("")
	use(write, opts.Auth, opts.WriteLimit)
	write.PUT("/:id", h.Upsert)
	write.DELETE("/:id", h.Delete)
}

func use(group *gin.RouterGroup, handlers ...gin.HandlerFunc) {
	for _, h := range handlers {
		if h != nil {
			group.Use(h)
		}
	}
}
