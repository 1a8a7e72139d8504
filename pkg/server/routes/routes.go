package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/wpmend-dev/wpmend-agent/pkg/server/handlers"
)

func NewRouter(h *handlers.OpsHandlers) *gin.Engine {
	router := gin.Default()

	router.GET("/ops/pool", h.GetPoolStats)
	router.GET("/ops/servers/:uid/environment", h.GetServerEnvironment)

	return router
}
