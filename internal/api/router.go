// Package api exposes the notation parser, scheduler, MIDI export and
// scoring over HTTP.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/cbegin/drumtrainer-go/internal/config"
)

func SetupRouter(cfg *config.Config, version string) *gin.Engine {
	router := gin.New()
	router.Use(RecoverWithSentry())
	router.Use(SentryMiddleware())
	router.Use(RequestTracking())

	h := NewHandler(cfg, version)
	router.GET("/health", h.Health)

	v1 := router.Group("/api/v1/patterns")
	{
		v1.POST("/parse", h.Parse)
		v1.POST("/schedule", h.Schedule)
		v1.POST("/window", h.Window)
		v1.POST("/midi", h.MIDI)
		v1.POST("/score", h.Score)
	}
	return router
}
