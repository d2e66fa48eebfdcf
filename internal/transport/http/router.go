package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hqc-labs/huddle-delivery/internal/transport/http/handler"
	"github.com/hqc-labs/huddle-delivery/internal/transport/http/middleware"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, scheduleHandler *handler.ScheduleHandler, hmacKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	schedules := r.Group("/schedules", middleware.Auth(hmacKey))
	schedules.POST("/sequence/:sequenceId", scheduleHandler.Create)
	schedules.GET("/sequence/:sequenceId", scheduleHandler.ListBySequence)
	schedules.GET("/agency/:agencyId", scheduleHandler.ListByAgency)
	schedules.GET("/:id", scheduleHandler.GetByID)
	schedules.PUT("/:id", scheduleHandler.Update)
	schedules.POST("/:id/pause", scheduleHandler.Pause)
	schedules.POST("/:id/resume", scheduleHandler.Resume)
	schedules.DELETE("/:id", scheduleHandler.Cancel)

	return r
}
