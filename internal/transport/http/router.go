package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/plantcare/internal/transport/http/handler"
	"github.com/ErlanBelekov/plantcare/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, plantHandler *handler.PlantHandler, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	plants := r.Group("/plants", middleware.Auth(jwtKey))
	plants.POST("", plantHandler.Create)
	plants.GET("", plantHandler.List)
	plants.GET("/:id", plantHandler.GetByID)
	plants.DELETE("/:id", plantHandler.Delete)
	plants.PUT("/:id/cadence", plantHandler.UpdateCadence)
	plants.POST("/:id/waterings", plantHandler.RecordWatering)
	plants.GET("/:id/reminder", plantHandler.Reminder)
	plants.GET("/:id/care-context", plantHandler.CareContext)
	plants.GET("/:id/schedule", plantHandler.Schedule)

	r.GET("/calendar.ics", middleware.Auth(jwtKey), plantHandler.Calendar)

	return r
}
