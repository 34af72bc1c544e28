package handlers

import (
	"Lifeline/internal/emergency"
	"Lifeline/pkg/cache"
	"Lifeline/pkg/config"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handlers struct {
	db    *gorm.DB
	store *emergency.Store
	cache cache.Cache
}

func NewHandlers(db *gorm.DB, store *emergency.Store, c cache.Cache) *Handlers {
	return &Handlers{
		db:    db,
		store: store,
		cache: c,
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	r := engine.Group(config.GlobalConfig.APIPrefix)

	// Register System Module Routes
	h.registerSystemRoutes(r)

	// Register Business Module Routes
	h.registerEmergencyRoutes(r)
}

func (h *Handlers) registerEmergencyRoutes(r *gin.RouterGroup) {
	group := r.Group("emergencies")
	{
		group.GET("", h.handleListEmergencies)

		group.GET("/:id", h.handleGetEmergency)

		group.GET("/:id/audio", h.handleGetEmergencyAudio)
	}
}

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	system := r.Group("system")
	{
		system.GET("/health", h.HealthCheck)
	}
}
