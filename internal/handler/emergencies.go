package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"gorm.io/gorm"

	"Lifeline/internal/models"
	"Lifeline/pkg/response"
)

const recentCacheTTL = 10 * time.Second

// handleListEmergencies returns the newest records where the user is the
// sender or the receiver.
func (h *Handlers) handleListEmergencies(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		response.FailWithStatus(c, http.StatusBadRequest, "userId is required")
		return
	}
	limit := cast.ToInt(c.DefaultQuery("limit", "50"))

	cacheKey := fmt.Sprintf("emergencies:%s:%d", userID, limit)
	if h.cache != nil {
		if cached, ok := h.cache.Get(c.Request.Context(), cacheKey); ok {
			response.Success(c, "get emergencies", cached)
			return
		}
	}

	records, err := h.store.Recent(c.Request.Context(), userID, limit)
	if err != nil {
		response.FailWithStatus(c, http.StatusInternalServerError, "can not query emergency records")
		return
	}
	views := make([]emergencyView, 0, len(records))
	for i := range records {
		views = append(views, toEmergencyView(&records[i]))
	}

	if h.cache != nil {
		_ = h.cache.Set(c.Request.Context(), cacheKey, views, recentCacheTTL)
	}
	response.Success(c, "get emergencies", views)
}

// handleGetEmergency returns one record by id.
func (h *Handlers) handleGetEmergency(c *gin.Context) {
	id := cast.ToUint(c.Param("id"))
	if id == 0 {
		response.FailWithStatus(c, http.StatusBadRequest, "invalid id")
		return
	}

	rec, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			response.FailWithStatus(c, http.StatusNotFound, "record not found")
			return
		}
		response.FailWithStatus(c, http.StatusInternalServerError, "can not query emergency record")
		return
	}
	response.Success(c, "get emergency", toEmergencyView(rec))
}

// handleGetEmergencyAudio streams the stored voice clip of a record.
func (h *Handlers) handleGetEmergencyAudio(c *gin.Context) {
	id := cast.ToUint(c.Param("id"))
	if id == 0 {
		response.FailWithStatus(c, http.StatusBadRequest, "invalid id")
		return
	}

	rec, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FailWithStatus(c, http.StatusNotFound, "record not found")
		return
	}
	if rec.Kind != models.KindVoice || len(rec.AudioBlob) == 0 {
		response.FailWithStatus(c, http.StatusNotFound, "record has no audio")
		return
	}
	c.Data(http.StatusOK, "audio/wav", rec.AudioBlob)
}

// emergencyView keeps the audio blob out of list responses.
type emergencyView struct {
	ID         uint      `json:"id"`
	UserID     string    `json:"userId"`
	ReceiverID string    `json:"receiverId"`
	Kind       string    `json:"kind"`
	Text       string    `json:"text"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Address    string    `json:"address,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	HasAudio   bool      `json:"hasAudio"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toEmergencyView(rec *models.Emergency) emergencyView {
	return emergencyView{
		ID:         rec.ID,
		UserID:     rec.UserID,
		ReceiverID: rec.ReceiverID,
		Kind:       rec.Kind,
		Text:       rec.Text,
		Latitude:   rec.Latitude,
		Longitude:  rec.Longitude,
		Address:    rec.Address,
		Timestamp:  rec.Timestamp,
		HasAudio:   len(rec.AudioBlob) > 0,
		CreatedAt:  rec.CreatedAt,
	}
}
