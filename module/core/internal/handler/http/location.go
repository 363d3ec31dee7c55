package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/handler/payload"
)

type locationService interface {
	GetLatest(ctx context.Context, entityID string) (*domain.LocationFix, error)
	GetHistory(ctx context.Context, query *domain.HistoryQuery) ([]domain.LocationFix, error)
}

type locationResponse struct {
	EntityID  string  `json:"entity_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp int64   `json:"timestamp"`
}

type LocationHandler struct {
	locationSvc locationService
}

func NewLocationHandler(locationSvc locationService) *LocationHandler {
	return &LocationHandler{locationSvc: locationSvc}
}

func (h *LocationHandler) Register(r *gin.RouterGroup) {
	r.GET("/children/:entity_id/location", h.GetLatestLocation)
	r.GET("/children/:entity_id/history", h.GetHistory)
}

func (h *LocationHandler) GetLatestLocation(c *gin.Context) {
	fix, err := h.locationSvc.GetLatest(c.Request.Context(), c.Param("entity_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toLocationResponse(fix))
}

// GetHistory takes start and end as unix seconds or RFC 3339.
func (h *LocationHandler) GetHistory(c *gin.Context) {
	start, err := payload.ParseTime(c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start parameter"})
		return
	}

	end, err := payload.ParseTime(c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end parameter"})
		return
	}

	query := &domain.HistoryQuery{
		EntityID: c.Param("entity_id"),
		Start:    start,
		End:      end,
	}

	fixes, err := h.locationSvc.GetHistory(c.Request.Context(), query)
	if err != nil {
		writeError(c, err)
		return
	}

	results := make([]locationResponse, len(fixes))
	for i := range fixes {
		results[i] = toLocationResponse(&fixes[i])
	}
	c.JSON(http.StatusOK, results)
}

func toLocationResponse(fix *domain.LocationFix) locationResponse {
	return locationResponse{
		EntityID:  fix.EntityID,
		Latitude:  fix.Lat,
		Longitude: fix.Lon,
		Timestamp: fix.CapturedAt.Unix(),
	}
}
