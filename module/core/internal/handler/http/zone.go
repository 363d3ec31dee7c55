package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
)

type zoneService interface {
	List(ctx context.Context, entityID string) ([]domain.SafeZone, error)
	Create(ctx context.Context, zone *domain.SafeZone) error
	Update(ctx context.Context, zone *domain.SafeZone) error
	Delete(ctx context.Context, zoneID string) error
}

type zoneRequest struct {
	OwnerID         string   `json:"owner_id"`
	Name            string   `json:"name"`
	CenterLatitude  *float64 `json:"center_latitude"`
	CenterLongitude *float64 `json:"center_longitude"`
	RadiusMeters    float64  `json:"radius_meters"`
	Status          string   `json:"status"`
}

func (r *zoneRequest) toZone() (*domain.SafeZone, error) {
	if r.CenterLatitude == nil {
		return nil, &domain.ValidationError{Field: "center_latitude", Reason: "is required"}
	}
	if r.CenterLongitude == nil {
		return nil, &domain.ValidationError{Field: "center_longitude", Reason: "is required"}
	}
	return &domain.SafeZone{
		OwnerID:      r.OwnerID,
		Name:         r.Name,
		CenterLat:    *r.CenterLatitude,
		CenterLon:    *r.CenterLongitude,
		RadiusMeters: r.RadiusMeters,
		Status:       domain.ZoneStatus(r.Status),
	}, nil
}

type ZoneHandler struct {
	zoneSvc zoneService
}

func NewZoneHandler(zoneSvc zoneService) *ZoneHandler {
	return &ZoneHandler{zoneSvc: zoneSvc}
}

func (h *ZoneHandler) Register(r *gin.RouterGroup) {
	r.GET("/children/:entity_id/zones", h.List)
	r.POST("/children/:entity_id/zones", h.Create)
	r.PUT("/zones/:zone_id", h.Update)
	r.DELETE("/zones/:zone_id", h.Delete)
}

func (h *ZoneHandler) List(c *gin.Context) {
	zones, err := h.zoneSvc.List(c.Request.Context(), c.Param("entity_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, zones)
}

func (h *ZoneHandler) Create(c *gin.Context) {
	zone, ok := bindZone(c)
	if !ok {
		return
	}
	zone.EntityID = c.Param("entity_id")

	if err := h.zoneSvc.Create(c.Request.Context(), zone); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, zone)
}

func (h *ZoneHandler) Update(c *gin.Context) {
	zone, ok := bindZone(c)
	if !ok {
		return
	}
	zone.ZoneID = c.Param("zone_id")

	if err := h.zoneSvc.Update(c.Request.Context(), zone); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, zone)
}

func (h *ZoneHandler) Delete(c *gin.Context) {
	if err := h.zoneSvc.Delete(c.Request.Context(), c.Param("zone_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func bindZone(c *gin.Context) (*domain.SafeZone, bool) {
	var req zoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return nil, false
	}
	zone, err := req.toZone()
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return zone, true
}
