package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
)

type alertService interface {
	Raise(ctx context.Context, req domain.RaiseRequest) (*domain.Alert, error)
	ListByEntity(ctx context.Context, entityID string) ([]domain.Alert, error)
	Delete(ctx context.Context, alertID string) error
}

type raiseRequest struct {
	EntityID string  `json:"entity_id"`
	ZoneID   *string `json:"zone_id"`
	ZoneName string  `json:"zone_name"`
	Kind     string  `json:"kind"`
	Message  string  `json:"message"`
}

type AlertHandler struct {
	alertSvc alertService
}

func NewAlertHandler(alertSvc alertService) *AlertHandler {
	return &AlertHandler{alertSvc: alertSvc}
}

func (h *AlertHandler) Register(r *gin.RouterGroup) {
	r.GET("/children/:entity_id/alerts", h.List)
	r.POST("/alerts", h.Raise)
	r.DELETE("/alerts/:alert_id", h.Delete)
}

func (h *AlertHandler) List(c *gin.Context) {
	alerts, err := h.alertSvc.ListByEntity(c.Request.Context(), c.Param("entity_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// Raise lets devices report alerts the server cannot derive itself, such
// as a low battery.
func (h *AlertHandler) Raise(c *gin.Context) {
	var req raiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	alert, err := h.alertSvc.Raise(c.Request.Context(), domain.RaiseRequest{
		EntityID: req.EntityID,
		ZoneID:   req.ZoneID,
		ZoneName: req.ZoneName,
		Kind:     domain.AlertKind(req.Kind),
		Message:  req.Message,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *AlertHandler) Delete(c *gin.Context) {
	if err := h.alertSvc.Delete(c.Request.Context(), c.Param("alert_id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
