package http

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/domain"
	"github.com/VaniaEncinas/ProyectoGradoGPS/module/core/internal/handler/payload"
)

const maxFixBody = 1 << 20

type ingestService interface {
	Ingest(ctx context.Context, raw domain.RawFix) (*domain.IngestResult, error)
}

// TrackerHandler receives fixes pushed by trackers and phone apps over HTTP.
type TrackerHandler struct {
	ingestSvc ingestService
}

func NewTrackerHandler(ingestSvc ingestService) *TrackerHandler {
	return &TrackerHandler{ingestSvc: ingestSvc}
}

func (h *TrackerHandler) Register(r *gin.RouterGroup) {
	r.POST("/tracker", h.Ingest)
}

func (h *TrackerHandler) Ingest(c *gin.Context) {
	raw, err := decodeFix(c)
	if err != nil {
		writeError(c, err)
		return
	}
	raw.Source = "http"

	result, err := h.ingestSvc.Ingest(c.Request.Context(), raw)
	if err != nil {
		if result != nil {
			log.Printf("ingest %s stored with evaluation error: %v", raw.TrackerID, err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":    "location stored but zone evaluation failed",
				"accepted": result.Accepted,
				"events":   result.Events,
			})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// decodeFix reads the JSON body and takes any field it lacks from the query
// string.
func decodeFix(c *gin.Context) (domain.RawFix, error) {
	var body []byte
	if c.Request.Body != nil {
		b, err := io.ReadAll(io.LimitReader(c.Request.Body, maxFixBody))
		if err != nil {
			return domain.RawFix{}, &domain.ValidationError{Field: "body", Reason: "unreadable"}
		}
		body = b
	}

	query, err := payload.FromQuery(c.Request.URL.Query())
	if err != nil {
		return domain.RawFix{}, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return query, nil
	}

	raw, err := payload.DecodeJSON(body)
	if err != nil {
		return domain.RawFix{}, err
	}
	return payload.Merge(raw, query), nil
}
