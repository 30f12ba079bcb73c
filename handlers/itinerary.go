package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/siddharthiitian/Flight-Amedus/services"
)

// ItineraryRequest is the JSON body of POST /api/itinerary. Provider, Model
// and APIKey override the configured defaults for this request only.
type ItineraryRequest struct {
	services.ItineraryRequest
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

type ItineraryResponse struct {
	RequestID string              `json:"request_id"`
	Provider  string              `json:"provider"`
	Model     string              `json:"model"`
	Itinerary *services.Itinerary `json:"itinerary"`
}

// ItineraryHandler answers POST /api/itinerary.
func (h *Handler) ItineraryHandler(c *gin.Context) {
	var req ItineraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	p, err := h.provider(req.Provider, req.Model, req.APIKey)
	if err != nil {
		h.fail(c, err)
		return
	}

	it, err := h.planner.Generate(c.Request.Context(), req.ItineraryRequest, p)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.reqLog(c).Info("✅ itinerary generated",
		zap.String("provider", p.Name),
		zap.String("model", p.Model),
		zap.String("destination", it.Destination),
		zap.Int("days", it.TotalDays),
	)
	c.JSON(http.StatusOK, ItineraryResponse{
		RequestID: requestID(c),
		Provider:  p.Name,
		Model:     p.Model,
		Itinerary: it,
	})
}
