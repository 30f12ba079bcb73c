package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/siddharthiitian/Flight-Amedus/services"
)

type SearchRequest struct {
	services.FlightSearchRequest
	MaxStops *int   `json:"max_stops,omitempty"` // nil or negative: any
	Sort     string `json:"sort,omitempty"`
}

type SearchResponse struct {
	RequestID string                 `json:"request_id"`
	Count     int                    `json:"count"`
	Offers    []services.FlightOffer `json:"offers"`
}

// SearchHandler answers POST /api/flights/search.
func (h *Handler) SearchHandler(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	sortOrder, err := services.ParseSortOrder(req.Sort)
	if err != nil {
		h.fail(c, err)
		return
	}
	maxStops := services.AnyStops
	if req.MaxStops != nil && *req.MaxStops >= 0 {
		maxStops = *req.MaxStops
	}

	offers, err := h.flights.SearchFlights(c.Request.Context(), req.FlightSearchRequest)
	if err != nil {
		h.fail(c, err)
		return
	}

	offers, err = services.SortOffers(services.FilterOffers(offers, maxStops), sortOrder)
	if err != nil {
		h.fail(c, err)
		return
	}

	h.reqLog(c).Info("✅ flight offers found",
		zap.String("origin", req.Origin),
		zap.String("destination", req.Destination),
		zap.Int("offers", len(offers)),
	)
	c.JSON(http.StatusOK, SearchResponse{
		RequestID: requestID(c),
		Count:     len(offers),
		Offers:    offers,
	})
}
