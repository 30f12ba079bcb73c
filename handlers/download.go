package handlers

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/siddharthiitian/Flight-Amedus/config"
	"github.com/siddharthiitian/Flight-Amedus/services"
)

// PDFRequest is the body of POST /api/itinerary/pdf and the payload the
// results page posts to /plan/pdf.
type PDFRequest struct {
	TravelerName string                `json:"traveler_name,omitempty"`
	Origin       string                `json:"origin,omitempty"`
	StartDate    string                `json:"start_date,omitempty"`
	EndDate      string                `json:"end_date,omitempty"`
	Itinerary    services.Itinerary    `json:"itinerary"`
	Flight       *services.FlightOffer `json:"flight,omitempty"`
}

// DownloadHandler answers POST /api/itinerary/pdf with the rendered document.
func (h *Handler) DownloadHandler(c *gin.Context) {
	var req PDFRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	h.writePDF(c, req)
}

func (h *Handler) writePDF(c *gin.Context, req PDFRequest) {
	pdf, err := services.GenerateItineraryPDF(services.PDFData{
		TravelerName: strings.TrimSpace(req.TravelerName),
		Origin:       req.Origin,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Itinerary:    req.Itinerary,
		Flight:       req.Flight,
		GeneratedAt:  time.Now().UTC(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+pdfFilename(req.Itinerary.Destination)+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", pdf)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// pdfFilename turns "São Paulo" into "itinerary-s-o-paulo.pdf".
func pdfFilename(destination string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(destination), "-"), "-")
	if slug == "" {
		return "itinerary.pdf"
	}
	return "itinerary-" + slug + ".pdf"
}

func (h *Handler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"service":    "AI Travel Planner API",
		"request_id": requestID(c),
	})
}

type providerStatus struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
	KeySet   bool   `json:"key_set"`
	KeyVar   string `json:"key_var"`
	JSONMode bool   `json:"json_mode"`
	Default  bool   `json:"default"`
}

// tokenSource is satisfied by services.AmadeusClient.
type tokenSource interface {
	Tokens() *services.TokenManager
}

// DiagnosticsHandler reports what is configured without exposing any secret.
func (h *Handler) DiagnosticsHandler(c *gin.Context) {
	providers := make([]providerStatus, 0, len(h.cfg.Providers))
	for _, name := range h.cfg.ProviderNames() {
		p := h.cfg.Providers[name]
		providers = append(providers, providerStatus{
			Name:     p.Name,
			Label:    p.Label,
			Model:    p.Model,
			BaseURL:  p.BaseURL,
			KeySet:   p.APIKey != "",
			KeyVar:   config.ProviderKeyVar(p.Name),
			JSONMode: p.JSONMode,
			Default:  p.Name == h.cfg.DefaultProvider,
		})
	}

	amadeus := gin.H{
		"env":               h.cfg.Amadeus.Env,
		"base_url":          h.cfg.Amadeus.BaseURL,
		"client_id_set":     h.cfg.Amadeus.ClientID != "",
		"client_secret_set": h.cfg.Amadeus.ClientSecret != "",
		"rate_limit":        h.cfg.Amadeus.RateLimit,
	}
	if ts, ok := h.flights.(tokenSource); ok {
		if exp := ts.Tokens().Expiry(); !exp.IsZero() {
			amadeus["token_expires_at"] = exp.UTC().Format(time.RFC3339)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id":       requestID(c),
		"amadeus":          amadeus,
		"default_currency": h.cfg.DefaultCurrency,
		"default_provider": h.cfg.DefaultProvider,
		"max_reprompts":    h.cfg.MaxReprompts,
		"tracing":          h.cfg.OTLPEndpoint != "",
		"providers":        providers,
	})
}
