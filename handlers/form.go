package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/siddharthiitian/Flight-Amedus/config"
	"github.com/siddharthiitian/Flight-Amedus/services"
)

// PlanForm is the trip form posted to /plan.
type PlanForm struct {
	Origin       string   `form:"origin"`
	Destination  string   `form:"destination"` // IATA code, used for flights
	City         string   `form:"city"`        // optional name for the itinerary
	StartDate    string   `form:"start_date"`
	EndDate      string   `form:"end_date"`
	Travelers    int      `form:"travelers"`
	Budget       string   `form:"budget"`
	Pace         string   `form:"pace"`
	Interests    []string `form:"interests"`
	Currency     string   `form:"currency"`
	Provider     string   `form:"provider"`
	Model        string   `form:"model"`
	APIKey       string   `form:"api_key"`
	NonStop      bool     `form:"non_stop"`
	MaxResults   int      `form:"max_results"`
	MaxStops     string   `form:"max_stops"`
	Sort         string   `form:"sort"`
	TravelerName string   `form:"traveler_name"`
}

func (f PlanForm) itineraryRequest() services.ItineraryRequest {
	dest := strings.TrimSpace(f.City)
	if dest == "" {
		dest = f.Destination
	}
	return services.ItineraryRequest{
		Origin:      f.Origin,
		Destination: dest,
		StartDate:   f.StartDate,
		EndDate:     f.EndDate,
		Travelers:   f.Travelers,
		Budget:      f.Budget,
		Interests:   f.Interests,
		Pace:        f.Pace,
		Currency:    f.Currency,
	}
}

func (f PlanForm) flightRequest() services.FlightSearchRequest {
	return services.FlightSearchRequest{
		Origin:        f.Origin,
		Destination:   f.Destination,
		DepartureDate: f.StartDate,
		ReturnDate:    f.EndDate,
		Adults:        f.Travelers,
		Currency:      f.Currency,
		NonStop:       f.NonStop,
		Max:           f.MaxResults,
	}
}

// maxStops reads the "Max stops" select as an upper bound on stops per
// journey; empty means any.
func (f PlanForm) maxStops() int {
	n, err := strconv.Atoi(strings.TrimSpace(f.MaxStops))
	if err != nil || n < 0 {
		return services.AnyStops
	}
	return n
}

// OfferView is one flight offer on the results page. PDFPayload is set when
// an itinerary is available to pair it with.
type OfferView struct {
	services.FlightOffer
	PDFPayload string
}

// PlanPage is the data behind index.html.
type PlanPage struct {
	RequestID  string
	Form       PlanForm
	Providers  []config.LLMProvider
	Budgets    []string
	Paces      []string
	Interests  []string
	SortOrders []string

	Submitted    bool
	FormError    string
	Itinerary    *services.Itinerary
	ItineraryErr string
	PDFPayload   string
	Offers       []OfferView
	FlightsErr   string
}

func (h *Handler) newPage(c *gin.Context, form PlanForm) PlanPage {
	providers := make([]config.LLMProvider, 0, len(h.cfg.Providers))
	for _, name := range h.cfg.ProviderNames() {
		p := h.cfg.Providers[name]
		p.APIKey = ""
		providers = append(providers, p)
	}
	return PlanPage{
		RequestID:  requestID(c),
		Form:       form,
		Providers:  providers,
		Budgets:    services.BudgetTiers,
		Paces:      services.Paces,
		Interests:  services.Interests,
		SortOrders: services.SortOrders,
	}
}

// FormHandler renders the empty trip form with sensible defaults.
func (h *Handler) FormHandler(c *gin.Context) {
	today := time.Now().UTC()
	form := PlanForm{
		Origin:      "SFO",
		Destination: "CDG",
		StartDate:   today.AddDate(0, 0, 30).Format("2006-01-02"),
		EndDate:     today.AddDate(0, 0, 37).Format("2006-01-02"),
		Travelers:   2,
		Budget:      "moderate",
		Pace:        "balanced",
		Currency:    h.cfg.DefaultCurrency,
		Provider:    h.cfg.DefaultProvider,
		MaxResults:  10,
	}
	c.HTML(http.StatusOK, "index.html", h.newPage(c, form))
}

// PlanHandler runs the itinerary generator and the flight search for one
// form submission. Each result section carries its own error.
func (h *Handler) PlanHandler(c *gin.Context) {
	var form PlanForm
	if err := c.ShouldBind(&form); err != nil {
		page := h.newPage(c, form)
		page.FormError = "Invalid form: " + err.Error()
		c.HTML(http.StatusBadRequest, "index.html", page)
		return
	}
	form.APIKey = strings.TrimSpace(form.APIKey)

	page := h.newPage(c, form)
	page.Submitted = true
	page.Form.APIKey = ""
	ctx := c.Request.Context()
	log := h.reqLog(c)

	// ── Itinerary ─────────────────────────────────────────────
	if p, err := h.provider(form.Provider, form.Model, form.APIKey); err != nil {
		page.ItineraryErr = err.Error()
	} else if it, err := h.planner.Generate(ctx, form.itineraryRequest(), p); err != nil {
		log.Warn("⚠️ itinerary generation failed", zap.String("provider", p.Name), zap.String("kind", errorKind(err)), zap.Error(err))
		page.ItineraryErr = err.Error()
	} else {
		page.Itinerary = it
		page.PDFPayload = pdfPayload(form, it, nil)
	}

	// ── Flights ───────────────────────────────────────────────
	if sortOrder, err := services.ParseSortOrder(form.Sort); err != nil {
		page.FlightsErr = err.Error()
	} else if offers, err := h.flights.SearchFlights(ctx, form.flightRequest()); err != nil {
		log.Warn("⚠️ flight search failed", zap.String("kind", errorKind(err)), zap.Error(err))
		page.FlightsErr = err.Error()
	} else {
		offers, _ = services.SortOffers(services.FilterOffers(offers, form.maxStops()), sortOrder)
		page.Offers = make([]OfferView, 0, len(offers))
		for i := range offers {
			view := OfferView{FlightOffer: offers[i]}
			if page.Itinerary != nil {
				view.PDFPayload = pdfPayload(form, page.Itinerary, &offers[i])
			}
			page.Offers = append(page.Offers, view)
		}
	}

	c.HTML(http.StatusOK, "index.html", page)
}

// PlanPDFHandler renders the PDF for a payload embedded in the results page.
func (h *Handler) PlanPDFHandler(c *gin.Context) {
	var req PDFRequest
	if err := json.Unmarshal([]byte(c.PostForm("payload")), &req); err != nil {
		h.badRequest(c, err)
		return
	}
	h.writePDF(c, req)
}

func pdfPayload(form PlanForm, it *services.Itinerary, flight *services.FlightOffer) string {
	b, err := json.Marshal(PDFRequest{
		TravelerName: form.TravelerName,
		Origin:       strings.ToUpper(strings.TrimSpace(form.Origin)),
		StartDate:    form.StartDate,
		EndDate:      form.EndDate,
		Itinerary:    *it,
		Flight:       flight,
	})
	if err != nil {
		return ""
	}
	return string(b)
}
