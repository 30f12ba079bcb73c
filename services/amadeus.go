package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/siddharthiitian/Flight-Amedus/config"
	"github.com/siddharthiitian/Flight-Amedus/tracing"
)

const (
	flightOffersPath = "/v2/shopping/flight-offers"
	dateLayout       = "2006-01-02"

	defaultMaxOffers = 10
	maxOffersLimit   = 250
	maxAdults        = 9
)

// ─── Types ────────────────────────────────────────────────────────────────────

// FlightSearchRequest is one flight search as submitted from the UI.
type FlightSearchRequest struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date,omitempty"`
	Adults        int    `json:"adults"`
	Currency      string `json:"currency,omitempty"`
	NonStop       bool   `json:"non_stop,omitempty"`
	Max           int    `json:"max,omitempty"`
}

type Segment struct {
	Carrier      string `json:"carrier"`
	CarrierName  string `json:"carrier_name"`
	FlightNumber string `json:"flight_number"`
	From         string `json:"from"`
	To           string `json:"to"`
	DepartureAt  string `json:"departure_at"`
	ArrivalAt    string `json:"arrival_at"`
	Duration     string `json:"duration,omitempty"`
}

// Journey is one direction of an offer (outbound or return).
type Journey struct {
	Duration string    `json:"duration"`
	Minutes  int       `json:"minutes"`
	Stops    int       `json:"stops"`
	Segments []Segment `json:"segments"`
}

type FlightOffer struct {
	ID            string   `json:"id"`
	Price         float64  `json:"price"`
	Currency      string   `json:"currency"`
	Carrier       string   `json:"carrier"`
	CarrierName   string   `json:"carrier_name"`
	BookableSeats int      `json:"bookable_seats,omitempty"`
	Outbound      Journey  `json:"outbound"`
	Return        *Journey `json:"return,omitempty"`
}

// Normalize validates r and returns a copy with codes upper-cased and
// defaults applied.
func (r FlightSearchRequest) Normalize(defaultCurrency string) (FlightSearchRequest, error) {
	r.Origin = strings.ToUpper(strings.TrimSpace(r.Origin))
	r.Destination = strings.ToUpper(strings.TrimSpace(r.Destination))
	r.DepartureDate = strings.TrimSpace(r.DepartureDate)
	r.ReturnDate = strings.TrimSpace(r.ReturnDate)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))

	if !isIATA(r.Origin) || !isIATA(r.Destination) {
		return r, invalidf("airport codes must be exactly 3 letters (e.g. JFK, LAX)")
	}
	if r.Origin == r.Destination {
		return r, invalidf("origin and destination must differ")
	}

	dep, err := time.Parse(dateLayout, r.DepartureDate)
	if err != nil {
		return r, invalidf("invalid departure date %q, use YYYY-MM-DD", r.DepartureDate)
	}
	if r.ReturnDate != "" {
		ret, err := time.Parse(dateLayout, r.ReturnDate)
		if err != nil {
			return r, invalidf("invalid return date %q, use YYYY-MM-DD", r.ReturnDate)
		}
		if ret.Before(dep) {
			return r, invalidf("return date must not be before departure date")
		}
	}

	if r.Adults <= 0 {
		r.Adults = 1
	}
	if r.Adults > maxAdults {
		return r, invalidf("at most %d adults per search", maxAdults)
	}

	if r.Currency == "" {
		r.Currency = defaultCurrency
	}
	if !isCurrency(r.Currency) {
		return r, invalidf("invalid currency code %q", r.Currency)
	}

	if r.Max <= 0 {
		r.Max = defaultMaxOffers
	}
	if r.Max > maxOffersLimit {
		r.Max = maxOffersLimit
	}
	return r, nil
}

func (r FlightSearchRequest) query() url.Values {
	q := url.Values{}
	q.Set("originLocationCode", r.Origin)
	q.Set("destinationLocationCode", r.Destination)
	q.Set("departureDate", r.DepartureDate)
	if r.ReturnDate != "" {
		q.Set("returnDate", r.ReturnDate)
	}
	q.Set("adults", strconv.Itoa(r.Adults))
	q.Set("currencyCode", r.Currency)
	if r.NonStop {
		q.Set("nonStop", "true")
	}
	q.Set("max", strconv.Itoa(r.Max))
	return q
}

// ─── Amadeus Client ───────────────────────────────────────────────────────────

type AmadeusClient struct {
	baseURL         string
	defaultCurrency string
	tokens          *TokenManager
	limiter         *rate.Limiter
	httpClient      *http.Client
	log             *zap.Logger
}

// NewAmadeusClient builds a flight-offer client whose token requests and
// searches share one outbound rate limit.
func NewAmadeusClient(cfg config.AmadeusConfig, defaultCurrency string, log *zap.Logger, opts ...TokenOption) *AmadeusClient {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	limiter := rate.NewLimiter(limit, 1)

	opts = append([]TokenOption{WithLimiter(limiter)}, opts...)
	return &AmadeusClient{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		defaultCurrency: defaultCurrency,
		tokens:          NewTokenManager(cfg.BaseURL, cfg.ClientID, cfg.ClientSecret, httpClient, log, opts...),
		limiter:         limiter,
		httpClient:      httpClient,
		log:             log,
	}
}

// Tokens exposes the client's token manager.
func (c *AmadeusClient) Tokens() *TokenManager {
	return c.tokens
}

// Warm fetches a first token so bad credentials show up in the startup log.
func (c *AmadeusClient) Warm(ctx context.Context) error {
	_, err := c.tokens.Token(ctx)
	return err
}

// ─── Flight Search ────────────────────────────────────────────────────────────

// SearchFlights queries the Flight Offers Search API. Offers come back in the
// provider's order; entries missing a price or segment data are dropped.
func (c *AmadeusClient) SearchFlights(ctx context.Context, req FlightSearchRequest) ([]FlightOffer, error) {
	req, err := req.Normalize(c.defaultCurrency)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.Tracer("amadeus").Start(ctx, "AmadeusClient.SearchFlights")
	defer span.End()
	span.SetAttributes(
		attribute.String("flight.origin", req.Origin),
		attribute.String("flight.destination", req.Destination),
		attribute.String("flight.departure_date", req.DepartureDate),
	)

	offers, err := c.searchFlights(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "flight search failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("flight.offers", len(offers)))
	return offers, nil
}

func (c *AmadeusClient) searchFlights(ctx context.Context, req FlightSearchRequest) ([]FlightOffer, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &SearchError{Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+flightOffersPath+"?"+req.query().Encode(), nil)
	if err != nil {
		return nil, &SearchError{Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/vnd.amadeus+json, application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &SearchError{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SearchError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	offers, dropped, err := parseFlightOffers(body)
	if err != nil {
		return nil, &SearchError{Body: "unreadable flight offers response", Err: err}
	}
	if dropped > 0 {
		c.log.Debug("dropped malformed flight offers", zap.Int("dropped", dropped), zap.Int("kept", len(offers)))
	}
	return offers, nil
}

// Amadeus flight offers response structures
type amadeusFlightOffersResponse struct {
	Data []amadeusFlightOffer `json:"data"`
}

type amadeusFlightOffer struct {
	ID                    string `json:"id"`
	NumberOfBookableSeats int    `json:"numberOfBookableSeats"`
	Price                 struct {
		Total      string `json:"total"`
		GrandTotal string `json:"grandTotal"`
		Currency   string `json:"currency"`
	} `json:"price"`
	Itineraries            []amadeusItinerary `json:"itineraries"`
	ValidatingAirlineCodes []string           `json:"validatingAirlineCodes"`
}

type amadeusItinerary struct {
	Duration string           `json:"duration"`
	Segments []amadeusSegment `json:"segments"`
}

type amadeusEndpoint struct {
	IataCode string `json:"iataCode"`
	At       string `json:"at"`
}

type amadeusSegment struct {
	Departure   amadeusEndpoint `json:"departure"`
	Arrival     amadeusEndpoint `json:"arrival"`
	CarrierCode string          `json:"carrierCode"`
	Number      string          `json:"number"`
	Duration    string          `json:"duration"`
}

// parseFlightOffers maps the raw document and reports how many entries were
// dropped as malformed.
func parseFlightOffers(data []byte) ([]FlightOffer, int, error) {
	var resp amadeusFlightOffersResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, 0, fmt.Errorf("failed to parse flight offers: %w", err)
	}

	offers := make([]FlightOffer, 0, len(resp.Data))
	dropped := 0
	for _, raw := range resp.Data {
		offer, ok := normalizeOffer(raw)
		if !ok {
			dropped++
			continue
		}
		offers = append(offers, offer)
	}
	return offers, dropped, nil
}

func normalizeOffer(raw amadeusFlightOffer) (FlightOffer, bool) {
	total := raw.Price.GrandTotal
	if total == "" {
		total = raw.Price.Total
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(total), 64)
	if err != nil || price <= 0 || raw.Price.Currency == "" {
		return FlightOffer{}, false
	}
	if len(raw.Itineraries) == 0 {
		return FlightOffer{}, false
	}

	outbound, ok := normalizeJourney(raw.Itineraries[0])
	if !ok {
		return FlightOffer{}, false
	}

	offer := FlightOffer{
		ID:            raw.ID,
		Price:         price,
		Currency:      raw.Price.Currency,
		Carrier:       outbound.Segments[0].Carrier,
		CarrierName:   outbound.Segments[0].CarrierName,
		BookableSeats: raw.NumberOfBookableSeats,
		Outbound:      outbound,
	}

	if len(raw.Itineraries) > 1 {
		ret, ok := normalizeJourney(raw.Itineraries[1])
		if !ok {
			return FlightOffer{}, false
		}
		offer.Return = &ret
	}
	return offer, true
}

func normalizeJourney(it amadeusItinerary) (Journey, bool) {
	if len(it.Segments) == 0 {
		return Journey{}, false
	}

	minutes, _ := parseISODuration(it.Duration)
	j := Journey{
		Duration: formatISODuration(it.Duration),
		Minutes:  minutes,
		Stops:    len(it.Segments) - 1,
		Segments: make([]Segment, 0, len(it.Segments)),
	}
	for _, s := range it.Segments {
		if s.CarrierCode == "" || s.Number == "" || s.Departure.At == "" || s.Arrival.At == "" {
			return Journey{}, false
		}
		j.Segments = append(j.Segments, Segment{
			Carrier:      s.CarrierCode,
			CarrierName:  airlineName(s.CarrierCode),
			FlightNumber: s.CarrierCode + s.Number,
			From:         s.Departure.IataCode,
			To:           s.Arrival.IataCode,
			DepartureAt:  s.Departure.At,
			ArrivalAt:    s.Arrival.At,
			Duration:     formatISODuration(s.Duration),
		})
	}
	return j, true
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:\d+S)?)?$`)

// parseISODuration returns the length of an ISO 8601 duration (PT5H30M) in
// minutes.
func parseISODuration(iso string) (int, bool) {
	m := isoDurationRe.FindStringSubmatch(iso)
	if m == nil || iso == "P" {
		return 0, false
	}
	days, _ := strconv.Atoi(m[1])
	hours, _ := strconv.Atoi(m[2])
	mins, _ := strconv.Atoi(m[3])
	return (days*24+hours)*60 + mins, true
}

// formatISODuration converts an ISO 8601 duration (PT5H30M) to "5h 30m".
// Unrecognized input is returned unchanged.
func formatISODuration(iso string) string {
	total, ok := parseISODuration(iso)
	if !ok {
		return iso
	}
	hours, mins := total/60, total%60

	switch {
	case hours > 0 && mins > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}

func isIATA(s string) bool {
	return len(s) == 3 && isUpperAlpha(s)
}

func isCurrency(s string) bool {
	return len(s) == 3 && isUpperAlpha(s)
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// airlineName returns full airline name from IATA code
func airlineName(code string) string {
	names := map[string]string{
		"AA": "American Airlines",
		"AC": "Air Canada",
		"AF": "Air France",
		"AS": "Alaska Airlines",
		"AZ": "ITA Airways",
		"B6": "JetBlue",
		"BA": "British Airways",
		"CX": "Cathay Pacific",
		"DL": "Delta Air Lines",
		"EK": "Emirates",
		"ET": "Ethiopian Airlines",
		"EY": "Etihad Airways",
		"F9": "Frontier Airlines",
		"FR": "Ryanair",
		"IB": "Iberia",
		"JL": "Japan Airlines",
		"KL": "KLM",
		"LH": "Lufthansa",
		"LX": "Swiss International Air Lines",
		"NH": "ANA",
		"NK": "Spirit Airlines",
		"OS": "Austrian Airlines",
		"QR": "Qatar Airways",
		"SQ": "Singapore Airlines",
		"TK": "Turkish Airlines",
		"U2": "EasyJet",
		"UA": "United Airlines",
		"VS": "Virgin Atlantic",
		"W6": "Wizz Air",
		"WN": "Southwest Airlines",
	}
	if name, ok := names[code]; ok {
		return name
	}
	return code
}
