package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/siddharthiitian/Flight-Amedus/config"
)

const (
	minTripDays  = 1
	maxTripDays  = 30
	maxTravelers = 20
	clockLayout  = "15:04"
)

var (
	BudgetTiers = []string{"budget", "moderate", "premium", "luxury"}
	Paces       = []string{"relaxed", "balanced", "intense"}
	Interests   = []string{"food", "museums", "nature", "nightlife", "shopping", "adventure", "history"}
)

// ─── Types ────────────────────────────────────────────────────────────────────

type ItineraryRequest struct {
	Origin      string   `json:"origin,omitempty"`
	Destination string   `json:"destination"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Travelers   int      `json:"travelers"`
	Budget      string   `json:"budget"`
	Interests   []string `json:"interests"`
	Pace        string   `json:"pace"`
	Currency    string   `json:"currency,omitempty"`
}

type Activity struct {
	Name          string `json:"name"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Description   string `json:"description"`
	EstimatedCost Amount `json:"estimated_cost"`
}

type DayPlan struct {
	Day        int        `json:"day"`
	Date       string     `json:"date,omitempty"`
	Summary    string     `json:"summary"`
	Activities []Activity `json:"activities"`
}

type Cost struct {
	Currency string `json:"currency"`
	Total    Amount `json:"total"`
}

type Itinerary struct {
	Destination   string    `json:"destination"`
	TotalDays     int       `json:"total_days"`
	DailyPlan     []DayPlan `json:"daily_plan"`
	EstimatedCost Cost      `json:"estimated_cost"`
	Tips          []string  `json:"tips"`
}

// Amount is a money value. Models sometimes quote numbers as strings
// ("1,200", "$45"), so both forms decode.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				return r
			}
			return -1
		}, s)
		if s == "" {
			*a = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// Normalize validates r and returns a copy with defaults applied.
func (r ItineraryRequest) Normalize(defaultCurrency string) (ItineraryRequest, error) {
	r.Origin = strings.TrimSpace(r.Origin)
	r.Destination = strings.TrimSpace(r.Destination)
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.Budget = strings.ToLower(strings.TrimSpace(r.Budget))
	r.Pace = strings.ToLower(strings.TrimSpace(r.Pace))

	if r.Destination == "" {
		return r, invalidf("destination is required")
	}
	start, err := time.Parse(dateLayout, strings.TrimSpace(r.StartDate))
	if err != nil {
		return r, invalidf("invalid start date %q, use YYYY-MM-DD", r.StartDate)
	}
	end, err := time.Parse(dateLayout, strings.TrimSpace(r.EndDate))
	if err != nil {
		return r, invalidf("invalid end date %q, use YYYY-MM-DD", r.EndDate)
	}
	if end.Before(start) {
		return r, invalidf("end date must not be before start date")
	}
	r.StartDate = start.Format(dateLayout)
	r.EndDate = end.Format(dateLayout)

	if r.Travelers <= 0 {
		r.Travelers = 1
	}
	if r.Travelers > maxTravelers {
		return r, invalidf("at most %d travelers", maxTravelers)
	}

	if r.Budget == "" {
		r.Budget = "moderate"
	}
	if !contains(BudgetTiers, r.Budget) {
		return r, invalidf("budget must be one of %s", strings.Join(BudgetTiers, ", "))
	}
	if r.Pace == "" {
		r.Pace = "balanced"
	}
	if !contains(Paces, r.Pace) {
		return r, invalidf("pace must be one of %s", strings.Join(Paces, ", "))
	}

	seen := make(map[string]bool, len(r.Interests))
	interests := make([]string, 0, len(r.Interests))
	for _, tag := range r.Interests {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		interests = append(interests, tag)
	}
	r.Interests = interests

	if r.Currency == "" {
		r.Currency = defaultCurrency
	}
	if !isCurrency(r.Currency) {
		return r, invalidf("invalid currency code %q", r.Currency)
	}
	return r, nil
}

// TripDays is the inclusive number of days between start and end, clamped
// to 1..30. It assumes r has been normalized.
func (r ItineraryRequest) TripDays() int {
	start, err1 := time.Parse(dateLayout, r.StartDate)
	end, err2 := time.Parse(dateLayout, r.EndDate)
	if err1 != nil || err2 != nil {
		return minTripDays
	}
	return clampDays(int(end.Sub(start).Hours()/24) + 1)
}

func clampDays(n int) int {
	return max(minTripDays, min(maxTripDays, n))
}

// ─── Generator ────────────────────────────────────────────────────────────────

type ItineraryGenerator struct {
	chat            Completer
	maxReprompts    int
	defaultCurrency string
	log             *zap.Logger
}

func NewItineraryGenerator(chat Completer, maxReprompts int, defaultCurrency string, log *zap.Logger) *ItineraryGenerator {
	return &ItineraryGenerator{
		chat:            chat,
		maxReprompts:    max(0, maxReprompts),
		defaultCurrency: defaultCurrency,
		log:             log,
	}
}

// Generate asks the provider for an itinerary. An answer that is not valid
// JSON of the expected shape is re-prompted at most maxReprompts times;
// transport and provider failures are not.
func (g *ItineraryGenerator) Generate(ctx context.Context, req ItineraryRequest, p config.LLMProvider) (*Itinerary, error) {
	req, err := req.Normalize(g.defaultCurrency)
	if err != nil {
		return nil, err
	}
	if p.APIKey == "" {
		return nil, &config.ConfigurationError{Missing: []string{config.ProviderKeyVar(p.Name)}}
	}

	messages := BuildPrompt(req)
	for attempt := 1; ; attempt++ {
		content, err := g.chat.Complete(ctx, p, messages)
		if err != nil {
			return nil, &GenerationError{Provider: p.Name, Attempts: attempt, Err: err}
		}

		it, perr := ParseItinerary(content, req)
		if perr == nil {
			return it, nil
		}
		if attempt > g.maxReprompts {
			return nil, &GenerationError{Provider: p.Name, Attempts: attempt, Err: perr}
		}

		g.log.Warn("unusable itinerary output, re-prompting",
			zap.String("provider", p.Name),
			zap.Int("attempt", attempt),
			zap.Error(perr),
		)
		messages = append(messages,
			ChatMessage{Role: RoleAssistant, Content: content},
			repairPrompt(perr),
		)
	}
}

// ─── Parsing ──────────────────────────────────────────────────────────────────

var errNoDays = errors.New("daily_plan is empty")

// ParseItinerary decodes model output for req and checks its shape: one day
// entry per trip day, each with chronologically ordered activities.
func ParseItinerary(content string, req ItineraryRequest) (*Itinerary, error) {
	raw := stripCodeFences(content)

	var it Itinerary
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	want := req.TripDays()
	switch {
	case len(it.DailyPlan) == 0:
		return nil, errNoDays
	case len(it.DailyPlan) != want:
		return nil, fmt.Errorf("daily_plan has %d days, want %d", len(it.DailyPlan), want)
	}

	start, _ := time.Parse(dateLayout, req.StartDate)
	for i := range it.DailyPlan {
		day := &it.DailyPlan[i]
		day.Day = i + 1
		if day.Date == "" && !start.IsZero() {
			day.Date = start.AddDate(0, 0, i).Format(dateLayout)
		}
		if err := checkActivities(day.Activities); err != nil {
			return nil, fmt.Errorf("day %d: %w", day.Day, err)
		}
	}

	it.TotalDays = len(it.DailyPlan)
	if it.Destination == "" {
		it.Destination = req.Destination
	}
	if it.EstimatedCost.Currency == "" {
		it.EstimatedCost.Currency = req.Currency
	}
	return &it, nil
}

// lateNightCutoff bounds the end_time of a day's last activity when it runs
// past midnight (a 22:00-01:00 night out).
var lateNightCutoff = time.Date(0, 1, 1, 6, 0, 0, 0, time.UTC)

func checkActivities(acts []Activity) error {
	var prev time.Time
	for i, a := range acts {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("activity %d has no name", i+1)
		}
		start, err := time.Parse(clockLayout, strings.TrimSpace(a.StartTime))
		if err != nil {
			return fmt.Errorf("activity %q: bad start_time %q", a.Name, a.StartTime)
		}
		end, err := time.Parse(clockLayout, strings.TrimSpace(a.EndTime))
		if err != nil {
			return fmt.Errorf("activity %q: bad end_time %q", a.Name, a.EndTime)
		}
		if end.Before(start) && !(i == len(acts)-1 && end.Before(lateNightCutoff)) {
			return fmt.Errorf("activity %q ends before it starts", a.Name)
		}
		if i > 0 && start.Before(prev) {
			return fmt.Errorf("activity %q starts before the previous one", a.Name)
		}
		prev = start
	}
	return nil
}

// stripCodeFences removes a surrounding ```json ... ``` block.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```JSON")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
