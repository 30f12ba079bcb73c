package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siddharthiitian/Flight-Amedus/config"
)

// scriptedCompleter replies with the queued answers in order.
type scriptedCompleter struct {
	replies []string
	err     error
	calls   [][]ChatMessage
}

func (s *scriptedCompleter) Complete(_ context.Context, _ config.LLMProvider, messages []ChatMessage) (string, error) {
	s.calls = append(s.calls, append([]ChatMessage(nil), messages...))
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply left")
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

var testProvider = config.LLMProvider{
	Name:    config.ProviderGrok,
	BaseURL: "http://unused",
	Model:   "grok-test",
	APIKey:  "key",
}

func parisRequest() ItineraryRequest {
	return ItineraryRequest{
		Origin:      "SFO",
		Destination: "Paris",
		StartDate:   "2025-06-01",
		EndDate:     "2025-06-03",
		Travelers:   2,
		Budget:      "moderate",
		Interests:   []string{"food", "History", "food"},
		Pace:        "balanced",
		Currency:    "EUR",
	}
}

// itineraryJSON builds a well-formed answer with the given number of days.
func itineraryJSON(t *testing.T, days int) string {
	t.Helper()
	plan := make([]map[string]any, 0, days)
	for d := 1; d <= days; d++ {
		plan = append(plan, map[string]any{
			"day":     d,
			"summary": fmt.Sprintf("Day %d in Paris", d),
			"activities": []map[string]any{
				{"name": "Breakfast", "start_time": "08:00", "end_time": "09:00", "description": "Cafe", "estimated_cost": 15},
				{"name": "Louvre", "start_time": "09:30", "end_time": "13:00", "description": "Museum", "estimated_cost": "€22"},
				{"name": "Dinner", "start_time": "19:00", "end_time": "21:00", "description": "Bistro", "estimated_cost": 60.5},
			},
		})
	}
	b, err := json.Marshal(map[string]any{
		"destination":    "Paris",
		"total_days":     days,
		"daily_plan":     plan,
		"estimated_cost": map[string]any{"currency": "EUR", "total": "1,450"},
		"tips":           []string{"Buy a Navigo pass"},
	})
	require.NoError(t, err)
	return string(b)
}

func newGenerator(t *testing.T, chat Completer, reprompts int) *ItineraryGenerator {
	return NewItineraryGenerator(chat, reprompts, "USD", zaptest.NewLogger(t))
}

func TestGenerate_Success(t *testing.T) {
	t.Parallel()
	chat := &scriptedCompleter{replies: []string{itineraryJSON(t, 3)}}

	it, err := newGenerator(t, chat, 1).Generate(context.Background(), parisRequest(), testProvider)
	require.NoError(t, err)
	require.Len(t, chat.calls, 1)

	assert.Equal(t, "Paris", it.Destination)
	assert.Equal(t, 3, it.TotalDays)
	require.Len(t, it.DailyPlan, 3)
	assert.Equal(t, "2025-06-01", it.DailyPlan[0].Date)
	assert.Equal(t, "2025-06-03", it.DailyPlan[2].Date)
	assert.Equal(t, 3, it.DailyPlan[2].Day)
	assert.Equal(t, Amount(22), it.DailyPlan[0].Activities[1].EstimatedCost)
	assert.Equal(t, Amount(1450), it.EstimatedCost.Total)
	assert.Equal(t, []string{"Buy a Navigo pass"}, it.Tips)

	msgs := chat.calls[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Output currency: EUR")
	assert.Contains(t, msgs[1].Content, "- Interests: food, history\n")
	assert.Contains(t, msgs[1].Content, "exactly 3 entries")
}

func TestGenerate_DayCountMatchesTripLength(t *testing.T) {
	t.Parallel()
	for _, days := range []int{1, 2, 7} {
		req := parisRequest()
		req.EndDate = fmt.Sprintf("2025-06-%02d", days)
		chat := &scriptedCompleter{replies: []string{itineraryJSON(t, days)}}

		it, err := newGenerator(t, chat, 1).Generate(context.Background(), req, testProvider)
		require.NoError(t, err)
		assert.Len(t, it.DailyPlan, days)
	}
}

func TestGenerate_StripsCodeFences(t *testing.T) {
	t.Parallel()
	chat := &scriptedCompleter{replies: []string{"```json\n" + itineraryJSON(t, 3) + "\n```"}}

	_, err := newGenerator(t, chat, 1).Generate(context.Background(), parisRequest(), testProvider)
	require.NoError(t, err)
	assert.Len(t, chat.calls, 1)
}

func TestGenerate_RepromptsOnceThenFails(t *testing.T) {
	t.Parallel()
	chat := &scriptedCompleter{replies: []string{"Sure! Here is your trip...", "Day 1: Eiffel tower", itineraryJSON(t, 3)}}

	_, err := newGenerator(t, chat, 1).Generate(context.Background(), parisRequest(), testProvider)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 2, genErr.Attempts)
	assert.Equal(t, config.ProviderGrok, genErr.Provider)
	require.Len(t, chat.calls, 2, "exactly one re-prompt")

	retry := chat.calls[1]
	require.Len(t, retry, 4)
	assert.Equal(t, RoleAssistant, retry[2].Role)
	assert.Equal(t, "Sure! Here is your trip...", retry[2].Content)
	assert.Equal(t, RoleUser, retry[3].Role)
	assert.Contains(t, retry[3].Content, "Return valid JSON only")
}

func TestGenerate_RepromptRecovers(t *testing.T) {
	t.Parallel()
	chat := &scriptedCompleter{replies: []string{"not json", itineraryJSON(t, 3)}}

	it, err := newGenerator(t, chat, 1).Generate(context.Background(), parisRequest(), testProvider)
	require.NoError(t, err)
	assert.Equal(t, 3, it.TotalDays)
	assert.Len(t, chat.calls, 2)
}

func TestGenerate_EmptyReplyIsRePrompted(t *testing.T) {
	t.Parallel()
	chat := &scriptedCompleter{replies: []string{"", itineraryJSON(t, 3)}}

	it, err := newGenerator(t, chat, 1).Generate(context.Background(), parisRequest(), testProvider)
	require.NoError(t, err)
	assert.Equal(t, 3, it.TotalDays)
	require.Len(t, chat.calls, 2)
	assert.Contains(t, chat.calls[1][3].Content, "Return valid JSON only")
}

func TestGenerate_EmptyReplyEndToEnd(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			fmt.Fprint(w, `{"choices":[{"message":{"content":""}}]}`)
			return
		}
		fmt.Fprint(w, `{"choices":[{"message":{"content":"not json"}}]}`)
	}))
	defer srv.Close()

	p := testProvider
	p.BaseURL = srv.URL
	gen := NewItineraryGenerator(NewChatClient(zaptest.NewLogger(t)), 1, "USD", zaptest.NewLogger(t))
	_, err := gen.Generate(context.Background(), parisRequest(), p)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 2, genErr.Attempts)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerate_RepromptBoundIsConfigurable(t *testing.T) {
	t.Parallel()

	chat := &scriptedCompleter{replies: []string{"x", "y", "z", "w"}}
	_, err := newGenerator(t, chat, 0).Generate(context.Background(), parisRequest(), testProvider)
	require.Error(t, err)
	assert.Len(t, chat.calls, 1)

	chat = &scriptedCompleter{replies: []string{"x", "y", "z", "w"}}
	_, err = newGenerator(t, chat, 3).Generate(context.Background(), parisRequest(), testProvider)
	require.Error(t, err)
	assert.Len(t, chat.calls, 4)
}

func TestGenerate_WrongShapeIsRePrompted(t *testing.T) {
	t.Parallel()
	chat := &scriptedCompleter{replies: []string{itineraryJSON(t, 2), itineraryJSON(t, 2)}}

	_, err := newGenerator(t, chat, 1).Generate(context.Background(), parisRequest(), testProvider)
	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Contains(t, genErr.Error(), "daily_plan has 2 days, want 3")
	assert.Contains(t, chat.calls[1][3].Content, "daily_plan has 2 days")
}

func TestGenerate_ProviderFailureIsNotRePrompted(t *testing.T) {
	t.Parallel()
	chat := &scriptedCompleter{err: &ProviderError{StatusCode: 429, Body: "rate limited"}}

	_, err := newGenerator(t, chat, 1).Generate(context.Background(), parisRequest(), testProvider)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 1, genErr.Attempts)
	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, 429, provErr.StatusCode)
	assert.Len(t, chat.calls, 1)
}

func TestGenerate_MissingKey(t *testing.T) {
	t.Parallel()
	chat := &scriptedCompleter{}
	p := testProvider
	p.Name = config.ProviderGemini
	p.APIKey = ""

	_, err := newGenerator(t, chat, 1).Generate(context.Background(), parisRequest(), p)
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, []string{"GEMINI_API_KEY"}, cfgErr.Missing)
	assert.Empty(t, chat.calls)
}

func TestGenerate_InvalidRequest(t *testing.T) {
	t.Parallel()
	cases := map[string]func(r *ItineraryRequest){
		"no destination":   func(r *ItineraryRequest) { r.Destination = " " },
		"bad start":        func(r *ItineraryRequest) { r.StartDate = "tomorrow" },
		"end before start": func(r *ItineraryRequest) { r.EndDate = "2025-05-01" },
		"budget tier":      func(r *ItineraryRequest) { r.Budget = "cheap" },
		"pace":             func(r *ItineraryRequest) { r.Pace = "frantic" },
		"travelers":        func(r *ItineraryRequest) { r.Travelers = 50 },
		"currency":         func(r *ItineraryRequest) { r.Currency = "euro" },
	}
	for name, mutate := range cases {
		chat := &scriptedCompleter{}
		req := parisRequest()
		mutate(&req)
		_, err := newGenerator(t, chat, 1).Generate(context.Background(), req, testProvider)
		assert.ErrorIs(t, err, ErrInvalidRequest, name)
		assert.Empty(t, chat.calls, name)
	}
}

func TestItineraryRequest_Defaults(t *testing.T) {
	t.Parallel()
	req, err := ItineraryRequest{Destination: "Rome", StartDate: "2025-09-10", EndDate: "2025-09-10"}.Normalize("USD")
	require.NoError(t, err)
	assert.Equal(t, 1, req.Travelers)
	assert.Equal(t, "moderate", req.Budget)
	assert.Equal(t, "balanced", req.Pace)
	assert.Equal(t, "USD", req.Currency)
	assert.Equal(t, 1, req.TripDays())
}

func TestItineraryRequest_TripDaysClamped(t *testing.T) {
	t.Parallel()
	req := ItineraryRequest{StartDate: "2025-01-01", EndDate: "2025-03-01"}
	assert.Equal(t, 30, req.TripDays())
}

func TestParseItinerary_ActivityOrder(t *testing.T) {
	t.Parallel()
	req, err := ItineraryRequest{Destination: "Rome", StartDate: "2025-09-10", EndDate: "2025-09-10"}.Normalize("USD")
	require.NoError(t, err)

	day := func(acts string) string {
		return `{"destination":"Rome","daily_plan":[{"day":1,"summary":"s","activities":[` + acts + `]}]}`
	}

	ok := day(`{"name":"A","start_time":"09:00","end_time":"10:00"},{"name":"B","start_time":"09:00","end_time":"09:30"},{"name":"C","start_time":"14:00","end_time":"16:00"}`)
	it, err := ParseItinerary(ok, req)
	require.NoError(t, err)
	assert.Equal(t, "USD", it.EstimatedCost.Currency)

	lateNight := day(`{"name":"A","start_time":"18:00","end_time":"20:00"},{"name":"Jazz club","start_time":"22:00","end_time":"01:30"}`)
	_, err = ParseItinerary(lateNight, req)
	require.NoError(t, err, "last activity may run past midnight")

	bad := map[string]string{
		"midnight not last": day(`{"name":"A","start_time":"22:00","end_time":"01:00"},{"name":"B","start_time":"23:00","end_time":"23:30"}`),
		"past cutoff":       day(`{"name":"A","start_time":"23:00","end_time":"07:00"}`),
		"out of order":      day(`{"name":"A","start_time":"14:00","end_time":"15:00"},{"name":"B","start_time":"09:00","end_time":"10:00"}`),
		"ends early":        day(`{"name":"A","start_time":"14:00","end_time":"13:00"}`),
		"bad clock":         day(`{"name":"A","start_time":"morning","end_time":"13:00"}`),
		"unnamed":           day(`{"name":"","start_time":"09:00","end_time":"10:00"}`),
		"no days":           `{"destination":"Rome","daily_plan":[]}`,
		"not an object":     `["a","b"]`,
	}
	for name, content := range bad {
		_, err := ParseItinerary(content, req)
		assert.Error(t, err, name)
	}
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	t.Parallel()
	req, err := parisRequest().Normalize("USD")
	require.NoError(t, err)

	a := BuildPrompt(req)
	b := BuildPrompt(req)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a[1].Content, "Plan a trip with these details:\n- Origin: SFO\n- Destination: Paris\n"))
	assert.Contains(t, a[1].Content, "- Dates: 2025-06-01 to 2025-06-03\n")
	assert.Contains(t, a[1].Content, "- Travelers: 2\n")
	assert.Contains(t, a[1].Content, "- Preferred pace: balanced\n")
}

func TestAmount_Decode(t *testing.T) {
	t.Parallel()
	cases := map[string]Amount{
		`12.5`:     12.5,
		`"$1,200"`: 1200,
		`"45 EUR"`: 45,
		`"free"`:   0,
		`null`:     0,
	}
	for in, want := range cases {
		var a Amount
		require.NoError(t, json.Unmarshal([]byte(in), &a), in)
		assert.Equal(t, want, a, in)
	}
}
