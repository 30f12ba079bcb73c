package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOffers() []FlightOffer {
	leg := func(minutes, stops int, dep string) Journey {
		return Journey{Minutes: minutes, Stops: stops, Segments: []Segment{{From: "JFK", To: "LAX", DepartureAt: dep}}}
	}
	oneStop := leg(500, 1, "2025-06-08T10:00:00")
	return []FlightOffer{
		{ID: "1", Price: 320, Outbound: leg(375, 0, "2025-06-01T14:00:00")},
		{ID: "2", Price: 180, Outbound: leg(420, 1, "2025-06-01T06:30:00")},
		{ID: "3", Price: 250, Outbound: leg(360, 0, "2025-06-01T09:15:00"), Return: &oneStop},
		{ID: "4", Price: 180, Outbound: leg(610, 2, "2025-06-01T07:00:00")},
	}
}

func ids(offers []FlightOffer) []string {
	out := make([]string, 0, len(offers))
	for _, o := range offers {
		out = append(out, o.ID)
	}
	return out
}

func TestSortOffers(t *testing.T) {
	t.Parallel()
	cases := map[string][]string{
		SortProvider:  {"1", "2", "3", "4"},
		SortPriceAsc:  {"2", "4", "3", "1"},
		SortPriceDesc: {"1", "3", "2", "4"},
		SortDuration:  {"3", "1", "2", "4"},
		SortDeparture: {"2", "4", "3", "1"},
	}
	for order, want := range cases {
		in := sampleOffers()
		got, err := SortOffers(in, order)
		require.NoError(t, err, order)
		assert.Equal(t, want, ids(got), order)
		assert.Equal(t, []string{"1", "2", "3", "4"}, ids(in), "input untouched")
	}
}

func TestSortOffers_Unknown(t *testing.T) {
	t.Parallel()
	_, err := SortOffers(sampleOffers(), "cheapest")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestFilterOffers(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(FilterOffers(sampleOffers(), AnyStops)))
	assert.Equal(t, []string{"1"}, ids(FilterOffers(sampleOffers(), 0)), "return leg counts too")
	assert.Equal(t, []string{"1", "2", "3"}, ids(FilterOffers(sampleOffers(), 1)))
	assert.Empty(t, FilterOffers(nil, 0))
}
