package services

import (
	"cmp"
	"slices"
	"strings"
)

// Sort orders accepted by SortOffers. The empty order keeps the provider's.
const (
	SortProvider  = ""
	SortPriceAsc  = "price"
	SortPriceDesc = "-price"
	SortDuration  = "duration"
	SortDeparture = "departure"
)

var SortOrders = []string{SortPriceAsc, SortPriceDesc, SortDuration, SortDeparture}

// AnyStops disables the stop filter in FilterOffers.
const AnyStops = -1

// FilterOffers keeps offers whose outbound and return journeys both have at
// most maxStops stops. The input slice is not modified.
func FilterOffers(offers []FlightOffer, maxStops int) []FlightOffer {
	out := make([]FlightOffer, 0, len(offers))
	for _, o := range offers {
		if maxStops >= 0 {
			if o.Outbound.Stops > maxStops || (o.Return != nil && o.Return.Stops > maxStops) {
				continue
			}
		}
		out = append(out, o)
	}
	return out
}

// ParseSortOrder normalizes a user-supplied sort order.
func ParseSortOrder(order string) (string, error) {
	order = strings.ToLower(strings.TrimSpace(order))
	if order != SortProvider && !slices.Contains(SortOrders, order) {
		return "", invalidf("sort must be one of %s", strings.Join(SortOrders, ", "))
	}
	return order, nil
}

// SortOffers returns a copy of offers in the given order. Ties keep the
// provider's order.
func SortOffers(offers []FlightOffer, order string) ([]FlightOffer, error) {
	order, err := ParseSortOrder(order)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(offers)
	if out == nil {
		out = []FlightOffer{}
	}

	var by func(a, b FlightOffer) int
	switch order {
	case SortProvider:
		return out, nil
	case SortPriceAsc:
		by = func(a, b FlightOffer) int { return cmp.Compare(a.Price, b.Price) }
	case SortPriceDesc:
		by = func(a, b FlightOffer) int { return cmp.Compare(b.Price, a.Price) }
	case SortDuration:
		by = func(a, b FlightOffer) int { return cmp.Compare(a.Outbound.Minutes, b.Outbound.Minutes) }
	case SortDeparture:
		by = func(a, b FlightOffer) int { return strings.Compare(departureOf(a), departureOf(b)) }
	}
	slices.SortStableFunc(out, by)
	return out, nil
}

func departureOf(o FlightOffer) string {
	if len(o.Outbound.Segments) == 0 {
		return ""
	}
	return o.Outbound.Segments[0].DepartureAt
}
