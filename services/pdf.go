package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

type PDFData struct {
	TravelerName string
	Origin       string
	StartDate    string
	EndDate      string
	Itinerary    Itinerary
	Flight       *FlightOffer // optional, the offer the traveler picked
	GeneratedAt  time.Time
}

// GenerateItineraryPDF renders the itinerary and returns raw bytes (no filesystem needed)
func GenerateItineraryPDF(data PDFData) ([]byte, error) {
	if len(data.Itinerary.DailyPlan) == 0 {
		return nil, invalidf("itinerary has no days")
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now().UTC()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-18)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 8,
			fmt.Sprintf("AI Travel Planner - not a booking confirmation - page %d", pdf.PageNo()),
			"", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// ── Header Bar ───────────────────────────────────────────
	pdf.SetFillColor(13, 24, 37)
	pdf.Rect(0, 0, 210, 28, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(20, 8)
	pdf.CellFormat(170, 10, tr(data.Itinerary.Destination), "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(212, 168, 67)
	pdf.SetXY(20, 18)
	pdf.CellFormat(170, 6, "AI-Generated Travel Itinerary", "", 1, "L", false, 0, "")

	pdf.SetY(35)
	pdf.SetTextColor(0, 0, 0)

	// ── Disclaimer ───────────────────────────────────────────
	pdf.SetFillColor(255, 248, 225)
	pdf.SetDrawColor(212, 168, 67)
	pdf.SetTextColor(130, 90, 20)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetLineWidth(0.4)
	y := pdf.GetY()
	pdf.Rect(20, y, 170, 12, "FD")
	pdf.SetXY(23, y+2)
	pdf.MultiCell(164, 4,
		"This is NOT a booking confirmation. Activities and costs are model estimates. Verify opening hours and prices before you travel.",
		"", "C", false)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.2)
	pdf.Ln(6)

	// ── Section Helper ───────────────────────────────────────
	sectionHeader := func(title string) {
		pdf.SetFillColor(13, 24, 37)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(170, 8, "  "+tr(title), "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(55, 7, tr(label), "", 0, "L", false, 0, "")
		pdf.SetTextColor(20, 20, 20)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(115, 7, tr(value), "", 1, "L", false, 0, "")
	}

	// ── Trip Overview ─────────────────────────────────────────
	sectionHeader("Trip Overview")
	name := data.TravelerName
	if name == "" {
		name = "Guest Traveler"
	}
	row("Traveler", name)
	if data.Origin != "" {
		row("Route", fmt.Sprintf("%s -> %s", data.Origin, data.Itinerary.Destination))
	}
	if data.StartDate != "" {
		row("Dates", fmt.Sprintf("%s to %s", fmtDateReadable(data.StartDate), fmtDateReadable(data.EndDate)))
	}
	row("Duration", pluralDays(data.Itinerary.TotalDays))
	if cost := data.Itinerary.EstimatedCost; cost.Total > 0 {
		row("Estimated cost", fmt.Sprintf("%s %.0f", cost.Currency, float64(cost.Total)))
	}
	row("Generated", data.GeneratedAt.Format("02 Jan 2006, 15:04 UTC"))
	pdf.Ln(4)

	// ── Selected Flight ───────────────────────────────────────
	if f := data.Flight; f != nil {
		sectionHeader("Selected Flight")
		row("Airline", f.CarrierName)
		row("Outbound", formatJourney(f.Outbound))
		if f.Return != nil {
			row("Return", formatJourney(*f.Return))
		}
		row("Price", fmt.Sprintf("%s %.2f", f.Currency, f.Price))
		pdf.Ln(4)
	}

	// ── Daily Plan ────────────────────────────────────────────
	for _, day := range data.Itinerary.DailyPlan {
		title := fmt.Sprintf("Day %d", day.Day)
		if day.Date != "" {
			title += " - " + fmtDateReadable(day.Date)
		}
		sectionHeader(title)
		if day.Summary != "" {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.SetTextColor(60, 60, 60)
			pdf.MultiCell(170, 5, tr(day.Summary), "", "L", false)
			pdf.Ln(1)
		}
		for _, a := range day.Activities {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetTextColor(20, 20, 20)
			pdf.CellFormat(30, 6, a.StartTime+"-"+a.EndTime, "", 0, "L", false, 0, "")
			label := a.Name
			if a.EstimatedCost > 0 {
				label += fmt.Sprintf(" (~%.0f %s)", float64(a.EstimatedCost), data.Itinerary.EstimatedCost.Currency)
			}
			pdf.CellFormat(140, 6, tr(label), "", 1, "L", false, 0, "")
			if a.Description != "" {
				pdf.SetFont("Helvetica", "", 9)
				pdf.SetTextColor(80, 80, 80)
				pdf.SetX(50)
				pdf.MultiCell(140, 4.5, tr(a.Description), "", "L", false)
			}
		}
		pdf.Ln(4)
	}

	// ── Tips ──────────────────────────────────────────────────
	if len(data.Itinerary.Tips) > 0 {
		sectionHeader("Travel Tips")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(40, 40, 40)
		for _, tip := range data.Itinerary.Tips {
			pdf.MultiCell(170, 5, tr("- "+tip), "", "L", false)
		}
		pdf.Ln(4)
	}

	// ── Write to buffer ───────────────────────────────────────
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output failed: %w", err)
	}
	return buf.Bytes(), nil
}

func fmtDateReadable(iso string) string {
	t, err := time.Parse(dateLayout, iso)
	if err != nil {
		return iso
	}
	return t.Format("02 Jan 2006 (Mon)")
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// formatJourney renders "JFK 08:00 -> LAX 11:30 (5h 30m, direct)".
func formatJourney(j Journey) string {
	if len(j.Segments) == 0 {
		return "N/A"
	}
	first, last := j.Segments[0], j.Segments[len(j.Segments)-1]
	parts := []string{j.Duration}
	if j.Stops == 0 {
		parts = append(parts, "direct")
	} else {
		parts = append(parts, fmt.Sprintf("%d stop(s)", j.Stops))
	}
	return fmt.Sprintf("%s %s -> %s %s (%s)",
		first.From, clockOf(first.DepartureAt),
		last.To, clockOf(last.ArrivalAt),
		strings.Join(parts, ", "))
}

// clockOf extracts "02 Jan 15:04" from an Amadeus local timestamp
// (2025-06-01T08:00:00, no zone).
func clockOf(at string) string {
	t, err := time.Parse("2006-01-02T15:04:05", at)
	if err != nil {
		return at
	}
	return t.Format("02 Jan 15:04")
}
