package services

import (
	"fmt"
	"strings"
)

const itinerarySchemaHint = `Return strict JSON with exactly this shape:
{"destination": string, "total_days": integer,
 "daily_plan": [{"day": integer, "date": "YYYY-MM-DD", "summary": string,
   "activities": [{"name": string, "start_time": "HH:MM", "end_time": "HH:MM",
     "description": string, "estimated_cost": number}]}],
 "estimated_cost": {"currency": string, "total": number},
 "tips": [string]}
Times are 24-hour. Only the last activity of a day may end after midnight,
and then its end_time must be before 06:00.`

// BuildPrompt renders the system and user messages for req. The output
// depends only on req, so identical requests produce identical prompts.
func BuildPrompt(req ItineraryRequest) []ChatMessage {
	system := fmt.Sprintf(
		"You are an expert travel planner. Create practical, local-savvy itineraries. "+
			"Use realistic travel times, cluster nearby activities, and balance mornings/afternoons/evenings. "+
			"List each day's activities in chronological order. "+
			"Output currency: %s. %s",
		req.Currency, itinerarySchemaHint)

	var b strings.Builder
	b.WriteString("Plan a trip with these details:\n")
	if req.Origin != "" {
		fmt.Fprintf(&b, "- Origin: %s\n", req.Origin)
	}
	fmt.Fprintf(&b, "- Destination: %s\n", req.Destination)
	fmt.Fprintf(&b, "- Dates: %s to %s\n", req.StartDate, req.EndDate)
	fmt.Fprintf(&b, "- Number of days: %d (daily_plan must contain exactly %d entries)\n", req.TripDays(), req.TripDays())
	fmt.Fprintf(&b, "- Travelers: %d\n", req.Travelers)
	fmt.Fprintf(&b, "- Budget: %s\n", req.Budget)
	if len(req.Interests) > 0 {
		fmt.Fprintf(&b, "- Interests: %s\n", strings.Join(req.Interests, ", "))
	}
	fmt.Fprintf(&b, "- Preferred pace: %s\n", req.Pace)
	b.WriteString("Return only JSON.")

	return []ChatMessage{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: b.String()},
	}
}

// repairPrompt asks the model to fix its previous answer.
func repairPrompt(cause error) ChatMessage {
	return ChatMessage{
		Role: RoleUser,
		Content: fmt.Sprintf(
			"Your previous answer could not be used (%v). Return valid JSON only, "+
				"with no markdown fences or commentary, matching the requested shape.", cause),
	}
}
