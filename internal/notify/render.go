package notify

import (
	"strings"

	"pantrywatch/internal/scan"
	"pantrywatch/internal/types"
)

// Payload is the rendered grouped notification handed to a Notifier. One
// payload summarizes every attention category in a single notification; the
// collapsed Content names the categories and the expanded Body lists each
// item under its category heading.
type Payload struct {
	Title   string
	Content string
	Body    string

	// Types is the CSV of categories present, carried so the receiving
	// client can route its Seen/Snooze actions back with the same scope.
	Types string

	// Items is every affected item name across all categories.
	Items []string
}

const payloadTitle = "Items Need Your Attention!"

// buildPayload renders the grouped notification. snoozeReminder marks a
// snooze-path delivery, which prefixes the collapsed line; retryCount is the
// pre-delivery retry counter, used to call out the final reminder of an
// episode.
func buildPayload(res scan.Result, snoozeReminder bool, retryCount int) Payload {
	var categories []string
	if len(res.Expired) > 0 {
		categories = append(categories, "Items Expired")
	}
	if len(res.LowConsumption) > 0 {
		categories = append(categories, "Low Consumption Items")
	}
	if len(res.Forgotten) > 0 {
		categories = append(categories, "Forgotten Items")
	}
	content := strings.Join(categories, ", ")

	if snoozeReminder {
		prefix := "Snooze reminder"
		if retryCount >= types.MaxSnoozeRetries-1 {
			prefix = "Last snooze reminder"
		}
		content = prefix + ": " + content
	}

	var body strings.Builder
	var typesCSV []string
	appendSection := func(heading string, items []string, typ AlarmType) {
		if len(items) == 0 {
			return
		}
		if body.Len() > 0 {
			body.WriteString("\n")
		}
		body.WriteString(heading + "\n")
		for _, item := range items {
			body.WriteString("• " + item + "\n")
		}
		typesCSV = append(typesCSV, string(typ))
	}
	appendSection("⚠️ Expired Items:", res.Expired, AlarmExpired)
	appendSection("📉 Low Consumption Items:", res.LowConsumption, AlarmLow)
	appendSection("🗂️ Forgotten Items:", res.Forgotten, AlarmForgotten)

	items := make([]string, 0, len(res.Expired)+len(res.LowConsumption)+len(res.Forgotten))
	items = append(items, res.Expired...)
	items = append(items, res.LowConsumption...)
	items = append(items, res.Forgotten...)

	return Payload{
		Title:   payloadTitle,
		Content: content,
		Body:    strings.TrimSpace(body.String()),
		Types:   strings.Join(typesCSV, ","),
		Items:   items,
	}
}
