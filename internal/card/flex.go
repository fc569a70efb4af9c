// Package card renders quotes as LINE Flex bubble messages.
package card

import (
	"fmt"
	"math"
	"time"

	"market-bot/internal/domain"
)

const (
	colorUp     = "#00B16A"
	colorDown   = "#E74C3C"
	colorMuted  = "#9CA3AF"
	colorText   = "#111827"
	colorSubtle = "#6B7280"

	arrowUp   = "▲"
	arrowDown = "▼"
)

// DisplayZone is the zone the "Updated" line is rendered in.
var DisplayZone = time.FixedZone("ICT", 7*60*60)

// BuildQuote turns a quote into a flex message. It never fails: missing
// fields render as placeholders.
func BuildQuote(q domain.Quote) domain.Message {
	change, pct := q.Change()
	color := colorUp
	if change < 0 {
		color = colorDown
	}

	status := q.MarketStatus
	if status == "" {
		status = domain.MarketUnknown
	}
	statusColor := colorMuted
	if status == domain.MarketOpen {
		statusColor = colorUp
	}

	details := []domain.FlexComponent{
		row("Open", q.Open),
		row("Prev Close", q.PrevClose),
	}
	if q.HasRange() {
		details = append(details, row("High", q.High), row("Low", q.Low))
	}

	body := &domain.FlexComponent{
		Type:    "box",
		Layout:  "vertical",
		Spacing: "md",
		Contents: []domain.FlexComponent{
			{
				Type:   "box",
				Layout: "horizontal",
				Contents: []domain.FlexComponent{
					{Type: "text", Text: q.Symbol, Weight: "bold", Size: "xl", Color: colorText, Flex: intPtr(1)},
					{Type: "text", Text: status, Size: "sm", Weight: "bold", Color: statusColor, Align: "end"},
				},
			},
			{Type: "text", Text: "Updated " + updatedText(q.FetchedAt), Size: "xs", Color: colorSubtle},
			{Type: "separator", Margin: "md"},
			{
				Type:   "box",
				Layout: "vertical",
				Margin: "lg",
				Contents: []domain.FlexComponent{
					{Type: "text", Text: FormatPrice(q.Current), Size: "xxl", Weight: "bold", Color: colorText},
					{Type: "text", Text: ChangeText(change, pct), Size: "md", Weight: "bold", Color: color},
				},
			},
			{Type: "separator", Margin: "lg"},
			{
				Type:     "box",
				Layout:   "vertical",
				Margin:   "lg",
				Spacing:  "sm",
				Contents: details,
			},
		},
	}

	return domain.Message{
		Type:    "flex",
		AltText: fmt.Sprintf("%s %s", q.Symbol, FormatPrice(q.Current)),
		Contents: &domain.FlexComponent{
			Type: "bubble",
			Size: "mega",
			Body: body,
		},
	}
}

// ChangeText renders the arrow line, e.g. "▲ 1.00 (0.67%)".
func ChangeText(change, pct float64) string {
	arrow := arrowUp
	if change < 0 {
		arrow = arrowDown
	}
	return fmt.Sprintf("%s %s (%.2f%%)", arrow, FormatPrice(math.Abs(change)), math.Abs(pct))
}

// FormatPrice uses two decimals, widening for sub-unit prices so small-cap
// crypto does not render as 0.00.
func FormatPrice(v float64) string {
	if v != 0 && math.Abs(v) < 1 {
		return fmt.Sprintf("%.6f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

func updatedText(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(DisplayZone).Format("15:04 MST")
}

func row(label string, value float64) domain.FlexComponent {
	return domain.FlexComponent{
		Type:   "box",
		Layout: "horizontal",
		Contents: []domain.FlexComponent{
			{Type: "text", Text: label, Size: "sm", Color: colorSubtle, Flex: intPtr(1)},
			{Type: "text", Text: FormatPrice(value), Size: "sm", Weight: "bold", Color: colorText, Align: "end"},
		},
	}
}

func intPtr(v int) *int { return &v }
