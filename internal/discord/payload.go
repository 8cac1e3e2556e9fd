package discord

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"match-analyzer/internal/analysis"
	"match-analyzer/internal/collector"
)

// Colors for Discord embeds
const (
	colorRed    = 15158332 // 0xE74C3C
	colorYellow = 16705372 // 0xFEE75C
	colorGreen  = 5763719  // 0x57F287
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// NewRunSummaryPayload describes a finished fetch or process run. Runs with
// failures are yellow, runs where every match failed are red.
func NewRunSummaryPayload(s *collector.Summary) WebhookPayload {
	color := colorGreen
	title := fmt.Sprintf("✅ %s Complete", runTitle(s.Kind))
	switch {
	case s.Failed > 0 && s.Failed >= s.Fetched:
		color = colorRed
		title = fmt.Sprintf("❌ %s Failed", runTitle(s.Kind))
	case s.Failed > 0:
		color = colorYellow
	}

	fields := []EmbedField{
		{Name: "Matches", Value: fmt.Sprintf("%s/%s", formatNumber(s.Fetched), formatNumber(s.Requested)), Inline: true},
		{Name: "Skipped", Value: formatNumber(s.Skipped), Inline: true},
		{Name: "Failed", Value: formatNumber(s.Failed), Inline: true},
		{Name: "Stats Saved", Value: formatNumber(s.StatsSaved), Inline: true},
		{Name: "Events Saved", Value: formatNumber(s.EventsSaved), Inline: true},
		{Name: "Runtime", Value: collector.FormatDuration(s.Elapsed), Inline: true},
	}

	return WebhookPayload{
		Embeds: []Embed{
			{
				Title:     title,
				Color:     color,
				Fields:    fields,
				Footer:    &EmbedFooter{Text: "Run " + s.RunID},
				Timestamp: s.FinishedAt.UTC().Format(time.RFC3339),
			},
		},
	}
}

// NewReportPayload renders an analysis report as an embed. The color follows
// the worst of the three tiers.
func NewReportPayload(r *analysis.Report, label string) WebhookPayload {
	fields := []EmbedField{
		{Name: "Games", Value: strconv.Itoa(r.GamesAnalyzed), Inline: true},
		{Name: "Win Rate", Value: fmt.Sprintf("%.1f%%", r.WinRate), Inline: true},
		{Name: "Gold/Min", Value: fmt.Sprintf("%.2f", r.AvgGoldPerMinute), Inline: true},
		{Name: "KDA", Value: fmt.Sprintf("%.2f (%s)", r.AvgKDA, r.KDATier), Inline: true},
		{Name: "CSPM", Value: fmt.Sprintf("%.2f (%s)", r.AvgCSPerMinute, r.CSPMTier), Inline: true},
		{Name: "Vision", Value: fmt.Sprintf("%.2f (%s)", r.AvgVisionScore, r.VisionTier), Inline: true},
	}

	if len(r.Positions) > 0 {
		parts := make([]string, len(r.Positions))
		for i, p := range r.Positions {
			parts[i] = fmt.Sprintf("%s %d", p.Position, p.Games)
		}
		fields = append(fields, EmbedField{Name: "Positions", Value: strings.Join(parts, ", ")})
	}

	embed := Embed{
		Title:  "📊 Analysis Report: " + label,
		Color:  tierColor(r.KDATier, r.CSPMTier, r.VisionTier),
		Fields: fields,
	}
	if r.LastRun != nil {
		embed.Footer = &EmbedFooter{Text: fmt.Sprintf("Last %s %s", r.LastRun.Kind, r.LastRun.FinishedAt.UTC().Format(time.RFC3339))}
	}

	return WebhookPayload{Embeds: []Embed{embed}}
}

func tierColor(tiers ...analysis.Tier) int {
	color := colorGreen
	for _, t := range tiers {
		switch t {
		case analysis.TierNeedsImprovement:
			return colorRed
		case analysis.TierOkay:
			color = colorYellow
		}
	}
	return color
}

func runTitle(kind string) string {
	if kind == "" {
		return "Run"
	}
	return strings.ToUpper(kind[:1]) + kind[1:]
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int) string {
	if n < 1000 {
		return strconv.Itoa(n)
	}

	s := strconv.Itoa(n)
	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}
