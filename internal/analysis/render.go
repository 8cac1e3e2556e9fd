package analysis

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Render writes the plain text report. label is shown in the header, usually
// the Riot ID or the PUUID.
func (r *Report) Render(w io.Writer, label string) {
	rule := strings.Repeat("=", 40)

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "ANALYSIS REPORT: %s\n", label)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Games Analyzed: %d\n", r.GamesAnalyzed)
	fmt.Fprintf(w, "Win Rate:       %.1f%%\n", r.WinRate)
	fmt.Fprintln(w, strings.Repeat("-", 20))
	fmt.Fprintf(w, "KDA:            %.2f (%s)\n", r.AvgKDA, r.KDATier)
	fmt.Fprintf(w, "CSPM:           %.2f (%s)\n", r.AvgCSPerMinute, r.CSPMTier)
	fmt.Fprintf(w, "Vision Score:   %.2f (%s)\n", r.AvgVisionScore, r.VisionTier)
	fmt.Fprintf(w, "Gold/Min:       %.2f\n", r.AvgGoldPerMinute)
	fmt.Fprintf(w, "Damage/Min:     %.2f\n", r.AvgDamagePerMinute)

	if len(r.Positions) > 0 {
		parts := make([]string, len(r.Positions))
		for i, p := range r.Positions {
			parts[i] = fmt.Sprintf("%s %d", p.Position, p.Games)
		}
		fmt.Fprintf(w, "Positions:      %s\n", strings.Join(parts, ", "))
	}

	if r.LastRun != nil {
		fmt.Fprintf(w, "Last %s:     %s\n", r.LastRun.Kind, r.LastRun.FinishedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintln(w, rule)
}
