package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Reversal Tips\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.DailyBarTime.IsZero() {
		sb.WriteString("No tips recorded.\n")
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("Daily bar: %s\n\n", r.DailyBarTime.Format("2006-01-02")))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Tips | %d |\n", r.Summary.TotalTips))
	sb.WriteString(fmt.Sprintf("| Long | %d |\n", r.Summary.LongTips))
	sb.WriteString(fmt.Sprintf("| Short | %d |\n", r.Summary.ShortTips))
	sb.WriteString(fmt.Sprintf("| Approved | %d |\n", r.Summary.ApprovedTips))
	sb.WriteString("\n")

	// Tips
	sb.WriteString("## Tips\n\n")
	sb.WriteString("| Tip | Symbol | Name | Direction | Multiple | Scale | Volume | Close | 7d | Approved |\n")
	sb.WriteString("|-----|--------|------|-----------|----------|-------|--------|-------|----|----------|\n")
	for _, t := range r.Tips {
		approved := "no"
		if t.NeedTrade {
			approved = "yes"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %d | %.4f | %d | %.2f | %d | %s |\n",
			t.TipID, t.Symbol, t.Name, t.Direction, t.Multiple, t.OpenPosScale,
			t.Volume, t.ClosePrice, t.Count7d, approved))
	}
	sb.WriteString("\n")

	if len(r.Unconfigured) > 0 {
		sb.WriteString("### Missing Instrument Config\n\n")
		for _, s := range r.Unconfigured {
			sb.WriteString(fmt.Sprintf("- %s\n", s))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Approve a tip with `report -approve <tip_id>`.\n")
	return sb.String()
}
