package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a report as a Markdown document.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Backtest Report: %s\n\n", r.Title))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	if len(r.Runs) == 0 {
		sb.WriteString("No runs found.\n")
		return sb.String()
	}

	sb.WriteString("## Runs\n\n")
	sb.WriteString("| Run | TP | SL | TTL | End Capital | Trades | Win % | TP % | SL % | TTL % | R:R |\n")
	sb.WriteString("|-----|----|----|-----|-------------|--------|-------|------|------|-------|-----|\n")
	for _, row := range r.Runs {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d | %s | %s | %s | %s | %s |\n",
			row.RunName,
			latexOptF(row.TP),
			latexOptF(row.SL),
			latexOptI(row.TTL),
			formatF(row.EndCapital),
			row.Trades,
			percent(row.WinRate),
			percent(row.TPHit),
			percent(row.SLHit),
			percent(row.TTLHit),
			latexOptF(row.RiskReward),
		))
	}

	if r.Best != nil {
		sb.WriteString(fmt.Sprintf("\n**Best run:** %s (end capital %s)\n", r.Best.RunName, formatF(r.Best.EndCapital)))
	}
	for _, row := range r.Runs {
		if row.StoredRows != row.Trades {
			sb.WriteString(fmt.Sprintf("\n> Warning: run %s stores %d trades but its summary counts %d\n",
				row.RunName, row.StoredRows, row.Trades))
		}
	}

	return sb.String()
}
