package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// formatMinutes renders a duration in minutes as "2h05m", or "45m" under an hour.
func formatMinutes(m int) string {
	if m < 0 {
		m = 0
	}
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", m/60, m%60)
}

// formatPct renders a percentage with one decimal.
func formatPct(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// orDash renders an optional value, or "-" when it is absent.
func orDash[T any](p *T) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
