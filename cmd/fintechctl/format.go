package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// relativeTime renders t the way the dashboard lists transactions
func relativeTime(now, t time.Time) string {
	diff := now.Sub(t)
	mins := int(diff / time.Minute)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))

	switch {
	case mins < 1:
		return "Just now"
	case mins < 60:
		return plural(mins, "minute") + " ago"
	case hours < 24:
		return plural(hours, "hour") + " ago"
	case days < 7:
		return plural(days, "day") + " ago"
	case t.Year() != now.Year():
		return t.Local().Format("Jan 2, 2006")
	}
	return t.Local().Format("Jan 2")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
