// Allianced - Multi-Tenant Alliance Management Bot
// Copyright 2026 OrbisTech
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/orbistech/allianced

package commands

import (
	"strconv"
	"strings"
	"time"
)

// Reply colors shared across handlers.
const (
	colorInfo  = 0x0099FF
	colorAlert = 0xFF6B6B
	colorWon   = 0x00FF00
)

const footerText = "Alliance Management Bot"

// formatInt renders an integer with thousands separators.
func formatInt(n int) string {
	return groupDigits(strconv.Itoa(n))
}

// formatScore renders a score with two decimals and thousands
// separators.
func formatScore(score float64) string {
	s := strconv.FormatFloat(score, 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")
	return groupDigits(whole) + "." + frac
}

// scoreOrNA substitutes the placeholder for an absent score.
func scoreOrNA(score float64) string {
	if score <= 0 {
		return "N/A"
	}
	return formatScore(score)
}

// countOrNA substitutes the placeholder for an absent count.
func countOrNA(n int) string {
	if n <= 0 {
		return "N/A"
	}
	return formatInt(n)
}

// orNA substitutes the placeholder for an empty string.
func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func groupDigits(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// daysSince returns whole days between then and now.
func daysSince(then time.Time, now time.Time) int {
	return int(now.Sub(then).Hours() / 24)
}

// relativeDays renders "Today" / "Yesterday" / "N days ago".
func relativeDays(then time.Time, now time.Time) string {
	switch d := daysSince(then, now); d {
	case 0:
		return "Today"
	case 1:
		return "Yesterday"
	default:
		return strconv.Itoa(d) + " days ago"
	}
}

// activityStatus buckets a member's last recorded activity.
func activityStatus(lastActive *time.Time, now time.Time) string {
	if lastActive == nil {
		return "Unknown"
	}
	switch d := daysSince(*lastActive, now); {
	case d == 0:
		return "Active today"
	case d <= 1:
		return "Active recently"
	case d <= 7:
		return "Active this week"
	default:
		return "Inactive"
	}
}
