package staging

import (
	"strconv"
	"strings"
	"time"
)

// ParseMoney parses a currency cell. Currency symbols and thousands
// separators are stripped; blank or unparseable cells return nil.
func ParseMoney(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// MoneyOrZero is ParseMoney with a zero default.
func MoneyOrZero(s string) float64 {
	if v := ParseMoney(s); v != nil {
		return *v
	}
	return 0
}

// ParseInt parses an integer cell; blank or unparseable cells return nil.
func ParseInt(s string) *int64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// IntOrDefault is ParseInt with a caller-chosen default.
func IntOrDefault(s string, def int64) int64 {
	if v := ParseInt(s); v != nil {
		return *v
	}
	return def
}

// ParseFloat parses a plain numeric cell; blank or unparseable cells
// return nil.
func ParseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParsePercent parses a percentage cell ("1.93%" or "1.93") into a ratio.
func ParsePercent(s string) *float64 {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	v := ParseFloat(s)
	if v == nil {
		return nil
	}
	ratio := *v / 100
	return &ratio
}

// ParseFlag interprets an export boolean cell. "true" and "yes" (any case)
// are true, a blank cell takes the default, anything else is false.
func ParseFlag(s string, def bool) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	switch strings.ToUpper(s) {
	case "TRUE", "YES":
		return true
	default:
		return false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses export timestamps in the formats storefront exports use.
// Zone-less forms are taken as UTC. Blank or unparseable cells return nil.
func ParseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD cell.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
