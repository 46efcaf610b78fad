package fact

import (
	"strings"
	"time"
)

// DateKey encodes a timestamp as the YYYYMMDD surrogate used by dim_date.
func DateKey(t time.Time) int64 {
	t = t.UTC()
	return int64(t.Year())*10000 + int64(t.Month())*100 + int64(t.Day())
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func floatOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func floatValue(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func intValue(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func timeValue(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}
