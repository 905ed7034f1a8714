package models

import (
	"fmt"
	"time"
)

// Timeframe is the closed set of reporting windows supported by the
// analytics engines. Keeping it a typed constant set makes an invalid
// timeframe unrepresentable past the parse boundary.
type Timeframe int

const (
	Timeframe24h Timeframe = iota
	Timeframe7d
	Timeframe30d
	Timeframe90d
	Timeframe1y
	TimeframeAll
)

// AllTimeframes lists every timeframe in recomputation order.
var AllTimeframes = []Timeframe{
	Timeframe24h,
	Timeframe7d,
	Timeframe30d,
	Timeframe90d,
	Timeframe1y,
	TimeframeAll,
}

func (t Timeframe) String() string {
	switch t {
	case Timeframe24h:
		return "24h"
	case Timeframe7d:
		return "7d"
	case Timeframe30d:
		return "30d"
	case Timeframe90d:
		return "90d"
	case Timeframe1y:
		return "1y"
	case TimeframeAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseTimeframe converts the wire representation into a Timeframe.
func ParseTimeframe(s string) (Timeframe, error) {
	switch s {
	case "24h":
		return Timeframe24h, nil
	case "7d":
		return Timeframe7d, nil
	case "30d":
		return Timeframe30d, nil
	case "90d":
		return Timeframe90d, nil
	case "1y":
		return Timeframe1y, nil
	case "all":
		return TimeframeAll, nil
	default:
		return 0, fmt.Errorf("unknown timeframe: %q", s)
	}
}

// Window returns the lookback duration for the timeframe. The second
// return value is false for TimeframeAll, which has no cutoff.
func (t Timeframe) Window() (time.Duration, bool) {
	switch t {
	case Timeframe24h:
		return 24 * time.Hour, true
	case Timeframe7d:
		return 7 * 24 * time.Hour, true
	case Timeframe30d:
		return 30 * 24 * time.Hour, true
	case Timeframe90d:
		return 90 * 24 * time.Hour, true
	case Timeframe1y:
		return 365 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// MarshalJSON encodes the timeframe as its string form.
func (t Timeframe) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON decodes the string form of a timeframe.
func (t *Timeframe) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid timeframe JSON: %s", data)
	}
	parsed, err := ParseTimeframe(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
