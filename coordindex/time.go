package coordindex

import (
	"strings"
	"time"
)

// Fixed-length calendar approximations. Selections over month/year units use
// these deliberately; downstream datasets depend on the approximation, so it
// is not corrected to true calendar arithmetic.
const (
	unitMonth = 30 * 24 * time.Hour
	unitYear  = 8766 * time.Hour // 365.25 days
)

// timeEncoding converts instants to numeric offsets from a reference
// instant, in multiples of a fixed unit.
type timeEncoding struct {
	unit time.Duration
	ref  time.Time
}

// timeEncodingFromAttrs inspects axis attributes for a time tag. A
// standard_name/long_name of "time" marks the axis as time-valued with a
// Unix-epoch second encoding; a units attribute of the form
// "<unit> since <instant>" overrides both unit and reference.
func timeEncodingFromAttrs(attrs map[string]any) *timeEncoding {
	if enc := encodingFromUnits(attrs); enc != nil {
		return enc
	}
	for _, key := range []string{"standard_name", "long_name"} {
		if s, ok := attrs[key].(string); ok && strings.EqualFold(s, "time") {
			return &timeEncoding{unit: time.Second, ref: time.Unix(0, 0).UTC()}
		}
	}
	return nil
}

func encodingFromUnits(attrs map[string]any) *timeEncoding {
	units, ok := attrs["units"].(string)
	if !ok {
		return nil
	}
	fields := strings.Fields(units)
	if len(fields) < 3 || !strings.EqualFold(fields[1], "since") {
		return nil
	}
	unit, ok := parseUnit(fields[0])
	if !ok {
		return nil
	}
	ref, err := parseInstant(strings.Join(fields[2:], " "))
	if err != nil {
		return nil
	}
	return &timeEncoding{unit: unit, ref: ref}
}

func parseUnit(s string) (time.Duration, bool) {
	switch strings.TrimSuffix(strings.ToLower(s), "s") {
	case "second", "sec":
		return time.Second, true
	case "minute", "min":
		return time.Minute, true
	case "hour", "hr":
		return time.Hour, true
	case "day":
		return 24 * time.Hour, true
	case "week":
		return 7 * 24 * time.Hour, true
	case "month":
		return unitMonth, true
	case "year":
		return unitYear, true
	default:
		return 0, false
	}
}

// instantLayouts are tried in order. Layouts without a zone are parsed as
// UTC.
var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseInstant(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range instantLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// offsetOf converts v to the encoding's offset space. Plain numbers pass
// through unchanged; strings and time.Time values are converted from the
// reference instant.
func (e *timeEncoding) offsetOf(v any) (float64, bool) {
	if f, ok := toFloat(v); ok {
		return f, true
	}
	switch x := v.(type) {
	case time.Time:
		return float64(x.Sub(e.ref)) / float64(e.unit), true
	case string:
		t, err := parseInstant(x)
		if err != nil {
			return 0, false
		}
		return float64(t.Sub(e.ref)) / float64(e.unit), true
	default:
		return 0, false
	}
}
