package operation

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is the canonical identifier of a control point, in the form
// "<area>-<tag>" (e.g. "360.005-JV40_Pos"). A point has no local value;
// its value lives only in the building-management system.
type Point string

// String implements fmt.Stringer.
func (p Point) String() string { return string(p) }

// ShortName returns the tag after the last "-" ("JV40_Pos"), or the whole
// identifier when it has no area prefix.
func (p Point) ShortName() string {
	s := string(p)
	if i := strings.LastIndex(s, "-"); i >= 0 && i < len(s)-1 {
		return s[i+1:]
	}
	return s
}

// Candidates returns the identifiers to try when resolving the point on a
// view: canonical first, then the short name when it differs.
func (p Point) Candidates() []string {
	short := p.ShortName()
	if short == string(p) {
		return []string{string(p)}
	}
	return []string{string(p), short}
}

// Float returns a pointer to v. Used for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}

// ParseValue parses a numeric value as displayed by the console.
//
// Decimal commas are accepted ("21,5"), surrounding whitespace and a trailing
// unit separated by whitespace are ignored ("21,5 °C").
func ParseValue(text string) (float64, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", text, err)
	}
	return v, nil
}

// FormatValue renders a value the way it is typed into a force dialog.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
