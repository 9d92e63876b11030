package controller

import (
	"time"

	"github.com/nerrad567/gray-logic-operator/internal/operation"
)

// Reading is one sensor value.
type Reading struct {
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Candidate is a request produced by a firing rule.
type Candidate struct {
	// Rule is the index of the rule that produced the request.
	Rule    int
	Request operation.Request
	Reading Reading
}

// SkippedRule is a rule that fired but could not be turned into a request.
type SkippedRule struct {
	Rule   int
	Reason string
}

// Evaluate tests every rule in order against the readings and returns one
// candidate per point. When several rules fire for the same point, the last
// one wins but keeps the position of the first, so submission order follows
// the first rule that named the point. Fired rules that yield no valid
// request are returned as skipped.
func Evaluate(rules []Rule, readings []Reading, dryRun bool) ([]Candidate, []SkippedRule) {
	latest := make(map[string]Reading, len(readings))
	for _, r := range readings {
		latest[r.Metric] = r
	}

	var (
		candidates []Candidate
		skipped    []SkippedRule
	)
	slot := make(map[string]int)
	for i, rule := range rules {
		reading, ok := latest[rule.Metric]
		if !ok || !rule.Fires(reading) {
			continue
		}
		req, err := rule.Request(reading, dryRun)
		if err != nil {
			skipped = append(skipped, SkippedRule{Rule: i, Reason: err.Error()})
			continue
		}
		c := Candidate{Rule: i, Request: req, Reading: reading}
		if at, seen := slot[req.Point.String()]; seen {
			candidates[at] = c
			continue
		}
		slot[req.Point.String()] = len(candidates)
		candidates = append(candidates, c)
	}
	return candidates, skipped
}
