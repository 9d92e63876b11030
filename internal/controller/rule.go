package controller

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-operator/internal/operation"
)

// Sensor metrics understood by the sources.
const (
	MetricRelativeHumidity   = "relative_humidity"
	MetricCondensationRisk   = "condensation_risk"
	MetricAirQualityCO       = "air_quality_co"
	MetricAirQualityCO2      = "air_quality_co2"
	MetricTemperature        = "temperature"
	MetricOutdoorTemperature = "outdoor_temperature"
	MetricDewPoint           = "dew_point"
)

// Comparison is a rule's threshold test.
type Comparison string

// Supported comparisons.
const (
	GreaterThan    Comparison = ">"
	LessThan       Comparison = "<"
	GreaterOrEqual Comparison = ">="
	LessOrEqual    Comparison = "<="
)

// Valid reports whether c is a supported comparison.
func (c Comparison) Valid() bool {
	switch c {
	case GreaterThan, LessThan, GreaterOrEqual, LessOrEqual:
		return true
	}
	return false
}

// Holds reports whether value <c> threshold.
func (c Comparison) Holds(value, threshold float64) bool {
	switch c {
	case GreaterThan:
		return value > threshold
	case LessThan:
		return value < threshold
	case GreaterOrEqual:
		return value >= threshold
	case LessOrEqual:
		return value <= threshold
	default:
		return false
	}
}

// ValueExpr is a rule's value template: a constant ("45", "21,5") or an
// expression over the triggering reading ("reading", "reading + 2",
// "reading*0.5"). Supported operators are + - * /.
type ValueExpr struct {
	raw string

	parsed   bool
	constant bool
	value    float64
	op       byte
	operand  float64
}

// ParseValueExpr parses a value template.
func ParseValueExpr(s string) (ValueExpr, error) {
	e := ValueExpr{raw: strings.TrimSpace(s)}
	if err := e.parse(); err != nil {
		return ValueExpr{}, err
	}
	return e, nil
}

// IsZero reports whether no value was configured.
func (e ValueExpr) IsZero() bool { return e.raw == "" }

// String returns the template as written.
func (e ValueExpr) String() string { return e.raw }

func (e *ValueExpr) parse() error {
	e.parsed = true
	if e.raw == "" {
		return nil
	}
	if v, err := operation.ParseValue(e.raw); err == nil && len(strings.Fields(e.raw)) == 1 {
		e.constant, e.value = true, v
		return nil
	}

	compact := strings.ReplaceAll(strings.ToLower(e.raw), " ", "")
	rest, ok := strings.CutPrefix(compact, "reading")
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidExpression, e.raw)
	}
	if rest == "" {
		return nil
	}
	switch rest[0] {
	case '+', '-', '*', '/':
	default:
		return fmt.Errorf("%w: %q: unsupported operator %q", ErrInvalidExpression, e.raw, rest[0])
	}
	operand, err := operation.ParseValue(rest[1:])
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidExpression, e.raw, err)
	}
	if rest[0] == '/' && operand == 0 {
		return fmt.Errorf("%w: %q: division by zero", ErrInvalidExpression, e.raw)
	}
	e.op, e.operand = rest[0], operand
	return nil
}

// Eval computes the value for a reading.
func (e ValueExpr) Eval(reading float64) float64 {
	if !e.parsed {
		_ = e.parse() //nolint:errcheck // invalid expressions are rejected by Config.Validate
	}
	if e.constant {
		return e.value
	}
	switch e.op {
	case '+':
		return reading + e.operand
	case '-':
		return reading - e.operand
	case '*':
		return reading * e.operand
	case '/':
		return reading / e.operand
	default:
		return reading
	}
}

// UnmarshalYAML accepts both numbers and strings.
func (e *ValueExpr) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: value must be a number or an expression", ErrInvalidExpression)
	}
	e.raw = strings.TrimSpace(node.Value)
	e.parsed = false
	return nil
}

// UnmarshalJSON accepts both numbers and strings.
func (e *ValueExpr) UnmarshalJSON(b []byte) error {
	text := strings.TrimSpace(string(b))
	if text == "null" {
		*e = ValueExpr{}
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
	}
	e.raw = strings.TrimSpace(text)
	e.parsed = false
	return nil
}

// MarshalYAML writes the template as written.
func (e ValueExpr) MarshalYAML() (any, error) { return e.raw, nil }

// Rule turns a threshold crossing into an operation request.
type Rule struct {
	Name       string     `yaml:"name,omitempty" json:"name,omitempty"`
	Metric     string     `yaml:"metric" json:"metric"`
	Comparison Comparison `yaml:"comparison" json:"comparison"`
	Threshold  float64    `yaml:"threshold" json:"threshold"`
	Point      string     `yaml:"point" json:"point"`
	Action     string     `yaml:"action" json:"action"`
	Value      ValueExpr  `yaml:"value" json:"value"`
}

// kind returns the rule's operation kind; an empty action means force.
func (r Rule) kind() (operation.Kind, error) {
	if strings.TrimSpace(r.Action) == "" {
		return operation.KindForce, nil
	}
	return operation.ParseKind(r.Action)
}

// validate checks one rule.
func (r Rule) validate() error {
	if strings.TrimSpace(r.Metric) == "" {
		return fmt.Errorf("metric is required")
	}
	if !r.Comparison.Valid() {
		return fmt.Errorf("comparison %q must be one of >, <, >=, <=", r.Comparison)
	}
	if strings.TrimSpace(r.Point) == "" {
		return fmt.Errorf("point is required")
	}
	kind, err := r.kind()
	if err != nil {
		return err
	}
	if _, err := ParseValueExpr(r.Value.String()); err != nil {
		return err
	}
	switch {
	case kind == operation.KindForce && r.Value.IsZero():
		return fmt.Errorf("value is required for force")
	case kind != operation.KindForce && !r.Value.IsZero():
		return fmt.Errorf("value is only allowed for force")
	}
	return nil
}

// Fires reports whether the reading crosses the rule's threshold.
func (r Rule) Fires(reading Reading) bool {
	return reading.Metric == r.Metric && r.Comparison.Holds(reading.Value, r.Threshold)
}

// Request instantiates the rule's template for a reading.
func (r Rule) Request(reading Reading, dryRun bool) (operation.Request, error) {
	kind, err := r.kind()
	if err != nil {
		return operation.Request{}, err
	}
	var value *float64
	if kind == operation.KindForce {
		value = operation.Float(r.Value.Eval(reading.Value))
	}
	return operation.NewRequest(strings.TrimSpace(r.Point), kind, value, dryRun)
}

// label names the rule in logs.
func (r Rule) label(index int) string {
	if r.Name != "" {
		return r.Name
	}
	return fmt.Sprintf("rules[%d]", index)
}
