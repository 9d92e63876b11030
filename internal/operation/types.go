package operation

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the operation performed on a point.
type Kind string

const (
	KindForce   Kind = "force"
	KindUnforce Kind = "unforce"
	KindRead    Kind = "read"
)

// ParseKind converts a configuration action string to a Kind.
// Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindForce, KindUnforce, KindRead:
		return k, nil
	default:
		return "", NewConfigError("action", "unsupported action %q (want force, unforce or read)", s)
	}
}

// Request describes one operation on one point.
//
// Invariant: Value != nil if and only if Kind == KindForce.
type Request struct {
	Point  Point    `json:"point"`
	Kind   Kind     `json:"action"`
	Value  *float64 `json:"value,omitempty"`
	DryRun bool     `json:"dry_run"`
}

// NewRequest validates and builds a Request.
//
// Returns:
//   - Request: the validated request
//   - error: *ConfigError if the point is empty, the kind is unknown, or the
//     value presence does not match the kind
func NewRequest(point string, kind Kind, value *float64, dryRun bool) (Request, error) {
	req := Request{
		Point:  Point(strings.TrimSpace(point)),
		Kind:   kind,
		DryRun: dryRun,
	}
	if value != nil {
		req.Value = Float(*value)
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate checks the request invariants.
func (r Request) Validate() error {
	if r.Point == "" {
		return NewConfigError("point", "is required")
	}
	switch r.Kind {
	case KindForce:
		if r.Value == nil {
			return NewConfigError("value", "is required for force on %s", r.Point)
		}
	case KindUnforce, KindRead:
		if r.Value != nil {
			return NewConfigError("value", "is only allowed for force, got %s on %s", r.Kind, r.Point)
		}
	default:
		return NewConfigError("action", "unsupported action %q", r.Kind)
	}
	return nil
}

// String renders the request for log messages.
func (r Request) String() string {
	s := fmt.Sprintf("%s %s", r.Kind, r.Point)
	if r.Value != nil {
		s += "=" + FormatValue(*r.Value)
	}
	if r.DryRun {
		s += " (dry-run)"
	}
	return s
}

// Outcome records the result of one attempt of a Request.
type Outcome struct {
	Request Request `json:"request"`
	Success bool    `json:"success"`
	Message string  `json:"message"`

	// ObservedValue is set for reads and for post-commit verification.
	ObservedValue *float64 `json:"observed_value,omitempty"`

	// Attempt is the 1-based attempt index that produced this outcome.
	Attempt int `json:"attempt"`

	// ScreenshotRef is an opaque diagnostic reference, present only on failure.
	ScreenshotRef string `json:"screenshot_ref,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Succeeded builds a successful outcome.
func Succeeded(req Request, message string, observed *float64, at time.Time) Outcome {
	o := Outcome{
		Request:   req,
		Success:   true,
		Message:   message,
		Attempt:   1,
		Timestamp: at,
	}
	if observed != nil {
		o.ObservedValue = Float(*observed)
	}
	return o
}

// Failed builds a failed outcome. The kind is embedded as a "[Kind]" tag at
// the start of the message so it survives serialisation.
func Failed(req Request, kind FailureKind, detail string, at time.Time) Outcome {
	return Outcome{
		Request:   req,
		Success:   false,
		Message:   fmt.Sprintf("[%s] %s", kind, detail),
		Attempt:   1,
		Timestamp: at,
	}
}

// FailureKind extracts the failure tag from a failed outcome.
// It returns "" for successful outcomes or untagged messages.
func (o Outcome) FailureKind() FailureKind {
	if o.Success || !strings.HasPrefix(o.Message, "[") {
		return ""
	}
	end := strings.Index(o.Message, "]")
	if end < 0 {
		return ""
	}
	return FailureKind(o.Message[1:end])
}

// WithAttempt returns a copy annotated with the attempt index.
func (o Outcome) WithAttempt(n int) Outcome {
	c := o.clone()
	c.Attempt = n
	return c
}

// WithScreenshot returns a copy carrying a diagnostic reference.
func (o Outcome) WithScreenshot(ref string) Outcome {
	c := o.clone()
	c.ScreenshotRef = ref
	return c
}

// WithMessage returns a copy with an amended message.
func (o Outcome) WithMessage(msg string) Outcome {
	c := o.clone()
	c.Message = msg
	return c
}

// clone deep-copies the pointer fields so copies never alias.
func (o Outcome) clone() Outcome {
	c := o
	if o.ObservedValue != nil {
		c.ObservedValue = Float(*o.ObservedValue)
	}
	if o.Request.Value != nil {
		c.Request.Value = Float(*o.Request.Value)
	}
	return c
}
