package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-operator/internal/operation"
	"github.com/nerrad567/gray-logic-operator/internal/retry"
)

// Spec is an ordered list of requests sharing one retry policy.
type Spec struct {
	Requests []operation.Request
	Policy   retry.Policy
}

// NewSpec validates the policy and pairs it with the requests.
func NewSpec(requests []operation.Request, policy retry.Policy) (Spec, error) {
	if err := policy.Validate(); err != nil {
		return Spec{}, err
	}
	return Spec{Requests: requests, Policy: policy}, nil
}

// entry is one operation as written in a batch file.
type entry struct {
	Point  string `json:"point" yaml:"point"`
	Action string `json:"action" yaml:"action"`
	Value  any    `json:"value" yaml:"value"`
}

// document is the object form of a batch file.
type document struct {
	Operations []entry `json:"operations" yaml:"operations"`
}

// Load reads a batch file. Files ending in .json are decoded as JSON,
// everything else as YAML. Every request carries dryRun.
func Load(path string, dryRun bool) ([]operation.Request, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path supplied by the operator
	if err != nil {
		return nil, operation.NewConfigError("batch", "reading %s: %v", path, err)
	}
	isJSON := strings.EqualFold(filepath.Ext(path), ".json")
	return Parse(data, isJSON, dryRun)
}

// Parse decodes batch file contents. Errors are *operation.ConfigError and
// name the offending operation by index.
func Parse(data []byte, isJSON bool, dryRun bool) ([]operation.Request, error) {
	entries, err := decode(data, isJSON)
	if err != nil {
		return nil, err
	}

	requests := make([]operation.Request, 0, len(entries))
	for i, e := range entries {
		req, err := e.request(dryRun)
		if err != nil {
			return nil, entryError(i, err)
		}
		requests = append(requests, req)
	}
	return requests, nil
}

// entryError locates err at operations[i], keeping the field of an inner
// *operation.ConfigError.
func entryError(i int, err error) *operation.ConfigError {
	field := fmt.Sprintf("operations[%d]", i)
	var ce *operation.ConfigError
	if !errors.As(err, &ce) {
		return operation.NewConfigError(field, "%v", err)
	}
	if ce.Field != "" {
		field += "." + ce.Field
	}
	return &operation.ConfigError{Field: field, Reason: ce.Reason}
}

// decode accepts a bare list or an object with an operations key.
func decode(data []byte, isJSON bool) ([]entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if isJSON {
		if trimmed[0] == '[' {
			var list []entry
			if err := json.Unmarshal(trimmed, &list); err != nil {
				return nil, operation.NewConfigError("batch", "invalid JSON: %v", err)
			}
			return list, nil
		}
		var doc document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, operation.NewConfigError("batch", "invalid JSON: %v", err)
		}
		return doc.Operations, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal(trimmed, &node); err != nil {
		return nil, operation.NewConfigError("batch", "invalid YAML: %v", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var list []entry
		if err := root.Decode(&list); err != nil {
			return nil, operation.NewConfigError("batch", "invalid operation list: %v", err)
		}
		return list, nil
	case yaml.MappingNode:
		var doc document
		if err := root.Decode(&doc); err != nil {
			return nil, operation.NewConfigError("operations", "%v", err)
		}
		return doc.Operations, nil
	default:
		return nil, operation.NewConfigError("batch", "must be a list or have an operations list")
	}
}

// request converts a file entry into a validated request.
func (e entry) request(dryRun bool) (operation.Request, error) {
	if strings.TrimSpace(e.Point) == "" {
		return operation.Request{}, operation.NewConfigError("point", "is required")
	}

	action := strings.ToLower(strings.TrimSpace(e.Action))
	if action == "" {
		action = string(operation.KindForce)
	}
	kind, err := operation.ParseKind(action)
	if err != nil {
		return operation.Request{}, err
	}

	value, err := entryValue(e.Value)
	if err != nil {
		return operation.Request{}, err
	}
	return operation.NewRequest(strings.TrimSpace(e.Point), kind, value, dryRun)
}

// entryValue accepts numbers and numeric strings, including decimal commas.
func entryValue(v any) (*float64, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return operation.Float(x), nil
	case int:
		return operation.Float(float64(x)), nil
	case int64:
		return operation.Float(float64(x)), nil
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, nil
		}
		f, err := operation.ParseValue(x)
		if err != nil {
			return nil, operation.NewConfigError("value", "%q: %v", x, err)
		}
		return operation.Float(f), nil
	case bool:
		return nil, operation.NewConfigError("value", "%t is not a number", x)
	default:
		return nil, operation.NewConfigError("value", "%v is not a number", v)
	}
}
