// Package operation defines the vocabulary shared by every layer of the
// operator: control points, operation requests, outcomes, and the failure
// taxonomy attached to unsuccessful outcomes.
//
// A Request describes what should happen to one point (force, unforce or
// read). An Outcome describes what happened on one attempt. Outcomes are
// values: the With* helpers return modified copies and never alter the
// receiver, so an Outcome handed to the action log cannot change afterwards.
//
// # Validation
//
// Requests built through NewRequest are always valid: a value is present if
// and only if the kind is Force. Invalid input yields a *ConfigError, which
// matches ErrConfig via errors.Is:
//
//	req, err := operation.NewRequest("360.005-JV40_Pos", operation.KindForce, nil, false)
//	if errors.Is(err, operation.ErrConfig) {
//	    // rejected before any UI interaction
//	}
package operation
