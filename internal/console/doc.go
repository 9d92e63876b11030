// Package console drives single point operations against the
// building-management web console.
//
// The package has two halves:
//
//   - Session, the capability contract a UI session must satisfy (navigate
//     home, locate a point, open its dialog, read, enter a value, release,
//     confirm, dismiss, capture a screenshot). The chromedp implementation
//     lives in the browser sub-package; consoletest provides an in-memory
//     fake.
//   - Executor, which runs exactly one attempt of an operation as an explicit
//     state machine:
//
//	Locate → OpenDialog → Act → Confirm → Verify → Done
//	   └──────────┴──────────┴──────┴─────────→ Failed
//
// Each state owns the timeout and the failure kind it can produce, so a
// DialogTimeout can only come from OpenDialog and a ConfirmTimeout only from
// Confirm.
//
// # Concurrency
//
// A Session holds shared UI state (only one dialog can be open at once) and
// must never be used by two executions concurrently. Executor itself is
// stateless and safe to share.
package console
