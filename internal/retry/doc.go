// Package retry wraps single operation attempts with linear backoff.
//
// Engine.Run calls an injected execute function (normally
// console.Executor.Execute) up to Policy.MaxAttempts times. After every
// failed attempt it captures a screenshot reference from the session and,
// if attempts remain, waits BackoffBase × attempt before trying again:
// 2s, 4s, 6s with the default policy. Every attempt is appended to the
// action log, and the engine records a span and counters per run.
//
// Operation failures never become Go errors here. Run always returns the
// final outcome with Attempt set to the attempt that produced it.
package retry
