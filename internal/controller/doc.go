// Package controller implements the unattended control loop.
//
// Each cycle the controller senses a set of readings, evaluates its rules
// in configuration order, drops candidates whose point acted within the
// cooldown window, and submits the rest one at a time through the retry
// engine on a single console session. A rule looks like:
//
//	rules:
//	  - metric: relative_humidity
//	    comparison: ">="
//	    threshold: 60
//	    point: 360.005-JV40_Pos
//	    action: force
//	    value: 80
//
// The value may also be an expression over the triggering reading, for
// example "reading - 2".
//
// Loop states:
//
//	Idle → Evaluating → Acting → Sleeping → Evaluating ...
//
// Stop is context cancellation. It is observed between cycles, during the
// sleep, and between submissions; a submission in flight always completes.
//
// Cooldown state lives in a CooldownTable owned by the caller of Step, so
// tests drive the loop with synthetic timestamps.
package controller
