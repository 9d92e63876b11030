// Package actionlog records every operation attempt the operator makes.
//
// A Record is one line of history: which point, which action, whether it
// succeeded, what value was observed and where the failure screenshot went.
// Records are appended through the Log interface; several sinks exist and are
// combined with Multi:
//
//   - FileLog: append-only JSON Lines file (one record per line)
//   - SQLiteLog: action_records table, queryable with List
//   - MQTTLog: publishes each record to {prefix}/action/{point}
//   - InfluxLog: writes an operator_actions point per record
//
// Append is safe for concurrent use on every sink.
package actionlog
