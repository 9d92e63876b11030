// Package bulkread reads a fixed list of console points in parallel and
// repeats the read on a schedule.
//
// Reader.ReadAll fans the points out over N workers. Every worker opens its
// own console session, since a session drives one browser page and must not
// be shared. Each point is read through the retry engine as a plain Read
// request, so failed reads leave the same action history as any other
// operation.
//
// A Snapshot holds one reading per point plus the mean value of the
// temperature, humidity and pressure categories.
//
// Scheduler runs ReadAll every interval (one hour by default). It appends
// each snapshot to a JSON Lines file, writes point values and averages to
// InfluxDB when a writer is configured, and records a bulk_read entry in the
// action log. A failed cycle is logged and the next one runs on time.
package bulkread
