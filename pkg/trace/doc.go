// Package trace records the events of executions.
//
// A Recorder appends every event published on a bus to a ports.TraceStore from
// a bounded queue, off the run's goroutine. The JSONL helpers encode one event per line, the format used by the file store
// and by "arbor run --trace".
package trace
