// Package logs reads the daemon log file for `narrativ logs`.
//
// Tail returns either the last N lines (negative offset) or everything written
// after a byte offset, and in follow mode blocks until new lines arrive or the
// wait elapses. Offsets only ever advance past complete lines, so a record that
// is still being written is returned whole on the next call.
package logs
