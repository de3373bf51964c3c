// Package engine turns catalog commands into logged events.
//
// A command is checked against the projection, given its identifiers and
// prior state, and turned into an event of the current version. The event is
// schema checked and applied to the projection before it is appended to the
// log, so the log never holds an event that failed to apply.
package engine
