// Package app composes the catalog runtime used by lamactl.
//
// It opens the event log and projection stores, builds the command and event
// registries, and wires the processor, applier, search cache and relation
// mirror. Every mutating operation is serialized through one writer lock so
// the processor's single-writer contract holds across callers.
package app
