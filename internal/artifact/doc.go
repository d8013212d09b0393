// Package artifact persists synced recordings and their transcripts to the
// recordings directory with deterministic, timestamp-derived names.
package artifact
