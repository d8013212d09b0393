// Package server implements the HTTP monitoring endpoints: health,
// sync status, and Prometheus metrics.
package server
