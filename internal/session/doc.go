// Package session runs the long-lived device loop: scan for an advertising
// pendant, connect, drive one sync session, disconnect, resume scanning.
// It owns the service's view of sync history for the status endpoint.
package session
