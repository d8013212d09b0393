// Package pendant defines the pendant's GATT profile and the transport
// boundary the rest of the service programs against.
package pendant
