// Package ble adapts the host Bluetooth stack to the pendant boundary. It
// is the only package that imports the radio library; everything above it
// talks to the pendant.Transport and pendant.Peripheral interfaces, which
// keeps the protocol and session logic testable without hardware.
package ble
