package pendant

import (
	"context"
	"errors"
	"time"
)

// ErrVoltageUnsupported is returned by ReadVoltage when the connected
// firmware generation does not expose the voltage characteristic.
var ErrVoltageUnsupported = errors.New("voltage characteristic not present on this firmware")

// ErrNotFound is returned by Scan when no pendant advertised the service
// within the scan window.
var ErrNotFound = errors.New("no pendant found")

// Advertisement identifies a discovered pendant.
type Advertisement struct {
	Name    string
	Address string
}

// Peripheral is the boundary to one connected pendant. Implementations own
// the underlying link; all methods are called from a single goroutine
// except the audio callback, which the transport invokes from its own
// delivery context.
type Peripheral interface {
	// ReadFileCount reads the number of pending recordings.
	ReadFileCount() (uint16, error)

	// ReadFileSize reads the declared byte size of the currently-selected
	// recording.
	ReadFileSize() (uint32, error)

	// ReadVoltage reads the battery voltage in millivolts. Returns
	// ErrVoltageUnsupported on firmware without the characteristic.
	ReadVoltage() (uint16, error)

	// WriteCommand writes a single command byte with response.
	WriteCommand(cmd Command) error

	// SubscribeAudio enables audio-data notifications, delivering each
	// chunk to fn. At most one subscription may be active at a time.
	SubscribeAudio(fn func(chunk []byte)) error

	// UnsubscribeAudio disables audio-data notifications. Must be called
	// before a new subscription is installed and before disconnect.
	UnsubscribeAudio() error

	// Disconnect tears down the connection.
	Disconnect() error
}

// Transport discovers and connects to pendants. The session manager uses
// it to run the scan/connect loop without knowing the radio stack.
type Transport interface {
	// Scan blocks until a pendant advertising the service is found, the
	// scan window elapses (ErrNotFound), or ctx is cancelled.
	Scan(ctx context.Context, window time.Duration) (Advertisement, error)

	// Connect opens a connection to a discovered pendant and resolves its
	// GATT profile.
	Connect(ctx context.Context, adv Advertisement) (Peripheral, error)
}
