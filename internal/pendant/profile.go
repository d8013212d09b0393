package pendant

import (
	"encoding/binary"
	"fmt"
)

// GATT profile exposed by the pendant firmware. The service UUID is what
// the pendant advertises; all characteristics live under it.
const (
	ServiceUUID = "19b10000-e8f2-537e-4f6c-d104768a1214"

	// FileCountUUID: read, uint16 little-endian, number of pending recordings.
	FileCountUUID = "19b10001-e8f2-537e-4f6c-d104768a1214"

	// FileInfoUUID: read, uint32 little-endian, declared byte size of the
	// currently-selected recording. Updated by the firmware after a
	// request-next command, asynchronously.
	FileInfoUUID = "19b10002-e8f2-537e-4f6c-d104768a1214"

	// AudioDataUUID: notify, raw bytes, arbitrary chunk length.
	AudioDataUUID = "19b10003-e8f2-537e-4f6c-d104768a1214"

	// CommandUUID: write-only, single command byte.
	CommandUUID = "19b10004-e8f2-537e-4f6c-d104768a1214"

	// VoltageUUID: read, uint16 little-endian millivolts. Absent on older
	// firmware generations.
	VoltageUUID = "19b10005-e8f2-537e-4f6c-d104768a1214"
)

// Command is a single-byte instruction written to the command characteristic.
type Command byte

const (
	// CommandRequestNext selects the next pending recording and starts
	// streaming it over the audio-data characteristic.
	CommandRequestNext Command = 0x01

	// CommandAckReceived confirms the current recording was received in
	// full; the pendant deletes it from flash.
	CommandAckReceived Command = 0x02

	// CommandSyncDone ends the sync session.
	CommandSyncDone Command = 0x03
)

// Expected value sizes for the readable characteristics.
const (
	FileCountSize = 2
	FileInfoSize  = 4
	VoltageSize   = 2
)

// String returns a human-readable name for the command.
func (c Command) String() string {
	switch c {
	case CommandRequestNext:
		return "REQUEST_NEXT"
	case CommandAckReceived:
		return "ACK_RECEIVED"
	case CommandSyncDone:
		return "SYNC_DONE"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", byte(c))
	}
}

// ParseFileCount parses the file-count characteristic value.
func ParseFileCount(data []byte) (uint16, error) {
	if len(data) < FileCountSize {
		return 0, fmt.Errorf("file-count value too short: expected %d bytes, got %d", FileCountSize, len(data))
	}
	return binary.LittleEndian.Uint16(data), nil
}

// ParseFileSize parses the file-info characteristic value: the declared
// byte size of the currently-selected recording.
func ParseFileSize(data []byte) (uint32, error) {
	if len(data) < FileInfoSize {
		return 0, fmt.Errorf("file-info value too short: expected %d bytes, got %d", FileInfoSize, len(data))
	}
	return binary.LittleEndian.Uint32(data), nil
}

// ParseVoltage parses the voltage characteristic value in millivolts.
func ParseVoltage(data []byte) (uint16, error) {
	if len(data) < VoltageSize {
		return 0, fmt.Errorf("voltage value too short: expected %d bytes, got %d", VoltageSize, len(data))
	}
	return binary.LittleEndian.Uint16(data), nil
}
