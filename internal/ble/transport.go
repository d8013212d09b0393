package ble

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/skorokithakis/middle/internal/pendant"
)

// Transport implements pendant.Transport on top of the host adapter.
type Transport struct {
	adapter    *bluetooth.Adapter
	deviceName string
	logger     *slog.Logger

	serviceUUID bluetooth.UUID
	charUUIDs   map[string]bluetooth.UUID

	// lastAddress is the radio address of the most recent scan hit; the
	// string form in Advertisement is for humans, not for dialing.
	lastAddress bluetooth.Address
}

// NewTransport enables the default host adapter and prepares the UUID set.
// deviceName further filters scan results; empty matches any device that
// advertises the service.
func NewTransport(deviceName string, logger *slog.Logger) (*Transport, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable bluetooth adapter: %w", err)
	}

	t := &Transport{
		adapter:    adapter,
		deviceName: deviceName,
		logger:     logger,
		charUUIDs:  make(map[string]bluetooth.UUID),
	}

	var err error
	if t.serviceUUID, err = bluetooth.ParseUUID(pendant.ServiceUUID); err != nil {
		return nil, fmt.Errorf("failed to parse service uuid: %w", err)
	}
	for _, raw := range []string{
		pendant.FileCountUUID,
		pendant.FileInfoUUID,
		pendant.AudioDataUUID,
		pendant.CommandUUID,
		pendant.VoltageUUID,
	} {
		uuid, err := bluetooth.ParseUUID(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse characteristic uuid %s: %w", raw, err)
		}
		t.charUUIDs[raw] = uuid
	}

	return t, nil
}

// Scan listens for one window and returns the first advertisement that
// carries the pendant service (and matches the configured name, if set).
func (t *Transport) Scan(ctx context.Context, window time.Duration) (pendant.Advertisement, error) {
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	type hit struct {
		adv  pendant.Advertisement
		addr bluetooth.Address
	}
	found := make(chan hit, 1)

	go func() {
		err := t.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !result.HasServiceUUID(t.serviceUUID) {
				return
			}
			if t.deviceName != "" && result.LocalName() != t.deviceName {
				return
			}
			select {
			case found <- hit{
				adv: pendant.Advertisement{
					Name:    result.LocalName(),
					Address: result.Address.String(),
				},
				addr: result.Address,
			}:
			default:
			}
			adapter.StopScan()
		})
		if err != nil {
			t.logger.Debug("Scan ended",
				slog.String("error", err.Error()))
		}
	}()

	select {
	case h := <-found:
		t.lastAddress = h.addr
		return h.adv, nil
	case <-ctx.Done():
		t.adapter.StopScan()
		if ctx.Err() == context.DeadlineExceeded {
			return pendant.Advertisement{}, pendant.ErrNotFound
		}
		return pendant.Advertisement{}, ctx.Err()
	}
}

// Connect opens the link and resolves the pendant's GATT profile.
func (t *Transport) Connect(ctx context.Context, adv pendant.Advertisement) (pendant.Peripheral, error) {
	timeout := time.Minute
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	device, err := t.adapter.Connect(t.lastAddress, bluetooth.ConnectionParams{
		ConnectionTimeout: bluetooth.NewDuration(timeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", adv.Address, err)
	}

	p, err := t.resolveProfile(device)
	if err != nil {
		device.Disconnect()
		return nil, err
	}

	t.logger.Info("Connected",
		slog.String("address", adv.Address))
	return p, nil
}

// resolveProfile discovers the pendant service and its characteristics.
// The voltage characteristic is optional; everything else is required.
func (t *Transport) resolveProfile(device bluetooth.Device) (*peripheral, error) {
	services, err := device.DiscoverServices([]bluetooth.UUID{t.serviceUUID})
	if err != nil {
		return nil, fmt.Errorf("failed to discover pendant service: %w", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("pendant service not found")
	}

	chars, err := services[0].DiscoverCharacteristics(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover characteristics: %w", err)
	}

	p := &peripheral{device: device}
	for _, char := range chars {
		switch char.UUID() {
		case t.charUUIDs[pendant.FileCountUUID]:
			p.fileCount = &char
		case t.charUUIDs[pendant.FileInfoUUID]:
			p.fileInfo = &char
		case t.charUUIDs[pendant.AudioDataUUID]:
			p.audioData = &char
		case t.charUUIDs[pendant.CommandUUID]:
			p.command = &char
		case t.charUUIDs[pendant.VoltageUUID]:
			p.voltage = &char
		}
	}

	for name, char := range map[string]*bluetooth.DeviceCharacteristic{
		"file-count": p.fileCount,
		"file-info":  p.fileInfo,
		"audio-data": p.audioData,
		"command":    p.command,
	} {
		if char == nil {
			return nil, fmt.Errorf("required characteristic %s not found", name)
		}
	}

	return p, nil
}

// peripheral implements pendant.Peripheral over resolved characteristics.
type peripheral struct {
	device    bluetooth.Device
	fileCount *bluetooth.DeviceCharacteristic
	fileInfo  *bluetooth.DeviceCharacteristic
	audioData *bluetooth.DeviceCharacteristic
	command   *bluetooth.DeviceCharacteristic
	voltage   *bluetooth.DeviceCharacteristic
}

func (p *peripheral) ReadFileCount() (uint16, error) {
	buf := make([]byte, pendant.FileCountSize)
	n, err := p.fileCount.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("failed to read file count: %w", err)
	}
	return pendant.ParseFileCount(buf[:n])
}

func (p *peripheral) ReadFileSize() (uint32, error) {
	buf := make([]byte, pendant.FileInfoSize)
	n, err := p.fileInfo.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("failed to read file size: %w", err)
	}
	return pendant.ParseFileSize(buf[:n])
}

func (p *peripheral) ReadVoltage() (uint16, error) {
	if p.voltage == nil {
		return 0, pendant.ErrVoltageUnsupported
	}
	buf := make([]byte, pendant.VoltageSize)
	n, err := p.voltage.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("failed to read voltage: %w", err)
	}
	return pendant.ParseVoltage(buf[:n])
}

func (p *peripheral) WriteCommand(cmd pendant.Command) error {
	if _, err := p.command.WriteWithoutResponse([]byte{byte(cmd)}); err != nil {
		return fmt.Errorf("failed to write command %s: %w", cmd, err)
	}
	return nil
}

func (p *peripheral) SubscribeAudio(fn func(chunk []byte)) error {
	if err := p.audioData.EnableNotifications(fn); err != nil {
		return fmt.Errorf("failed to enable audio notifications: %w", err)
	}
	return nil
}

func (p *peripheral) UnsubscribeAudio() error {
	if err := p.audioData.EnableNotifications(nil); err != nil {
		return fmt.Errorf("failed to disable audio notifications: %w", err)
	}
	return nil
}

func (p *peripheral) Disconnect() error {
	return p.device.Disconnect()
}
