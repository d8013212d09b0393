package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/skorokithakis/middle/internal/metrics"
	"github.com/skorokithakis/middle/internal/pendant"
	"github.com/skorokithakis/middle/internal/transfer"
)

// SyncFunc runs one sync session against a connected pendant.
type SyncFunc func(ctx context.Context, p pendant.Peripheral) (transfer.Result, error)

// Config contains the device loop parameters.
type Config struct {
	// ScanWindow is how long one scan attempt listens for advertisements.
	ScanWindow time.Duration

	// ScanInterval is the pause between scan attempts.
	ScanInterval time.Duration

	// ConnectTimeout bounds connection establishment and service discovery.
	ConnectTimeout time.Duration
}

// Stats is a point-in-time snapshot of the device loop for the status
// endpoint.
type Stats struct {
	Scans            int        `json:"scans"`
	Sessions         int        `json:"sessions"`
	FailedSessions   int        `json:"failed_sessions"`
	RecordingsSynced int        `json:"recordings_synced"`
	LastSessionAt    *time.Time `json:"last_session_at,omitempty"`
	LastVoltageMV    int        `json:"last_voltage_mv,omitempty"`
	Connected        bool       `json:"connected"`
}

// Manager owns the scan/connect/sync loop for one pendant.
type Manager struct {
	transport pendant.Transport
	sync      SyncFunc
	logger    *slog.Logger
	metrics   *metrics.Metrics
	config    Config

	mu    sync.Mutex
	stats Stats
}

// NewManager creates a device loop manager.
func NewManager(transport pendant.Transport, syncFn SyncFunc, logger *slog.Logger, m *metrics.Metrics, config Config) *Manager {
	return &Manager{
		transport: transport,
		sync:      syncFn,
		logger:    logger,
		metrics:   m,
		config:    config,
	}
}

// Run loops until ctx is cancelled. A failed session never stops the loop;
// the pendant retains unacknowledged recordings and will be found again on
// a later scan.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("Starting device loop",
		slog.Duration("scan_window", m.config.ScanWindow),
		slog.Duration("scan_interval", m.config.ScanInterval))

	misses := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		adv, err := m.scanOnce(ctx)
		if err != nil {
			if errors.Is(err, pendant.ErrNotFound) {
				misses++
				if misses%10 == 0 {
					m.logger.Info("Still scanning for pendant",
						slog.Int("scans", misses))
				}
			} else if !errors.Is(err, context.Canceled) {
				m.logger.Warn("Scan failed",
					slog.String("error", err.Error()))
			}

			select {
			case <-time.After(m.config.ScanInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		misses = 0

		m.runSession(ctx, adv)

		select {
		case <-time.After(m.config.ScanInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) scanOnce(ctx context.Context) (pendant.Advertisement, error) {
	m.metrics.RecordScan()
	m.mu.Lock()
	m.stats.Scans++
	m.mu.Unlock()

	return m.transport.Scan(ctx, m.config.ScanWindow)
}

// runSession connects, syncs, and disconnects. Errors are absorbed here:
// they end the session, not the loop.
func (m *Manager) runSession(ctx context.Context, adv pendant.Advertisement) {
	m.logger.Info("Pendant found",
		slog.String("name", adv.Name),
		slog.String("address", adv.Address))

	connectCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	peripheral, err := m.transport.Connect(connectCtx, adv)
	cancel()
	if err != nil {
		m.metrics.RecordConnectionFailure()
		m.logger.Warn("Connection failed",
			slog.String("address", adv.Address),
			slog.String("error", err.Error()))
		return
	}
	m.metrics.RecordConnection()

	m.setConnected(true)
	defer func() {
		m.setConnected(false)
		if err := peripheral.Disconnect(); err != nil {
			m.logger.Warn("Disconnect failed",
				slog.String("error", err.Error()))
		}
	}()

	m.readVoltage(peripheral)

	start := time.Now()
	result, err := m.sync(ctx, peripheral)
	elapsed := time.Since(start)

	m.mu.Lock()
	m.stats.Sessions++
	if err != nil {
		m.stats.FailedSessions++
	}
	m.stats.RecordingsSynced += result.Synced
	now := time.Now()
	m.stats.LastSessionAt = &now
	m.mu.Unlock()
	m.metrics.RecordSession(elapsed.Seconds())

	if err != nil {
		m.logger.Error("Sync session ended with error",
			slog.Int("synced", result.Synced),
			slog.Int("pending", result.FileCount),
			slog.Duration("elapsed", elapsed),
			slog.String("error", err.Error()))
		return
	}

	m.logger.Info("Sync session complete",
		slog.Int("synced", result.Synced),
		slog.Int("artifacts", len(result.Artifacts)),
		slog.Duration("elapsed", elapsed))
}

// readVoltage records battery voltage when the firmware exposes it. Older
// firmware without the characteristic is not an error.
func (m *Manager) readVoltage(p pendant.Peripheral) {
	mv, err := p.ReadVoltage()
	if err != nil {
		if !errors.Is(err, pendant.ErrVoltageUnsupported) {
			m.logger.Warn("Failed to read battery voltage",
				slog.String("error", err.Error()))
		}
		return
	}

	m.mu.Lock()
	m.stats.LastVoltageMV = int(mv)
	m.mu.Unlock()

	m.logger.Info("Battery voltage",
		slog.String("voltage", fmt.Sprintf("%.2fV", float64(mv)/1000)))
}

func (m *Manager) setConnected(connected bool) {
	m.mu.Lock()
	m.stats.Connected = connected
	m.mu.Unlock()
}

// Stats returns a snapshot of the loop's counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}
