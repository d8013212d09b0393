package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skorokithakis/middle/internal/metrics"
	"github.com/skorokithakis/middle/internal/pendant"
	"github.com/skorokithakis/middle/internal/transfer"
)

// fakeTransport scripts scan results: each call pops the next entry. When
// the script runs out it cancels the loop's context so tests end promptly.
type fakeTransport struct {
	mu         sync.Mutex
	scans      []scanResult
	connectErr error
	peripheral pendant.Peripheral
	cancel     context.CancelFunc
}

type scanResult struct {
	adv pendant.Advertisement
	err error
}

func (f *fakeTransport) Scan(ctx context.Context, window time.Duration) (pendant.Advertisement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.scans) == 0 {
		if f.cancel != nil {
			f.cancel()
		}
		return pendant.Advertisement{}, pendant.ErrNotFound
	}
	next := f.scans[0]
	f.scans = f.scans[1:]
	return next.adv, next.err
}

func (f *fakeTransport) Connect(ctx context.Context, adv pendant.Advertisement) (pendant.Peripheral, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return f.peripheral, nil
}

// stubPeripheral satisfies the boundary for loop tests; the sync function
// is faked, so only voltage and disconnect are exercised.
type stubPeripheral struct {
	voltage      uint16
	voltageErr   error
	disconnected bool
}

func (s *stubPeripheral) ReadFileCount() (uint16, error)     { return 0, nil }
func (s *stubPeripheral) ReadFileSize() (uint32, error)      { return 0, nil }
func (s *stubPeripheral) WriteCommand(pendant.Command) error { return nil }
func (s *stubPeripheral) SubscribeAudio(func([]byte)) error  { return nil }
func (s *stubPeripheral) UnsubscribeAudio() error            { return nil }

func (s *stubPeripheral) ReadVoltage() (uint16, error) {
	if s.voltageErr != nil {
		return 0, s.voltageErr
	}
	return s.voltage, nil
}

func (s *stubPeripheral) Disconnect() error {
	s.disconnected = true
	return nil
}

func newTestManager(transport pendant.Transport, syncFn SyncFunc) *Manager {
	return NewManager(transport, syncFn,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics.NewMetrics(prometheus.NewRegistry()),
		Config{
			ScanWindow:     time.Millisecond,
			ScanInterval:   time.Millisecond,
			ConnectTimeout: time.Second,
		})
}

func TestRunSyncsWhenFound(t *testing.T) {
	peripheral := &stubPeripheral{voltage: 3850}
	transport := &fakeTransport{
		scans: []scanResult{
			{err: pendant.ErrNotFound},
			{adv: pendant.Advertisement{Name: "VoiceRecorder", Address: "aa:bb"}},
			// The scripted list then runs out, which cancels the loop.
		},
		peripheral: peripheral,
	}

	var calls int
	manager := newTestManager(transport, func(ctx context.Context, p pendant.Peripheral) (transfer.Result, error) {
		calls++
		return transfer.Result{FileCount: 2, Synced: 2}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	transport.cancel = cancel
	manager.Run(ctx)

	if calls != 1 {
		t.Fatalf("Expected 1 sync session, got %d", calls)
	}
	if !peripheral.disconnected {
		t.Error("Expected peripheral to be disconnected after the session")
	}

	stats := manager.Stats()
	if stats.Sessions != 1 || stats.FailedSessions != 0 {
		t.Errorf("Expected 1 clean session, got %+v", stats)
	}
	if stats.RecordingsSynced != 2 {
		t.Errorf("Expected 2 recordings synced, got %d", stats.RecordingsSynced)
	}
	if stats.LastVoltageMV != 3850 {
		t.Errorf("Expected voltage 3850, got %d", stats.LastVoltageMV)
	}
	if stats.LastSessionAt == nil {
		t.Error("Expected last session timestamp")
	}
	if stats.Connected {
		t.Error("Expected connected=false after the session ends")
	}
}

func TestRunSurvivesFailedSession(t *testing.T) {
	transport := &fakeTransport{
		scans: []scanResult{
			{adv: pendant.Advertisement{Name: "VoiceRecorder"}},
			{adv: pendant.Advertisement{Name: "VoiceRecorder"}},
		},
		peripheral: &stubPeripheral{},
	}

	var calls int
	manager := newTestManager(transport, func(ctx context.Context, p pendant.Peripheral) (transfer.Result, error) {
		calls++
		if calls == 1 {
			return transfer.Result{FileCount: 3, Synced: 1}, fmt.Errorf("link lost")
		}
		return transfer.Result{FileCount: 2, Synced: 2}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	transport.cancel = cancel
	manager.Run(ctx)

	if calls != 2 {
		t.Fatalf("A failed session must not stop the loop, got %d sessions", calls)
	}

	stats := manager.Stats()
	if stats.Sessions != 2 || stats.FailedSessions != 1 {
		t.Errorf("Expected 2 sessions with 1 failure, got %+v", stats)
	}
	if stats.RecordingsSynced != 3 {
		t.Errorf("Partial sessions still count synced recordings, got %d", stats.RecordingsSynced)
	}
}

func TestRunSurvivesConnectFailure(t *testing.T) {
	transport := &fakeTransport{
		scans: []scanResult{
			{adv: pendant.Advertisement{Name: "VoiceRecorder"}},
		},
		connectErr: fmt.Errorf("connection refused"),
	}

	manager := newTestManager(transport, func(ctx context.Context, p pendant.Peripheral) (transfer.Result, error) {
		t.Error("Sync must not run when connect fails")
		return transfer.Result{}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	transport.cancel = cancel
	manager.Run(ctx)

	if stats := manager.Stats(); stats.Sessions != 0 {
		t.Errorf("Expected no sessions, got %+v", stats)
	}
}

func TestRunToleratesMissingVoltage(t *testing.T) {
	transport := &fakeTransport{
		scans: []scanResult{
			{adv: pendant.Advertisement{Name: "VoiceRecorder"}},
		},
		peripheral: &stubPeripheral{voltageErr: pendant.ErrVoltageUnsupported},
	}

	manager := newTestManager(transport, func(ctx context.Context, p pendant.Peripheral) (transfer.Result, error) {
		return transfer.Result{}, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	transport.cancel = cancel
	manager.Run(ctx)

	stats := manager.Stats()
	if stats.Sessions != 1 {
		t.Errorf("Missing voltage characteristic must not fail the session, got %+v", stats)
	}
	if stats.LastVoltageMV != 0 {
		t.Errorf("Expected no voltage recorded, got %d", stats.LastVoltageMV)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	transport := &fakeTransport{
		scans: make([]scanResult, 0),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	manager := newTestManager(transport, func(ctx context.Context, p pendant.Peripheral) (transfer.Result, error) {
		return transfer.Result{}, nil
	})

	done := make(chan error, 1)
	go func() { done <- manager.Run(ctx) }()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected context error from Run")
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}
