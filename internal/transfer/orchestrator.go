package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/skorokithakis/middle/internal/artifact"
	"github.com/skorokithakis/middle/internal/audio"
	"github.com/skorokithakis/middle/internal/metrics"
	"github.com/skorokithakis/middle/internal/pendant"
	"github.com/skorokithakis/middle/internal/transcription"
)

// ErrTransferExhausted indicates a recording failed every allowed attempt.
// The session ends rather than skipping ahead, because the device serves
// recordings in order and an unacknowledged one would be served again.
var ErrTransferExhausted = errors.New("transfer attempts exhausted")

// errAckFailed marks an acknowledge write failure after a recording was
// already received and persisted. The session stops but keeps what landed.
var errAckFailed = errors.New("acknowledge write failed")

// Transcriber converts a saved MP3 artifact into text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string, mp3 []byte) (string, error)
}

// Config contains the transfer protocol parameters.
type Config struct {
	// StallTimeout bounds the gap between consecutive chunks.
	StallTimeout time.Duration

	// TotalTimeout bounds one whole attempt, measured from the request.
	TotalTimeout time.Duration

	// MaxAttempts bounds request retries for one recording.
	MaxAttempts int

	// SizePollInterval is the pause between file-size reads while waiting
	// for the device to settle on the selected recording.
	SizePollInterval time.Duration

	// SizeSettleTimeout bounds the size poll; after it elapses the last
	// read value is used as-is.
	SizeSettleTimeout time.Duration
}

// Result summarizes one sync session against a connected pendant.
type Result struct {
	FileCount int
	Synced    int
	Artifacts []artifact.Artifact
}

// Orchestrator drives the per-recording transfer protocol for one
// connected pendant: request, size read, chunk streaming with stall and
// total timeouts, bounded retries, decode, encode, persist, acknowledge.
type Orchestrator struct {
	peripheral  pendant.Peripheral
	decoder     audio.Decoder
	encoder     *audio.MP3Encoder
	store       *artifact.Store
	transcriber Transcriber
	logger      *slog.Logger
	metrics     *metrics.Metrics
	config      Config
}

// NewOrchestrator creates an orchestrator for one connected pendant.
// transcriber may be nil, which disables transcription.
func NewOrchestrator(
	peripheral pendant.Peripheral,
	decoder audio.Decoder,
	encoder *audio.MP3Encoder,
	store *artifact.Store,
	transcriber Transcriber,
	logger *slog.Logger,
	m *metrics.Metrics,
	config Config,
) *Orchestrator {
	return &Orchestrator{
		peripheral:  peripheral,
		decoder:     decoder,
		encoder:     encoder,
		store:       store,
		transcriber: transcriber,
		logger:      logger,
		metrics:     m,
		config:      config,
	}
}

// SyncAll transfers every pending recording in device order. The sync-done
// command is written exactly once on every exit path so the device can
// return to recording mode. A non-nil error means the session ended before
// every pending recording was acknowledged; Result reports what did land.
func (o *Orchestrator) SyncAll(ctx context.Context) (Result, error) {
	var result Result

	count, err := o.peripheral.ReadFileCount()
	if err != nil {
		return result, fmt.Errorf("failed to read file count: %w", err)
	}
	result.FileCount = int(count)

	o.logger.Info("Starting sync session",
		slog.Int("pending_recordings", result.FileCount))

	defer func() {
		if err := o.peripheral.WriteCommand(pendant.CommandSyncDone); err != nil {
			o.logger.Warn("Failed to write sync-done command",
				slog.String("error", err.Error()))
		}
	}()

	for i := 0; i < result.FileCount; i++ {
		a, empty, err := o.syncOne(ctx, i)
		if err != nil {
			// A failed acknowledge degrades to partial success: the
			// artifact is on disk, the device will serve the recording
			// again next session, and what already synced stands.
			if errors.Is(err, errAckFailed) {
				o.logger.Warn("Stopping session after failed acknowledge",
					slog.Int("recording", i),
					slog.Int("synced", result.Synced),
					slog.String("error", err.Error()))
				return result, nil
			}
			return result, fmt.Errorf("recording %d: %w", i, err)
		}
		result.Synced++
		o.metrics.RecordRecordingSynced(empty)
		if !empty {
			result.Artifacts = append(result.Artifacts, a)
		}
	}

	return result, nil
}

// syncOne transfers one recording through to acknowledgement. empty
// reports a zero-size recording that was acknowledged without streaming.
func (o *Orchestrator) syncOne(ctx context.Context, index int) (artifact.Artifact, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= o.config.MaxAttempts; attempt++ {
		o.metrics.RecordTransferAttempt(attempt)
		if attempt > 1 {
			o.logger.Warn("Retrying transfer",
				slog.Int("recording", index),
				slog.Int("attempt", attempt),
				slog.String("reason", lastErr.Error()))
		}

		payload, empty, err := o.runAttempt(ctx, index)
		if err == nil {
			if empty {
				if err := o.acknowledge(index); err != nil {
					return artifact.Artifact{}, false, err
				}
				return artifact.Artifact{}, true, nil
			}
			a, err := o.persist(ctx, index, payload)
			if err != nil {
				return artifact.Artifact{}, false, err
			}
			if err := o.acknowledge(index); err != nil {
				return artifact.Artifact{}, false, err
			}
			o.transcribe(ctx, a)
			return a, false, nil
		}

		var attemptErr *attemptError
		if !errors.As(err, &attemptErr) {
			// Transport and context failures end the session; only
			// protocol timeouts are worth retrying.
			return artifact.Artifact{}, false, err
		}
		lastErr = err
	}

	return artifact.Artifact{}, false, fmt.Errorf("%w after %d attempts: %v",
		ErrTransferExhausted, o.config.MaxAttempts, lastErr)
}

// attemptError marks a retryable attempt failure (stall or total timeout).
type attemptError struct {
	cause string
	total int
}

func (e *attemptError) Error() string {
	return fmt.Sprintf("attempt %s with %d bytes received", e.cause, e.total)
}

// runAttempt performs one request/size/stream cycle. A fresh reassembler
// and channel are used per attempt so chunks from an abandoned attempt can
// never contaminate a later one. On success it returns the raw payload,
// truncated to the declared size.
func (o *Orchestrator) runAttempt(ctx context.Context, index int) ([]byte, bool, error) {
	start := time.Now()

	chunks := make(chan []byte, 256)
	if err := o.peripheral.SubscribeAudio(func(chunk []byte) {
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		chunks <- buf
	}); err != nil {
		return nil, false, fmt.Errorf("failed to subscribe to audio notifications: %w", err)
	}
	defer func() {
		if err := o.peripheral.UnsubscribeAudio(); err != nil {
			o.logger.Warn("Failed to unsubscribe from audio notifications",
				slog.String("error", err.Error()))
		}
	}()

	if err := o.peripheral.WriteCommand(pendant.CommandRequestNext); err != nil {
		return nil, false, fmt.Errorf("failed to request next recording: %w", err)
	}

	size, err := o.settleFileSize(ctx)
	if err != nil {
		return nil, false, err
	}

	o.logger.Info("Recording selected",
		slog.Int("recording", index),
		slog.Int("declared_size", size))

	if size == 0 {
		return nil, true, nil
	}

	reassembler := NewReassembler(size)
	deadline := start.Add(o.config.TotalTimeout)

	for reassembler.Total() < size {
		// The effective wait is whichever budget expires first; when the
		// overall deadline is nearer than the stall window, hitting it is
		// a total timeout, not a stall.
		wait := o.config.StallTimeout
		cause := "stalled"
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
			cause = "timed out"
		}
		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case chunk := <-chunks:
			timer.Stop()
			reassembler.Append(chunk)
			o.metrics.RecordChunk(len(chunk))
		case <-timer.C:
			if cause == "stalled" {
				o.metrics.RecordTransferStall()
			} else {
				o.metrics.RecordTransferTimeout()
			}
			o.logger.Warn("Transfer attempt abandoned",
				slog.Int("recording", index),
				slog.String("cause", cause),
				slog.Int("received", reassembler.Total()),
				slog.Int("declared_size", size))
			return nil, false, &attemptError{cause: cause, total: reassembler.Total()}
		case <-ctx.Done():
			timer.Stop()
			return nil, false, ctx.Err()
		}
	}

	elapsed := time.Since(start)
	o.metrics.RecordTransferComplete(elapsed.Seconds())
	o.logger.Info("Transfer complete",
		slog.Int("recording", index),
		slog.Int("chunks", reassembler.ChunkCount()),
		slog.Int("bytes", size),
		slog.Duration("elapsed", elapsed),
		slog.Float64("throughput_kbps", float64(size)/1024/elapsed.Seconds()))

	return reassembler.Snapshot(size), false, nil
}

// settleFileSize polls the file-size characteristic until two consecutive
// reads agree, which tolerates reading mid-update while the device selects
// the recording. If the settle deadline passes first, the last read wins.
func (o *Orchestrator) settleFileSize(ctx context.Context) (int, error) {
	deadline := time.Now().Add(o.config.SizeSettleTimeout)

	last, err := o.peripheral.ReadFileSize()
	if err != nil {
		return 0, fmt.Errorf("failed to read file size: %w", err)
	}

	for time.Now().Before(deadline) {
		select {
		case <-time.After(o.config.SizePollInterval):
		case <-ctx.Done():
			return 0, ctx.Err()
		}

		size, err := o.peripheral.ReadFileSize()
		if err != nil {
			return 0, fmt.Errorf("failed to read file size: %w", err)
		}
		if size == last {
			return int(size), nil
		}
		last = size
	}

	return int(last), nil
}

// persist decodes, encodes, and stores one received recording.
func (o *Orchestrator) persist(ctx context.Context, index int, payload []byte) (artifact.Artifact, error) {
	pcm, err := o.decoder.Decode(payload)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to decode audio: %w", err)
	}

	mp3, err := o.encoder.Encode(pcm)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to encode mp3: %w", err)
	}

	a, err := o.store.Save(time.Now(), index, mp3)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("failed to save artifact: %w", err)
	}
	o.metrics.RecordArtifact(a.Bytes)

	o.logger.Info("Artifact saved",
		slog.String("path", a.Path),
		slog.Int("bytes", a.Bytes))

	return a, nil
}

// acknowledge confirms receipt so the device advances to the next
// recording and frees the acknowledged one.
func (o *Orchestrator) acknowledge(index int) error {
	if err := o.peripheral.WriteCommand(pendant.CommandAckReceived); err != nil {
		return fmt.Errorf("%w for recording %d: %v", errAckFailed, index, err)
	}
	return nil
}

// transcribe sends the artifact for transcription. Failures never fail
// the sync: the audio is already safe on disk. An authentication failure
// disables transcription for the remainder of the session.
func (o *Orchestrator) transcribe(ctx context.Context, a artifact.Artifact) {
	if o.transcriber == nil {
		return
	}

	mp3, err := os.ReadFile(a.Path)
	if err != nil {
		o.logger.Error("Failed to read artifact for transcription",
			slog.String("path", a.Path),
			slog.String("error", err.Error()))
		return
	}

	text, err := o.transcriber.Transcribe(ctx, a.Path, mp3)
	if err != nil {
		if errors.Is(err, transcription.ErrAuthentication) {
			o.logger.Error("Transcription credential rejected, disabling for this session",
				slog.String("error", err.Error()))
			o.transcriber = nil
			return
		}
		o.logger.Error("Transcription failed",
			slog.String("path", a.Path),
			slog.String("error", err.Error()))
		return
	}

	path, err := o.store.SaveTranscript(a, text)
	if err != nil {
		o.logger.Error("Failed to save transcript",
			slog.String("path", a.Path),
			slog.String("error", err.Error()))
		return
	}

	o.logger.Info("Transcript saved",
		slog.String("path", path),
		slog.Int("characters", len(text)))
}
