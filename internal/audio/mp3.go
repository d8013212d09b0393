package audio

import (
	"bytes"
	"fmt"

	lame "github.com/viert/go-lame"
)

// EncoderConfig contains the fixed MP3 encoding parameters. Values are set
// once at construction from configuration; the encoder never inspects the
// payload to choose them.
type EncoderConfig struct {
	SampleRate  int // input PCM sample rate in Hz
	BitrateKbps int // constant output bitrate
	Quality     int // LAME quality, 0 (best) to 9 (worst)
}

// Validate checks the encoder parameters.
func (c EncoderConfig) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.BitrateKbps <= 0 {
		return fmt.Errorf("bitrate must be positive, got %d", c.BitrateKbps)
	}
	if c.Quality < 0 || c.Quality > 9 {
		return fmt.Errorf("quality must be between 0 and 9, got %d", c.Quality)
	}
	return nil
}

// MP3Encoder compresses canonical mono PCM16LE to MP3 via libmp3lame.
type MP3Encoder struct {
	config EncoderConfig
}

// NewMP3Encoder creates an MP3 encoder with fixed parameters.
func NewMP3Encoder(config EncoderConfig) (*MP3Encoder, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder config: %w", err)
	}
	return &MP3Encoder{config: config}, nil
}

// Encode compresses a complete PCM16LE mono buffer into an MP3 byte
// stream. The underlying codec buffers trailing samples internally;
// closing it flushes the final frames, so the returned stream is always
// complete.
func (e *MP3Encoder) Encode(pcm []byte) ([]byte, error) {
	var out bytes.Buffer

	enc := lame.NewEncoder(&out)
	if err := enc.SetNumChannels(1); err != nil {
		return nil, fmt.Errorf("failed to set channel count: %w", err)
	}
	if err := enc.SetInSamplerate(e.config.SampleRate); err != nil {
		return nil, fmt.Errorf("failed to set sample rate: %w", err)
	}
	if err := enc.SetBrate(e.config.BitrateKbps); err != nil {
		return nil, fmt.Errorf("failed to set bitrate: %w", err)
	}
	if err := enc.SetQuality(e.config.Quality); err != nil {
		return nil, fmt.Errorf("failed to set quality: %w", err)
	}

	if _, err := enc.Write(pcm); err != nil {
		enc.Close()
		return nil, fmt.Errorf("mp3 encode failed: %w", err)
	}

	// Close flushes the codec's trailing frames; skipping it would
	// silently truncate the end of the recording.
	enc.Close()

	return out.Bytes(), nil
}
