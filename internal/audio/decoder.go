package audio

import (
	"encoding/binary"
	"fmt"
)

// Encoding identifies the pendant's raw on-flash sample encoding. It is
// fixed per firmware generation and configured, never detected from the
// payload.
type Encoding string

const (
	// EncodingPCM8 is flat unsigned 8-bit mono samples.
	EncodingPCM8 Encoding = "pcm8"

	// EncodingADPCM is a 4-byte little-endian sample-count header followed
	// by packed IMA-ADPCM nibbles, low nibble first.
	EncodingADPCM Encoding = "adpcm"
)

// Decoder converts a raw recording payload into canonical signed 16-bit
// little-endian mono PCM. Implementations are pure and safe for reuse
// across recordings.
type Decoder interface {
	Decode(payload []byte) ([]byte, error)
	Encoding() Encoding
}

// NewDecoder returns the decoder for the configured encoding.
func NewDecoder(encoding Encoding) (Decoder, error) {
	switch encoding {
	case EncodingPCM8:
		return PCM8Decoder{}, nil
	case EncodingADPCM:
		return ADPCMDecoder{}, nil
	default:
		return nil, fmt.Errorf("unknown audio encoding %q", encoding)
	}
}

// PCM8Decoder decodes flat unsigned 8-bit mono samples. Each sample is
// centered on zero and widened to 16 bits: (s - 128) << 8.
type PCM8Decoder struct{}

// Encoding returns EncodingPCM8.
func (PCM8Decoder) Encoding() Encoding { return EncodingPCM8 }

// Decode converts unsigned 8-bit samples to PCM16LE. Output is always
// exactly twice the input length.
func (PCM8Decoder) Decode(payload []byte) ([]byte, error) {
	pcm := make([]byte, len(payload)*2)
	for i, s := range payload {
		sample := int16(int(s)-128) << 8
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
	}
	return pcm, nil
}

// ADPCMDecoder decodes the pendant's IMA-ADPCM payload. The payload starts
// with a 4-byte little-endian sample count, then packed 4-bit nibbles, two
// samples per byte, low nibble first. The decoder state starts at
// predictor 0, step index 0 and must match the hardware encoder bit for
// bit.
type ADPCMDecoder struct{}

// Encoding returns EncodingADPCM.
func (ADPCMDecoder) Encoding() Encoding { return EncodingADPCM }

// imaStepTable is the standard 89-entry IMA ADPCM step-size table.
var imaStepTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17,
	19, 21, 23, 25, 28, 31, 34, 37, 41, 45,
	50, 55, 60, 66, 73, 80, 88, 97, 107, 118,
	130, 143, 157, 173, 190, 209, 230, 253, 279, 307,
	337, 371, 408, 449, 494, 544, 598, 658, 724, 796,
	876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066,
	2272, 2499, 2749, 3024, 3327, 3660, 4026, 4428, 4871, 5358,
	5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

// imaIndexTable is the step-index adjustment per nibble value.
var imaIndexTable = [16]int32{
	-1, -1, -1, -1, 2, 4, 6, 8,
	-1, -1, -1, -1, 2, 4, 6, 8,
}

// Decode converts an ADPCM payload to PCM16LE. Output holds exactly
// sample_count samples, or fewer if the payload runs out of nibbles first;
// samples are never fabricated on underrun. Bytes beyond the nibbles
// needed for sample_count are ignored.
func (ADPCMDecoder) Decode(payload []byte) ([]byte, error) {
	if len(payload) < 4 {
		return nil, fmt.Errorf("adpcm payload too short: expected 4-byte header, got %d bytes", len(payload))
	}

	sampleCount := int(binary.LittleEndian.Uint32(payload))
	nibbles := payload[4:]

	available := len(nibbles) * 2
	if sampleCount > available {
		sampleCount = available
	}

	var predictor int32
	var stepIndex int32
	pcm := make([]byte, 0, sampleCount*2)

	for i := 0; i < sampleCount; i++ {
		b := nibbles[i/2]
		var nibble int32
		if i%2 == 0 {
			nibble = int32(b & 0x0f)
		} else {
			nibble = int32(b >> 4)
		}

		step := imaStepTable[stepIndex]
		delta := step >> 3
		if nibble&4 != 0 {
			delta += step
		}
		if nibble&2 != 0 {
			delta += step >> 1
		}
		if nibble&1 != 0 {
			delta += step >> 2
		}

		if nibble&8 != 0 {
			predictor -= delta
		} else {
			predictor += delta
		}

		if predictor > 32767 {
			predictor = 32767
		} else if predictor < -32768 {
			predictor = -32768
		}

		stepIndex += imaIndexTable[nibble]
		if stepIndex < 0 {
			stepIndex = 0
		} else if stepIndex > 88 {
			stepIndex = 88
		}

		pcm = append(pcm, byte(uint16(predictor)), byte(uint16(predictor)>>8))
	}

	return pcm, nil
}
