package transfer

// Reassembler accumulates the asynchronous sequence of variable-length
// notification chunks for one transfer attempt. It is owned exclusively by
// the orchestrator goroutine (chunks arrive via a channel handoff, never
// by direct callback mutation) and is discarded, not reused, between
// attempts so a stale delivery can never land in a newer attempt's buffer.
type Reassembler struct {
	data       []byte
	chunkCount int
}

// NewReassembler creates an empty reassembler for one attempt.
func NewReassembler(expectedSize int) *Reassembler {
	capacity := expectedSize
	if capacity < 0 {
		capacity = 0
	}
	return &Reassembler{
		data: make([]byte, 0, capacity),
	}
}

// Append adds one notification chunk. Chunks are never dropped,
// reordered, or duplicated within an attempt.
func (r *Reassembler) Append(chunk []byte) {
	r.data = append(r.data, chunk...)
	r.chunkCount++
}

// Total returns the accumulated byte count. It is monotonically
// non-decreasing within an attempt.
func (r *Reassembler) Total() int {
	return len(r.data)
}

// ChunkCount returns the number of chunks appended.
func (r *Reassembler) ChunkCount() int {
	return r.chunkCount
}

// Snapshot returns the accumulated payload truncated to expectedSize. The
// device pads the final chunk, so the tail past the declared size is
// never retained.
func (r *Reassembler) Snapshot(expectedSize int) []byte {
	if expectedSize < 0 {
		expectedSize = 0
	}
	if expectedSize > len(r.data) {
		expectedSize = len(r.data)
	}
	out := make([]byte, expectedSize)
	copy(out, r.data[:expectedSize])
	return out
}
