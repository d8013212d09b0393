package transfer

import (
	"bytes"
	"testing"
)

func TestReassemblerAppend(t *testing.T) {
	r := NewReassembler(100)

	if r.Total() != 0 {
		t.Errorf("Expected empty reassembler, got %d bytes", r.Total())
	}
	if r.ChunkCount() != 0 {
		t.Errorf("Expected zero chunks, got %d", r.ChunkCount())
	}

	r.Append([]byte{1, 2, 3})
	r.Append([]byte{4, 5})
	r.Append(nil)

	if r.Total() != 5 {
		t.Errorf("Expected 5 bytes, got %d", r.Total())
	}
	if r.ChunkCount() != 3 {
		t.Errorf("Expected 3 chunks, got %d", r.ChunkCount())
	}
}

func TestReassemblerTotalMonotonic(t *testing.T) {
	r := NewReassembler(0)

	prev := 0
	for i := 0; i < 20; i++ {
		r.Append(make([]byte, i%4))
		if r.Total() < prev {
			t.Fatalf("Total decreased from %d to %d", prev, r.Total())
		}
		prev = r.Total()
	}
}

func TestReassemblerSnapshotTruncates(t *testing.T) {
	r := NewReassembler(4)
	r.Append([]byte{1, 2, 3})
	r.Append([]byte{4, 5, 6}) // final chunk overruns the declared size

	got := r.Snapshot(4)
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("Expected truncation to declared size, got %v", got)
	}
}

func TestReassemblerSnapshotShort(t *testing.T) {
	r := NewReassembler(10)
	r.Append([]byte{1, 2})

	got := r.Snapshot(10)
	if !bytes.Equal(got, []byte{1, 2}) {
		t.Errorf("Expected snapshot of accumulated bytes only, got %v", got)
	}
}

func TestReassemblerSnapshotCopies(t *testing.T) {
	r := NewReassembler(2)
	r.Append([]byte{1, 2})

	snap := r.Snapshot(2)
	snap[0] = 99

	again := r.Snapshot(2)
	if again[0] != 1 {
		t.Error("Snapshot must not alias the internal buffer")
	}
}
