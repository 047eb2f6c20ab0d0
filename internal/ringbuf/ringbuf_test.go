package ringbuf

import (
	"bytes"
	"testing"
)

func frameBytes(payload []byte) []byte {
	out := make([]byte, 2+len(payload))
	out[0] = byte(len(payload) >> 8)
	out[1] = byte(len(payload))
	copy(out[2:], payload)
	return out
}

func TestFramePartial(t *testing.T) {
	var b Buffer
	full := frameBytes([]byte("hello"))
	b.Append(full[:4]) // Not enough for the 5 byte payload yet
	if _, ok := b.Frame(); ok {
		t.Fatal("expected no frame on partial data")
	}
	b.Append(full[4:])
	payload, ok := b.Frame()
	if !ok || !bytes.Equal(payload, []byte("hello")) {
		t.Fatalf("expected complete frame 'hello', got %q ok=%v", payload, ok)
	}
}

func TestFrameMultipleAndCompaction(t *testing.T) {
	var b Buffer
	b.Append(frameBytes([]byte("one")))
	b.Append(frameBytes([]byte("two")))

	p1, ok := b.Frame()
	if !ok || string(p1) != "one" {
		t.Fatalf("first frame wrong: %q", p1)
	}
	p2, ok := b.Frame()
	if !ok || string(p2) != "two" {
		t.Fatalf("second frame wrong: %q", p2)
	}
	if b.Len() != 0 {
		t.Fatalf("expected buffer fully consumed, Len=%d", b.Len())
	}
	b.Grow(16) // Should compact the fully-consumed buffer back to zero length
	if len(b.buf) != 0 {
		t.Fatalf("expected compaction to drop fully-skipped bytes, len=%d", len(b.buf))
	}
}
