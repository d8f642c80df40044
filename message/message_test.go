package message_test

import (
	"testing"

	"github.com/sabouaram/peerlink/message"
)

func TestWriteReadRoundTrip(t *testing.T) {
	pool := message.NewPool(message.DefaultBufferSize)
	m := pool.Acquire()

	if err := m.WriteByte(0x0A); err != nil {
		t.Fatalf("WriteByte: %v", err)
	}
	if err := m.WriteUint16(0xBEEF); err != nil {
		t.Fatalf("WriteUint16: %v", err)
	}
	if err := m.WriteBytes([]byte{0xDE, 0xAD}); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}

	m.Rewind()
	b, err := m.ReadByte()
	if err != nil || b != 0x0A {
		t.Fatalf("ReadByte = %v, %v", b, err)
	}
	u, err := m.ReadUint16()
	if err != nil || u != 0xBEEF {
		t.Fatalf("ReadUint16 = %v, %v", u, err)
	}
	rest, err := m.ReadBytes(2)
	if err != nil || rest[0] != 0xDE || rest[1] != 0xAD {
		t.Fatalf("ReadBytes = %v, %v", rest, err)
	}
	if m.Remaining() != 0 {
		t.Fatalf("expected no bytes remaining")
	}

	m.Release()
}

func TestReadPastEndErrors(t *testing.T) {
	pool := message.NewPool(message.DefaultBufferSize)
	m := pool.Acquire()
	if _, err := m.ReadByte(); err != message.ErrOutOfRange {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}

func TestDoubleReleaseIsIdempotent(t *testing.T) {
	pool := message.NewPool(message.DefaultBufferSize)
	m := pool.Acquire()
	m.Release()
	m.Release() // must not panic

	if _, err := m.ReadByte(); err != message.ErrReleased {
		t.Fatalf("expected ErrReleased after release, got %v", err)
	}
}

func TestPoolHighWaterMark(t *testing.T) {
	pool := message.NewPool(message.DefaultBufferSize)
	a := pool.Acquire()
	b := pool.Acquire()
	if pool.Live() != 2 {
		t.Fatalf("expected 2 live messages")
	}
	a.Release()
	b.Release()
	if pool.HighWater() != 2 {
		t.Fatalf("expected high-water mark of 2, got %d", pool.HighWater())
	}
	if pool.Live() != 0 {
		t.Fatalf("expected 0 live after release")
	}
}
