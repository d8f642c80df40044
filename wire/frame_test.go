package wire_test

import (
	"bytes"
	"testing"

	"github.com/sabouaram/peerlink/message"
	"github.com/sabouaram/peerlink/wire"
)

func TestReliableRoundTrip(t *testing.T) {
	pool := message.NewPool(message.DefaultBufferSize)
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	m := wire.EncodeReliable(pool, 42, payload)
	defer m.Release()

	h, err := wire.PeekHeader(m)
	if err != nil || h != wire.Reliable {
		t.Fatalf("expected Reliable header, got %v, %v", h, err)
	}

	seq, got, err := wire.DecodeReliable(m)
	if err != nil {
		t.Fatalf("DecodeReliable: %v", err)
	}
	if seq != 42 {
		t.Fatalf("expected seq 42, got %d", seq)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("expected %v, got %v", payload, got)
	}
}

func TestAckRoundTrip(t *testing.T) {
	pool := message.NewPool(message.DefaultBufferSize)
	m := wire.EncodeAck(pool, 1000, 0xBEEF)
	defer m.Release()

	seq, bitfield, err := wire.DecodeAck(m)
	if err != nil {
		t.Fatalf("DecodeAck: %v", err)
	}
	if seq != 1000 || bitfield != 0xBEEF {
		t.Fatalf("unexpected ack fields: %d %x", seq, bitfield)
	}
}

func TestRejectCustomPayload(t *testing.T) {
	pool := message.NewPool(message.DefaultBufferSize)
	m := wire.EncodeReject(pool, wire.RejectCustom, []byte("bye"))
	defer m.Release()

	reason, payload, err := wire.DecodeReject(m)
	if err != nil {
		t.Fatalf("DecodeReject: %v", err)
	}
	if reason != wire.RejectCustom || string(payload) != "bye" {
		t.Fatalf("unexpected reject fields: %v %q", reason, payload)
	}
}

func TestRejectServerFullHasNoPayload(t *testing.T) {
	pool := message.NewPool(message.DefaultBufferSize)
	m := wire.EncodeReject(pool, wire.RejectServerFull, nil)
	defer m.Release()

	reason, payload, err := wire.DecodeReject(m)
	if err != nil {
		t.Fatalf("DecodeReject: %v", err)
	}
	if reason != wire.RejectServerFull || len(payload) != 0 {
		t.Fatalf("expected no payload for server-full reject, got %q", payload)
	}
}

func TestWelcomeRoundTrip(t *testing.T) {
	pool := message.NewPool(message.DefaultBufferSize)
	m := wire.EncodeWelcome(pool, 7)
	defer m.Release()

	id, err := wire.DecodeWelcome(m)
	if err != nil || id != 7 {
		t.Fatalf("expected client id 7, got %d, %v", id, err)
	}
}

func TestHeartbeatRoundTrip(t *testing.T) {
	pool := message.NewPool(message.DefaultBufferSize)
	m := wire.EncodeHeartbeat(pool, 1234567890123)
	defer m.Release()

	ts, err := wire.DecodeHeartbeat(m)
	if err != nil || ts != 1234567890123 {
		t.Fatalf("expected timestamp 1234567890123, got %d, %v", ts, err)
	}
}

func TestDisconnectKickedPayload(t *testing.T) {
	pool := message.NewPool(message.DefaultBufferSize)
	m := wire.EncodeDisconnect(pool, wire.DisconnectKicked, []byte{0x01})
	defer m.Release()

	reason, payload, err := wire.DecodeDisconnect(m)
	if err != nil {
		t.Fatalf("DecodeDisconnect: %v", err)
	}
	if reason != wire.DisconnectKicked || !bytes.Equal(payload, []byte{0x01}) {
		t.Fatalf("unexpected disconnect fields: %v %v", reason, payload)
	}
}

func TestClientConnectedRoundTrip(t *testing.T) {
	pool := message.NewPool(message.DefaultBufferSize)
	m := wire.EncodeClientChanged(pool, wire.ClientConnected, 3)
	defer m.Release()

	id, err := wire.DecodeClientChanged(m)
	if err != nil || id != 3 {
		t.Fatalf("expected peer id 3, got %d, %v", id, err)
	}
}

func TestUnreliableEmptyPayload(t *testing.T) {
	pool := message.NewPool(message.DefaultBufferSize)
	m := wire.EncodeUnreliable(pool, nil)
	defer m.Release()

	payload, err := wire.DecodeUnreliable(m)
	if err != nil || len(payload) != 0 {
		t.Fatalf("expected empty payload, got %v, %v", payload, err)
	}
}
