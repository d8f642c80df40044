package conn_test

import (
	"sync"
	"testing"

	"github.com/sabouaram/peerlink/conn"
	"github.com/sabouaram/peerlink/message"
	"github.com/sabouaram/peerlink/transport"
	"github.com/sabouaram/peerlink/wire"
)

// fakeTransport records every datagram sent to a given endpoint, with no
// actual network I/O, so Connection logic can be tested deterministically.
type fakeTransport struct {
	mu   sync.Mutex
	sent map[transport.Endpoint][][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(map[transport.Endpoint][][]byte)}
}

func (f *fakeTransport) Start(int) error  { return nil }
func (f *fakeTransport) Shutdown() error  { return nil }
func (f *fakeTransport) Poll() error      { return nil }
func (f *fakeTransport) Close(transport.Endpoint) error { return nil }

func (f *fakeTransport) Send(ep transport.Endpoint, b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), b...)
	f.sent[ep] = append(f.sent[ep], cp)
	return nil
}

func (f *fakeTransport) LocalEndpoint() transport.Endpoint { return transport.Endpoint{} }
func (f *fakeTransport) SetOnData(func([]byte, transport.Endpoint))         {}
func (f *fakeTransport) SetOnConnected(func(transport.Endpoint))            {}
func (f *fakeTransport) SetOnDisconnected(func(transport.Endpoint, error))  {}

func (f *fakeTransport) last(ep transport.Endpoint) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.sent[ep]
	if len(l) == 0 {
		return nil
	}
	return l[len(l)-1]
}

func (f *fakeTransport) count(ep transport.Endpoint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent[ep])
}

func newTestConnection() (*conn.Connection, *fakeTransport, transport.Endpoint) {
	ep := transport.NewEndpoint("127.0.0.1", 9000, "")
	tr := newFakeTransport()
	pool := message.NewPool(message.DefaultBufferSize)
	c := conn.New(ep, pool, tr, nil, 5000, 1000)
	c.SetState(conn.Connected)
	return c, tr, ep
}

func TestReliableDeliveryAndDuplicateSuppression(t *testing.T) {
	c, _, _ := newTestConnection()

	var delivered [][]byte
	c.OnMessage = func(payload []byte, reliable bool) {
		delivered = append(delivered, append([]byte(nil), payload...))
	}

	if deliver, err := c.HandleReliable(0, 0, []byte("a")); err != nil || !deliver {
		t.Fatalf("expected delivery of seq 0, got deliver=%v err=%v", deliver, err)
	}
	if deliver, err := c.HandleReliable(10, 0, []byte("a")); err != nil || deliver {
		t.Fatalf("expected duplicate seq 0 to be suppressed, got deliver=%v err=%v", deliver, err)
	}
	if deliver, err := c.HandleReliable(20, 1, []byte("b")); err != nil || !deliver {
		t.Fatalf("expected delivery of seq 1, got deliver=%v err=%v", deliver, err)
	}
	if len(delivered) != 2 {
		t.Fatalf("expected 2 delivered payloads, got %d", len(delivered))
	}
}

func TestReliableSequenceWraparound(t *testing.T) {
	c, _, _ := newTestConnection()

	if deliver, err := c.HandleReliable(0, 65534, []byte("w")); err != nil || !deliver {
		t.Fatalf("expected delivery of seq 65534, got deliver=%v err=%v", deliver, err)
	}
	if deliver, err := c.HandleReliable(5, 65535, []byte("x")); err != nil || !deliver {
		t.Fatalf("expected delivery of seq 65535, got deliver=%v err=%v", deliver, err)
	}
	// 0 is one past 65535 with 16-bit wraparound: diff == 1, must deliver.
	if deliver, err := c.HandleReliable(10, 0, []byte("y")); err != nil || !deliver {
		t.Fatalf("expected delivery of wrapped seq 0, got deliver=%v err=%v", deliver, err)
	}
	// Replaying 65535 now sits at diff == -1 and must be suppressed as a dup.
	if deliver, err := c.HandleReliable(20, 65535, []byte("x")); err != nil || deliver {
		t.Fatalf("expected wrapped seq 65535 replay to be suppressed, got deliver=%v err=%v", deliver, err)
	}
}

func TestReliableExactlyWindowBoundary(t *testing.T) {
	c, _, _ := newTestConnection()

	if deliver, _ := c.HandleReliable(0, 100, nil); !deliver {
		t.Fatalf("expected delivery of seq 100")
	}
	// diff == -16 is the oldest sequence still inside the tracked bitfield.
	if deliver, _ := c.HandleReliable(10, 84, nil); !deliver {
		t.Fatalf("expected seq 84 (diff -16) to be within window and delivered")
	}
	// diff == -17 is one past the window and must be dropped outright.
	if deliver, _ := c.HandleReliable(20, 83, nil); deliver {
		t.Fatalf("expected seq 83 (diff -17) to be treated as too old")
	}
}

func TestAckClearsPendingAndSamplesRTT(t *testing.T) {
	c, tr, ep := newTestConnection()

	seq, err := c.SendReliable(1000, []byte("hello"))
	if err != nil {
		t.Fatalf("SendReliable: %v", err)
	}
	if c.PendingCount() != 1 {
		t.Fatalf("expected 1 pending ack, got %d", c.PendingCount())
	}

	c.HandleAck(1050, seq, 0)
	if c.PendingCount() != 0 {
		t.Fatalf("expected pendingAcks cleared after ack, got %d", c.PendingCount())
	}
	if c.SmoothedRTT() != 50 {
		t.Fatalf("expected first RTT sample to seed smoothedRtt at 50, got %v", c.SmoothedRTT())
	}
	if tr.count(ep) != 1 {
		t.Fatalf("expected exactly one datagram sent for SendReliable, got %d", tr.count(ep))
	}
}

func TestHeartbeatEchoDoesNotPingPong(t *testing.T) {
	c, tr, ep := newTestConnection()

	// A heartbeat we did not originate must be echoed back once.
	if err := c.HandleHeartbeat(500, 123); err != nil {
		t.Fatalf("HandleHeartbeat: %v", err)
	}
	if tr.count(ep) != 1 {
		t.Fatalf("expected one echo datagram, got %d", tr.count(ep))
	}
	echoed := tr.last(ep)
	h, err := wire.PeekHeader(mustWrap(echoed))
	if err != nil || h != wire.Heartbeat {
		t.Fatalf("expected echoed Heartbeat frame, got %v %v", h, err)
	}

	// Our own ping goes out on the heartbeat interval; its echo coming back
	// must be absorbed, not echoed a second time.
	c.Tick(1000)
	if tr.count(ep) != 2 {
		t.Fatalf("expected our own heartbeat ping to be sent, got %d datagrams", tr.count(ep))
	}
	if err := c.HandleHeartbeat(1010, 1000); err != nil {
		t.Fatalf("HandleHeartbeat: %v", err)
	}
	if tr.count(ep) != 2 {
		t.Fatalf("expected the echo of our own ping not to be echoed again, got %d datagrams", tr.count(ep))
	}
}

func mustWrap(b []byte) message.Message {
	pool := message.NewPool(message.DefaultBufferSize)
	return pool.Wrap(b)
}

func TestRetransmitAfterTimeout(t *testing.T) {
	c, tr, ep := newTestConnection()

	if _, err := c.SendReliable(0, []byte("retry-me")); err != nil {
		t.Fatalf("SendReliable: %v", err)
	}
	if tr.count(ep) != 1 {
		t.Fatalf("expected 1 send before tick, got %d", tr.count(ep))
	}

	// Below the 50ms floor: no retransmission yet.
	c.Tick(40)
	if tr.count(ep) != 1 {
		t.Fatalf("expected no retransmit before RTO elapses, got %d sends", tr.count(ep))
	}

	c.Tick(60)
	if tr.count(ep) != 2 {
		t.Fatalf("expected retransmit once RTO elapses, got %d sends", tr.count(ep))
	}
}

func TestTimeoutDisconnectsIdleConnection(t *testing.T) {
	c, _, _ := newTestConnection()
	c.Touch(0)

	var fired bool
	var reason wire.DisconnectReason
	c.OnDisconnected = func(r wire.DisconnectReason, payload []byte) {
		fired = true
		reason = r
	}

	c.Tick(4000)
	if fired {
		t.Fatalf("did not expect a timeout disconnect before timeoutMs elapses")
	}
	if c.State() != conn.Connected {
		t.Fatalf("expected state to remain connected at 4000ms, got %v", c.State())
	}

	c.Tick(5001)
	if !fired {
		t.Fatalf("expected OnDisconnected to fire once the idle timeout elapses")
	}
	if reason != wire.DisconnectTimedOut {
		t.Fatalf("expected DisconnectTimedOut, got %v", reason)
	}
	if c.State() != conn.Disconnected {
		t.Fatalf("expected state Disconnected after timeout, got %v", c.State())
	}
}
