package protocol

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// mockPort is an in-memory serial port: frames queued on in become
// readable, writes are recorded and announced on writes. A read with
// nothing queued times out with io.EOF the way a serial read timeout
// does.
type mockPort struct {
	mu        sync.Mutex
	wrote     bytes.Buffer
	in        chan []byte
	writes    chan []byte
	pending   []byte
	readErr   error
	closed    chan struct{}
	closeOnce sync.Once
}

func newMockPort() *mockPort {
	return &mockPort{
		in:     make(chan []byte, 16),
		writes: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (p *mockPort) Read(b []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.pending) == 0 {
		select {
		case data := <-p.in:
			p.pending = data
		case <-p.closed:
			return 0, errors.New("port closed")
		case <-time.After(10 * time.Millisecond):
			return 0, io.EOF
		}
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *mockPort) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, errors.New("port closed")
	default:
	}
	p.mu.Lock()
	p.wrote.Write(b)
	p.mu.Unlock()
	p.writes <- append([]byte(nil), b...)
	return len(b), nil
}

func (p *mockPort) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *mockPort) written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.wrote.Bytes()...)
}

func mustBuild(t *testing.T, opcode byte, payload []byte) []byte {
	t.Helper()
	frame, err := Build(opcode, payload)
	if err != nil {
		t.Fatalf("Build(0x%02x) failed: %v", opcode, err)
	}
	return frame
}

func TestTransportSendAndWait(t *testing.T) {
	port := newMockPort()
	tr := NewTransport(port, nil)
	defer tr.Close()

	request := mustBuild(t, OpGetVID, []byte{254})
	response := mustBuild(t, OpGetVID, []byte{42})

	go func() {
		<-port.writes
		port.in <- response
	}()

	msg, err := tr.SendAndWait(request, time.Second)
	if err != nil {
		t.Fatalf("SendAndWait failed: %v", err)
	}
	if msg.Opcode != OpGetVID {
		t.Errorf("expected opcode 0x%02x, got 0x%02x", OpGetVID, msg.Opcode)
	}
	if !bytes.Equal(msg.Payload, []byte{42}) {
		t.Errorf("unexpected payload %v", msg.Payload)
	}
	if !bytes.Equal(port.written(), request) {
		t.Errorf("request bytes not written to port")
	}
}

func TestTransportAckNeverSatisfiesRequest(t *testing.T) {
	port := newMockPort()
	tr := NewTransport(port, nil)
	defer tr.Close()

	request := mustBuild(t, OpServoInfo, []byte{3, 1, 2})
	response := mustBuild(t, OpServoInfo, []byte{3, 0x01, 0x02})

	go func() {
		<-port.writes
		// The board acknowledges first, then answers.
		port.in <- mustBuild(t, OpAck, nil)
		port.in <- response
	}()

	msg, err := tr.SendAndWait(request, time.Second)
	if err != nil {
		t.Fatalf("SendAndWait failed: %v", err)
	}
	if msg.Opcode != OpServoInfo {
		t.Errorf("expected opcode 0x%02x, got 0x%02x", OpServoInfo, msg.Opcode)
	}
}

func TestTransportTimeout(t *testing.T) {
	port := newMockPort()
	tr := NewTransport(port, nil)
	defer tr.Close()

	request := mustBuild(t, OpGetVID, []byte{254})

	go func() {
		<-port.writes
		// Only an ACK arrives; it must not count as a response.
		port.in <- mustBuild(t, OpAck, nil)
	}()

	start := time.Now()
	_, err := tr.SendAndWait(request, 100*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed < 100*time.Millisecond {
		t.Errorf("timed out early: %v", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestTransportWaitWithoutDeadline(t *testing.T) {
	port := newMockPort()
	tr := NewTransport(port, nil)
	defer tr.Close()

	request := mustBuild(t, OpGetVID, []byte{254})
	response := mustBuild(t, OpGetVID, []byte{42})

	// The answer arrives well after the default deadline; a zero
	// timeout must keep waiting instead of expiring.
	go func() {
		<-port.writes
		time.Sleep(DefaultResponseTimeout + 200*time.Millisecond)
		port.in <- response
	}()

	msg, err := tr.SendAndWait(request, 0)
	if err != nil {
		t.Fatalf("SendAndWait failed: %v", err)
	}
	if msg.Opcode != OpGetVID || !bytes.Equal(msg.Payload, []byte{42}) {
		t.Errorf("unexpected response %+v", msg)
	}
}

func TestTransportSendFireAndForget(t *testing.T) {
	port := newMockPort()
	tr := NewTransport(port, nil)
	defer tr.Close()

	frame := mustBuild(t, OpWalk, []byte{0x00, 0x02, 200, 100})
	if err := tr.Send(frame); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !bytes.Equal(port.written(), frame) {
		t.Errorf("frame bytes not written to port")
	}
}

func TestTransportClosed(t *testing.T) {
	port := newMockPort()
	tr := NewTransport(port, nil)

	if err := tr.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	frame := mustBuild(t, OpWriteFlash, nil)
	if err := tr.Send(frame); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("expected ErrTransportClosed from Send, got %v", err)
	}
	if _, err := tr.SendAndWait(frame, time.Second); !errors.Is(err, ErrTransportClosed) {
		t.Errorf("expected ErrTransportClosed from SendAndWait, got %v", err)
	}
}

func TestTransportReadFault(t *testing.T) {
	port := newMockPort()
	port.readErr = errors.New("device unplugged")
	tr := NewTransport(port, nil)
	defer tr.Close()

	frame := mustBuild(t, OpGetVID, []byte{254})
	_, err := tr.SendAndWait(frame, time.Second)
	if !errors.Is(err, ErrTransportClosed) {
		t.Errorf("expected ErrTransportClosed after read fault, got %v", err)
	}
}

func TestTransportObserver(t *testing.T) {
	port := newMockPort()
	obs := &recordingObserver{}
	tr := NewTransport(port, obs)
	defer tr.Close()

	request := mustBuild(t, OpGetVID, []byte{6})
	response := mustBuild(t, OpGetVID, []byte{0x0E})

	go func() {
		<-port.writes
		port.in <- mustBuild(t, OpAck, nil)
		port.in <- response
	}()

	if _, err := tr.SendAndWait(request, time.Second); err != nil {
		t.Fatalf("SendAndWait failed: %v", err)
	}

	if len(obs.sent) != 1 || !bytes.Equal(obs.sent[0], request) {
		t.Errorf("observer did not see sent frame")
	}
	// Both the ACK and the response are observed.
	if len(obs.received) != 2 {
		t.Errorf("expected 2 observed inbound frames, got %d", len(obs.received))
	}
}
