package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultResponseTimeout is the per-request wait applied when callers
// pass no explicit deadline.
const DefaultResponseTimeout = time.Second

// Transport drives a V-Sido CONNECT byte stream from the host side: it
// writes finalized frames and runs a background read loop that feeds
// the Receiver and parks complete non-ACK frames in a single response
// slot.
//
// The protocol carries no request identifiers, so requests are
// strictly sequential: a send mutex serializes callers and the next
// non-ACK frame received after a request is taken as its response.
type Transport struct {
	port     io.ReadWriteCloser
	receiver *Receiver
	observer Observer

	// Single-slot mailbox between the read loop and a blocked caller.
	response chan *Message

	sendMu sync.Mutex

	stopped   chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once

	errMu   sync.Mutex
	readErr error
}

// NewTransport wraps an open port and starts the background read loop.
// The observer may be nil. The transport owns exclusive read access to
// the port from this point until Close.
func NewTransport(port io.ReadWriteCloser, observer Observer) *Transport {
	if observer == nil {
		observer = NopObserver{}
	}
	t := &Transport{
		port:     port,
		observer: observer,
		response: make(chan *Message, 1),
		stopped:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	t.receiver = NewReceiver(observer, t.handleFrame)
	go t.readLoop()
	return t
}

// Send writes a finalized frame without waiting for any response.
func (t *Transport) Send(frame []byte) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return t.write(frame)
}

// SendAndWait writes frame and blocks until the read loop delivers the
// next non-ACK frame, or timeout elapses. A timeout of zero waits
// indefinitely. Callers are serialized by the send mutex; overlapping
// requests cannot be correlated and must not be issued.
func (t *Transport) SendAndWait(frame []byte, timeout time.Duration) (*Message, error) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	// Clear any stale response left over from a previous exchange.
	select {
	case <-t.response:
	default:
	}

	if err := t.write(frame); err != nil {
		return nil, err
	}

	var expire <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expire = timer.C
	}

	select {
	case msg := <-t.response:
		return msg, nil
	case <-expire:
		return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-t.stopped:
		return nil, t.closedErr()
	}
}

// Dropped returns how many corrupt frames the read loop has discarded.
func (t *Transport) Dropped() uint32 {
	return t.receiver.Dropped()
}

// Close stops the read loop and closes the underlying port. It is safe
// to call more than once.
func (t *Transport) Close() error {
	t.stop()
	var err error
	t.closeOnce.Do(func() {
		// Closing the port unblocks any Read in flight.
		err = t.port.Close()
	})
	<-t.done
	return err
}

func (t *Transport) stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

func (t *Transport) write(frame []byte) error {
	select {
	case <-t.stopped:
		return t.closedErr()
	default:
	}
	if _, err := t.port.Write(frame); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	t.observer.OnSend(frame)
	return nil
}

// handleFrame runs on the read loop goroutine, the slot's only
// producer. The slot holds the latest unconsumed frame: an unclaimed
// response is overwritten rather than queued.
func (t *Transport) handleFrame(msg *Message) {
	select {
	case <-t.response:
	default:
	}
	t.response <- msg
}

// readLoop owns the port's read side from construction until Close.
// The stop flag is polled between reads; the port's read timeout
// bounds how long a poll can lag.
func (t *Transport) readLoop() {
	defer close(t.done)
	buf := make([]byte, 64)
	for {
		select {
		case <-t.stopped:
			return
		default:
		}
		n, err := t.port.Read(buf)
		for _, b := range buf[:n] {
			t.receiver.Feed(b)
		}
		if err != nil {
			select {
			case <-t.stopped:
				return
			default:
			}
			if errors.Is(err, io.EOF) {
				// A serial read timeout surfaces as EOF; keep
				// polling until stopped.
				continue
			}
			// Transport fault: remember it for blocked callers and
			// shut the read side down.
			t.errMu.Lock()
			t.readErr = err
			t.errMu.Unlock()
			t.stop()
			return
		}
	}
}

func (t *Transport) closedErr() error {
	t.errMu.Lock()
	defer t.errMu.Unlock()
	if t.readErr != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, t.readErr)
	}
	return ErrTransportClosed
}
