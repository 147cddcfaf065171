package protocol

import "sync/atomic"

// Observer sees the raw bytes of every completed frame in both
// directions. Implementations must not retain the slice past the call.
type Observer interface {
	OnSend(raw []byte)
	OnReceive(raw []byte)
}

// NopObserver ignores all traffic. It is the default when nothing is
// injected.
type NopObserver struct{}

func (NopObserver) OnSend([]byte)    {}
func (NopObserver) OnReceive([]byte) {}

// FrameHandler consumes a complete, checksum-verified non-ACK frame.
type FrameHandler func(*Message)

// Receiver reconstructs frames from a byte stream fed one byte at a
// time. A marker byte resets the accumulation wherever it appears, so
// after line noise or a truncated frame the receiver resynchronizes on
// the next frame start; the partial frame is dropped without error.
//
// Feed is not safe for concurrent use: the receiver is owned by the
// single goroutine that reads the transport.
type Receiver struct {
	buf      []byte
	observer Observer
	handler  FrameHandler
	dropped  uint32
}

// NewReceiver creates a receiver. The observer may be nil; handler is
// called with every valid frame whose opcode is not OpAck.
func NewReceiver(observer Observer, handler FrameHandler) *Receiver {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Receiver{
		buf:      make([]byte, 0, MaxFrameLength),
		observer: observer,
		handler:  handler,
	}
}

// Feed advances the state machine by one received byte.
func (r *Receiver) Feed(b byte) {
	if b == Marker {
		// Resynchronize unconditionally, even mid-frame.
		r.buf = r.buf[:0]
	}
	r.buf = append(r.buf, b)
	if len(r.buf) <= 3 {
		return
	}
	if len(r.buf) != int(r.buf[LengthOffset(r.buf[PositionOpcode])]) {
		if len(r.buf) >= MaxFrameLength {
			// Garbage with a bogus length field can never complete;
			// cap the accumulation and wait for the next marker.
			r.buf = r.buf[:0]
			atomic.AddUint32(&r.dropped, 1)
		}
		return
	}
	msg, err := Parse(r.buf)
	r.buf = r.buf[:0]
	if err != nil {
		// Inbound checksum verification: corrupt frames are dropped,
		// never delivered.
		atomic.AddUint32(&r.dropped, 1)
		return
	}
	r.observer.OnReceive(msg.Raw)
	if msg.Opcode == OpAck {
		// Bare acknowledgements never satisfy a pending request.
		return
	}
	if r.handler != nil {
		r.handler(msg)
	}
}

// Dropped returns how many corrupt or unterminated accumulations have
// been discarded since construction.
func (r *Receiver) Dropped() uint32 {
	return atomic.LoadUint32(&r.dropped)
}
