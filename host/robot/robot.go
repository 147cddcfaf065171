// Package robot provides a client for a V-Sido CONNECT humanoid
// controller board spoken to over a serial link.
package robot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"vsido/host/serial"
	"vsido/protocol"
)

// VIDVersion is the board variable holding the firmware version.
const VIDVersion = 254

// Robot represents a connection to a V-Sido CONNECT board. Requests
// are strictly sequential; the transport serializes callers.
type Robot struct {
	transport *protocol.Transport
	port      serial.Port
	log       zerolog.Logger

	firmwareVersion int
	connected       bool
}

// New creates a Robot instance (not yet connected). Wire traffic is
// logged at debug level through the supplied logger.
func New(log zerolog.Logger) *Robot {
	return &Robot{
		log:             log,
		firmwareVersion: -1,
	}
}

// Connect opens the serial device and starts the receiver goroutine.
func (r *Robot) Connect(device string) error {
	return r.ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig connects to a board with a custom serial config.
func (r *Robot) ConnectWithConfig(cfg *serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	r.attach(port)

	// The board answers a version query once it has booted. A quiet
	// board is still usable for fire-and-forget commands, so a missed
	// answer is logged rather than fatal.
	version, err := r.GetVIDVersion(5 * time.Second)
	if err != nil {
		r.log.Warn().Err(err).Msg("firmware version query failed")
		return nil
	}
	r.firmwareVersion = version
	r.log.Info().Int("version", version).Str("device", cfg.Device).Msg("connected")
	return nil
}

// attach wires an already open port. Split out so tests can run the
// client against an in-memory port.
func (r *Robot) attach(port serial.Port) {
	r.port = port
	r.transport = protocol.NewTransport(port, wireLogger{log: r.log})
	r.connected = true
}

// Close stops the receiver goroutine and closes the serial port.
func (r *Robot) Close() error {
	if !r.connected {
		return protocol.ErrTransportClosed
	}
	r.connected = false
	r.firmwareVersion = -1
	return r.transport.Close()
}

// IsConnected returns whether the board is connected.
func (r *Robot) IsConnected() bool {
	return r.connected
}

// FirmwareVersion returns the version retrieved at connect time, or -1
// if the board never answered.
func (r *Robot) FirmwareVersion() int {
	return r.firmwareVersion
}

// send builds a frame and writes it without waiting for a reply.
func (r *Robot) send(opcode byte, payload []byte) error {
	if !r.connected {
		return protocol.ErrTransportClosed
	}
	frame, err := protocol.Build(opcode, payload)
	if err != nil {
		return err
	}
	return r.transport.Send(frame)
}

// query builds a frame, writes it, and waits for the matching reply.
// The response must echo the request opcode; anything else is a
// malformed exchange. A timeout of zero waits indefinitely.
func (r *Robot) query(opcode byte, payload []byte, timeout time.Duration) (*protocol.Message, error) {
	if !r.connected {
		return nil, protocol.ErrTransportClosed
	}
	frame, err := protocol.Build(opcode, payload)
	if err != nil {
		return nil, err
	}
	msg, err := r.transport.SendAndWait(frame, timeout)
	if err != nil {
		return nil, err
	}
	if msg.Opcode != opcode {
		return nil, fmt.Errorf("%w: expected response opcode 0x%02x, got 0x%02x",
			protocol.ErrMalformedFrame, opcode, msg.Opcode)
	}
	return msg, nil
}
