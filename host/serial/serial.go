package serial

import (
	"io"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - Loopback/mock serial (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate (115200 for V-Sido CONNECT)
	Baud int

	// Read timeout in milliseconds. Must be non-zero: the receiver
	// goroutine polls its stop flag between reads, so a fully
	// blocking read would stall disconnect.
	ReadTimeout int
}

// DefaultConfig returns the standard configuration for a V-Sido
// CONNECT board.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200, // Standard V-Sido CONNECT baud rate
		ReadTimeout: 100,    // 100ms read timeout
	}
}
