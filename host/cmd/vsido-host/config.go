package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"vsido/host/serial"
	"vsido/protocol"
)

const defaultDevice = "/dev/ttyUSB0"

type fileConfig struct {
	Device          string `toml:"device"`
	Baud            int    `toml:"baud"`
	ReadTimeout     string `toml:"read_timeout"`
	ResponseTimeout string `toml:"response_timeout"`
}

type hostConfig struct {
	serial   *serial.Config
	response time.Duration
}

// loadConfig builds the host configuration from defaults with the
// optional TOML file layered on top. Command-line flags are applied
// by the caller afterwards.
func loadConfig(path string) (hostConfig, error) {
	cfg := hostConfig{
		serial:   serial.DefaultConfig(defaultDevice),
		response: protocol.DefaultResponseTimeout,
	}
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return hostConfig{}, fmt.Errorf("load config: %w", err)
	}

	if meta.IsDefined("device") {
		device := strings.TrimSpace(raw.Device)
		if device != "" {
			cfg.serial.Device = device
		}
	}

	if meta.IsDefined("baud") {
		if raw.Baud <= 0 {
			return hostConfig{}, fmt.Errorf("baud must be positive, got %d", raw.Baud)
		}
		cfg.serial.Baud = raw.Baud
	}

	if meta.IsDefined("read_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ReadTimeout))
		if err != nil {
			return hostConfig{}, fmt.Errorf("parse read_timeout: %w", err)
		}
		if d < time.Millisecond {
			// Sub-millisecond values would truncate to the blocking
			// mode the serial layer forbids.
			return hostConfig{}, fmt.Errorf("read_timeout must be at least 1ms, got %v", d)
		}
		cfg.serial.ReadTimeout = int(d / time.Millisecond)
	}

	if meta.IsDefined("response_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ResponseTimeout))
		if err != nil {
			return hostConfig{}, fmt.Errorf("parse response_timeout: %w", err)
		}
		cfg.response = d
	}

	return cfg, nil
}
