package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"vsido/protocol"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vsido-host.toml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.serial.Device != defaultDevice {
		t.Fatalf("unexpected device: %q", cfg.serial.Device)
	}
	if cfg.serial.Baud != 115200 {
		t.Fatalf("unexpected baud: %d", cfg.serial.Baud)
	}
	if cfg.serial.ReadTimeout != 100 {
		t.Fatalf("unexpected read timeout: %d", cfg.serial.ReadTimeout)
	}
	if cfg.response != protocol.DefaultResponseTimeout {
		t.Fatalf("unexpected response timeout: %v", cfg.response)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfigFile(t, `
device = "/dev/ttyACM1"
baud = 57600
read_timeout = "250ms"
response_timeout = "3s"
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.serial.Device != "/dev/ttyACM1" {
		t.Fatalf("unexpected device: %q", cfg.serial.Device)
	}
	if cfg.serial.Baud != 57600 {
		t.Fatalf("unexpected baud: %d", cfg.serial.Baud)
	}
	if cfg.serial.ReadTimeout != 250 {
		t.Fatalf("unexpected read timeout: %d", cfg.serial.ReadTimeout)
	}
	if cfg.response != 3*time.Second {
		t.Fatalf("unexpected response timeout: %v", cfg.response)
	}
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfigFile(t, `baud = 9600`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.serial.Baud != 9600 {
		t.Fatalf("unexpected baud: %d", cfg.serial.Baud)
	}
	if cfg.serial.Device != defaultDevice {
		t.Fatalf("unexpected device: %q", cfg.serial.Device)
	}
	if cfg.response != protocol.DefaultResponseTimeout {
		t.Fatalf("unexpected response timeout: %v", cfg.response)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{"zero baud", `baud = 0`},
		{"negative baud", `baud = -115200`},
		{"malformed read timeout", `read_timeout = "soon"`},
		{"negative read timeout", `read_timeout = "-50ms"`},
		{"sub-millisecond read timeout", `read_timeout = "500us"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfigFile(t, tc.contents)
			if _, err := loadConfig(path); err == nil {
				t.Fatalf("expected error for %q", tc.contents)
			}
		})
	}
}
