package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.SumoHost != "sumo" || cfg.SumoPort != 8813 {
		t.Fatalf("unexpected SUMO endpoint: %s:%d", cfg.SumoHost, cfg.SumoPort)
	}
	if cfg.ModbusPort != 5020 {
		t.Fatalf("ModbusPort = %d, want 5020", cfg.ModbusPort)
	}
	if cfg.TickInterval != 50*time.Millisecond {
		t.Fatalf("TickInterval = %s, want 50ms", cfg.TickInterval)
	}
	if cfg.ConnectBackoff != 5*time.Second {
		t.Fatalf("ConnectBackoff = %s, want 5s", cfg.ConnectBackoff)
	}
	if cfg.MaxConnectAttempts != 10 {
		t.Fatalf("MaxConnectAttempts = %d, want 10", cfg.MaxConnectAttempts)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SUMO_HOST", "localhost")
	t.Setenv("SUMO_PORT", "9999")
	t.Setenv("BRIDGE_TICK_INTERVAL", "200ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.SumoAddr(); got != "localhost:9999" {
		t.Fatalf("SumoAddr = %q, want localhost:9999", got)
	}
	if cfg.TickInterval != 200*time.Millisecond {
		t.Fatalf("TickInterval = %s, want 200ms", cfg.TickInterval)
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("MODBUS_PORT", "70000")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range MODBUS_PORT")
	}
}

func TestLoadRejectsZeroTick(t *testing.T) {
	t.Setenv("BRIDGE_TICK_INTERVAL", "0s")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero tick interval")
	}
}

func TestAddrHelpers(t *testing.T) {
	cfg := Config{SumoHost: "sim", SumoPort: 8813, ModbusHost: "0.0.0.0", ModbusPort: 5020}
	if got := cfg.SumoAddr(); got != "sim:8813" {
		t.Fatalf("SumoAddr = %q", got)
	}
	if got := cfg.ModbusAddr(); got != "0.0.0.0:5020" {
		t.Fatalf("ModbusAddr = %q", got)
	}
}
