package modbusd

import (
	"errors"
	"testing"

	"github.com/simonvetter/modbus"

	"github.com/trafficgrid/sumo-modbus-bridge/internal/logging"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/registers"
)

func newTestHandler(t *testing.T) (*storeHandler, *registers.Store) {
	t.Helper()
	store := registers.NewStore()
	return &storeHandler{store: store, log: logging.Noop()}, store
}

func TestReadInputRegisters(t *testing.T) {
	handler, store := newTestHandler(t)
	if err := store.Set(registers.BankInput, 0, 14); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	if err := store.Set(registers.BankInput, 1, 42); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	values, err := handler.HandleInputRegisters(&modbus.InputRegistersRequest{Addr: 0, Quantity: 3})
	if err != nil {
		t.Fatalf("HandleInputRegisters: %v", err)
	}
	want := []uint16{14, 42, 0}
	for i, v := range want {
		if values[i] != v {
			t.Fatalf("values[%d] = %d, want %d", i, values[i], v)
		}
	}
}

func TestWriteHoldingRegisters(t *testing.T) {
	handler, store := newTestHandler(t)

	_, err := handler.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{
		Addr:     1,
		Quantity: 2,
		IsWrite:  true,
		Args:     []uint16{3, 5},
	})
	if err != nil {
		t.Fatalf("write holding: %v", err)
	}

	for addr, want := range map[uint16]uint16{1: 3, 2: 5} {
		got, err := store.Get(registers.BankHolding, addr)
		if err != nil {
			t.Fatalf("Get holding %d: %v", addr, err)
		}
		if got != want {
			t.Fatalf("holding[%d] = %d, want %d", addr, got, want)
		}
	}
}

func TestReadHoldingRegisters(t *testing.T) {
	handler, store := newTestHandler(t)
	if err := store.Set(registers.BankHolding, 0, 1); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	values, err := handler.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{Addr: 0, Quantity: 1})
	if err != nil {
		t.Fatalf("read holding: %v", err)
	}
	if len(values) != 1 || values[0] != 1 {
		t.Fatalf("values = %v, want [1]", values)
	}
}

func TestOutOfRangeReadRejected(t *testing.T) {
	handler, _ := newTestHandler(t)

	_, err := handler.HandleInputRegisters(&modbus.InputRegistersRequest{Addr: 99, Quantity: 2})
	if !errors.Is(err, modbus.ErrIllegalDataAddress) {
		t.Fatalf("err = %v, want ErrIllegalDataAddress", err)
	}
}

func TestOutOfRangeWriteRejected(t *testing.T) {
	handler, _ := newTestHandler(t)

	_, err := handler.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{
		Addr:     100,
		Quantity: 1,
		IsWrite:  true,
		Args:     []uint16{1},
	})
	if !errors.Is(err, modbus.ErrIllegalDataAddress) {
		t.Fatalf("err = %v, want ErrIllegalDataAddress", err)
	}
}

func TestCoilsRejected(t *testing.T) {
	handler, _ := newTestHandler(t)

	if _, err := handler.HandleCoils(&modbus.CoilsRequest{Addr: 0, Quantity: 1}); !errors.Is(err, modbus.ErrIllegalFunction) {
		t.Fatalf("coils err = %v, want ErrIllegalFunction", err)
	}
	if _, err := handler.HandleDiscreteInputs(&modbus.DiscreteInputsRequest{Addr: 0, Quantity: 1}); !errors.Is(err, modbus.ErrIllegalFunction) {
		t.Fatalf("discrete inputs err = %v, want ErrIllegalFunction", err)
	}
}
