// Package modbusd exposes the register store as a Modbus TCP slave.
//
// The input bank answers function code 04 (read input registers) and the
// holding bank answers 03/06/16 (read and write holding registers). Coil
// and discrete-input requests are rejected: every data point on this
// device is a 16-bit register.
package modbusd

import (
	"context"
	"fmt"
	"time"

	"github.com/simonvetter/modbus"

	"github.com/trafficgrid/sumo-modbus-bridge/internal/logging"
	"github.com/trafficgrid/sumo-modbus-bridge/internal/registers"
)

// Server wraps a Modbus TCP listener backed by a register store.
type Server struct {
	inner *modbus.ModbusServer
	log   logging.Logger
	addr  string
}

// NewServer builds a Modbus TCP server listening on addr (host:port) and
// serving reads and writes out of store.
func NewServer(addr string, store *registers.Store, log logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.Noop()
	}

	handler := &storeHandler{store: store, log: log}
	inner, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        "tcp://" + addr,
		Timeout:    30 * time.Second,
		MaxClients: 5,
	}, handler)
	if err != nil {
		return nil, fmt.Errorf("create modbus server: %w", err)
	}

	return &Server{inner: inner, log: log, addr: addr}, nil
}

// Start begins accepting Modbus TCP connections. It returns once the
// listener is up; request handling happens on background goroutines.
func (s *Server) Start(ctx context.Context) error {
	if err := s.inner.Start(); err != nil {
		return fmt.Errorf("start modbus server: %w", err)
	}
	s.log.Info(ctx, "modbus server listening", logging.String("addr", s.addr))
	return nil
}

// Stop closes the listener and all client connections.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.inner.Stop(); err != nil {
		return fmt.Errorf("stop modbus server: %w", err)
	}
	s.log.Info(ctx, "modbus server stopped")
	return nil
}

// storeHandler adapts a registers.Store to the modbus request interface.
type storeHandler struct {
	store *registers.Store
	log   logging.Logger
}

func (h *storeHandler) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *storeHandler) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *storeHandler) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	return h.read(registers.BankInput, req.Addr, req.Quantity)
}

func (h *storeHandler) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if !req.IsWrite {
		return h.read(registers.BankHolding, req.Addr, req.Quantity)
	}

	for i, value := range req.Args {
		addr := req.Addr + uint16(i)
		if err := h.store.Set(registers.BankHolding, addr, value); err != nil {
			return nil, modbus.ErrIllegalDataAddress
		}
		h.log.Debug(context.Background(), "holding register written",
			logging.Int("address", int(addr)),
			logging.Int("value", int(value)),
		)
	}
	return nil, nil
}

func (h *storeHandler) read(bank registers.Bank, addr, quantity uint16) ([]uint16, error) {
	values := make([]uint16, 0, quantity)
	for i := uint16(0); i < quantity; i++ {
		value, err := h.store.Get(bank, addr+i)
		if err != nil {
			return nil, modbus.ErrIllegalDataAddress
		}
		values = append(values, value)
	}
	return values, nil
}
