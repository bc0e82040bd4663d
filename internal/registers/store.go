// Package registers holds the in-memory register banks shared between the
// sync engine and the Modbus front end.
package registers

import (
	"errors"
	"fmt"
	"sync"
)

// BankSize is the fixed capacity of each register bank.
const BankSize = 100

// ErrOutOfRange reports an address beyond the bank capacity. This is a
// programming or configuration error, never expected at runtime.
var ErrOutOfRange = errors.New("register address out of range")

// Bank selects one of the two register banks.
type Bank int

const (
	// BankInput is the read-only bank mirroring simulation state.
	BankInput Bank = iota
	// BankHolding is the read-write bank carrying operator commands.
	BankHolding
)

func (b Bank) String() string {
	switch b {
	case BankInput:
		return "input"
	case BankHolding:
		return "holding"
	default:
		return fmt.Sprintf("bank(%d)", int(b))
	}
}

// Store is a thread-safe mapping from (bank, address) to a 16-bit value.
// A single coarse lock covers both banks; access volume is bounded by the
// tick rate plus remote polling, so contention is not a concern. Addresses
// not present in the catalog are legal storage and read as zero until
// written.
type Store struct {
	mu      sync.RWMutex
	input   [BankSize]uint16
	holding [BankSize]uint16
}

// NewStore allocates a store with both banks zeroed.
func NewStore() *Store {
	return &Store{}
}

// Get returns the value at addr in the given bank.
func (s *Store) Get(bank Bank, addr uint16) (uint16, error) {
	if addr >= BankSize {
		return 0, fmt.Errorf("get %s[%d]: %w", bank, addr, ErrOutOfRange)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cells(bank)[addr], nil
}

// Set stores value at addr in the given bank.
func (s *Store) Set(bank Bank, addr uint16, value uint16) error {
	if addr >= BankSize {
		return fmt.Errorf("set %s[%d]: %w", bank, addr, ErrOutOfRange)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells(bank)[addr] = value
	return nil
}

// ZeroBank clears every cell of the given bank, catalog-known or not.
func (s *Store) ZeroBank(bank Bank) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cells := s.cells(bank)
	for i := range cells {
		cells[i] = 0
	}
}

// Snapshot returns a copy of the bank's contents.
func (s *Store) Snapshot(bank Bank) [BankSize]uint16 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cells(bank)
}

// cells must be called with s.mu held.
func (s *Store) cells(bank Bank) *[BankSize]uint16 {
	if bank == BankHolding {
		return &s.holding
	}
	return &s.input
}
