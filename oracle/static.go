// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Static serves balances from a fixed address book. It backs local
// development and tests.
type Static struct {
	mu       sync.RWMutex
	balances map[string][]RuneBalance
}

func NewStatic(balances map[string][]RuneBalance) *Static {
	if balances == nil {
		balances = make(map[string][]RuneBalance)
	}
	return &Static{balances: balances}
}

// LoadStatic reads an address book from a JSON file shaped like
//
//	{"bc1q...": [{"name": "UNCOMMON•GOODS", "balance": "1,000"}]}
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read balances file: %w", err)
	}

	var balances map[string][]RuneBalance
	if err := json.Unmarshal(data, &balances); err != nil {
		return nil, fmt.Errorf("parse balances file %s: %w", path, err)
	}
	return NewStatic(balances), nil
}

// Set replaces the holdings of one address.
func (s *Static) Set(address string, balances ...RuneBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[address] = balances
}

// FetchBalances implements Oracle. Unknown addresses hold nothing.
func (s *Static) FetchBalances(_ context.Context, address string) ([]RuneBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	held := s.balances[address]
	out := make([]RuneBalance, len(held))
	copy(out, held)
	return out, nil
}
