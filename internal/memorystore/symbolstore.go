package memorystore

import (
	"sort"
	"strings"
	"sync"

	"flowrelay/internal/market"
)

// MemorySymbolStore is the tick-size registry shared by all sessions.
type MemorySymbolStore struct {
	mu      sync.RWMutex
	symbols map[string]market.SymbolConfig
}

func NewSymbolStore(seed ...market.SymbolConfig) *MemorySymbolStore {
	s := &MemorySymbolStore{
		symbols: make(map[string]market.SymbolConfig, len(seed)),
	}
	for _, cfg := range seed {
		s.Add(cfg)
	}
	return s
}

// Add inserts or replaces a symbol configuration. Entries without a usable tick size are ignored.
func (s *MemorySymbolStore) Add(cfg market.SymbolConfig) bool {
	if cfg.Symbol == "" || cfg.TickSize <= 0 {
		return false
	}
	cfg.Symbol = strings.ToUpper(cfg.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols[cfg.Symbol] = cfg
	return true
}

// StartWorker drains ch into the store. The returned channel closes once ch is closed and drained.
func (s *MemorySymbolStore) StartWorker(ch <-chan market.SymbolConfig) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for cfg := range ch {
			s.Add(cfg)
		}
	}()
	return done
}

// Get returns the configuration for symbol, or the default configuration for unknown symbols.
func (s *MemorySymbolStore) Get(symbol string) market.SymbolConfig {
	key := strings.ToUpper(symbol)

	s.mu.RLock()
	cfg, ok := s.symbols[key]
	s.mu.RUnlock()
	if !ok {
		return market.DefaultSymbolConfig(key)
	}
	return cfg
}

func (s *MemorySymbolStore) Has(symbol string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.symbols[strings.ToUpper(symbol)]
	return ok
}

// GetAll returns every known configuration sorted by symbol.
func (s *MemorySymbolStore) GetAll() []market.SymbolConfig {
	s.mu.RLock()
	out := make([]market.SymbolConfig, 0, len(s.symbols))
	for _, cfg := range s.symbols {
		out = append(out, cfg)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (s *MemorySymbolStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.symbols)
}
