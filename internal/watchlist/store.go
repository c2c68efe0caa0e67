package watchlist

import (
	"sync"

	"breakout_bot/internal/models"
)

// Store — вотчлист между сканами. Меняется только целиком:
// новый скан полностью вытесняет старый, поэлементных правок нет.
type Store struct {
	mu      sync.RWMutex
	entries []models.WatchlistEntry
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Replace(entries []models.WatchlistEntry) {
	s.mu.Lock()
	s.entries = append([]models.WatchlistEntry(nil), entries...)
	s.mu.Unlock()
}

func (s *Store) Clear() {
	s.Replace(nil)
}

// Entries отдаёт копию: читатель не видит последующих Replace.
func (s *Store) Entries() []models.WatchlistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.WatchlistEntry(nil), s.entries...)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Symbols — тикеры вотчлиста в исходном порядке.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Symbol)
	}
	return out
}
