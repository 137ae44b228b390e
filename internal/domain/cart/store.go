// Package cart holds the client's selected items and quantities before an
// order is submitted.
package cart

import (
	"strconv"
	"strings"
	"sync"

	"github.com/erp/storefront/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// Store maps item keys to cart lines. Lines are kept in insertion order;
// updating the quantity of an existing line does not move it.
//
// Invariants: every key equals its line's Item, and no line has qty <= 0.
type Store struct {
	mu    sync.RWMutex
	lines map[string]Line
	order []string
}

// NewStore creates an empty cart
func NewStore() *Store {
	return &Store{
		lines: make(map[string]Line),
	}
}

// ParseQuantity converts user input to a quantity. A leading integer is
// accepted ("3 boxes" is 3); anything non-numeric or out of range is 0, and
// negative values clamp to 0.
func ParseQuantity(raw string) int {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return clamp(n)
}

func clamp(qty int) int {
	if qty < 0 {
		return 0
	}
	return qty
}

// SetQuantity sets the quantity for key. A quantity of 0 (after clamping)
// removes the line; otherwise the full item record is stored with qty.
func (s *Store) SetQuantity(key string, item catalog.CatalogItem, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, item, clamp(qty))
}

// Adjust changes the quantity for key by delta, as the +/- controls do
func (s *Store) Adjust(key string, item catalog.CatalogItem, delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	qty := clamp(s.lines[key].Qty + delta)
	s.setLocked(key, item, qty)
	return qty
}

func (s *Store) setLocked(key string, item catalog.CatalogItem, qty int) {
	if qty == 0 {
		s.removeLocked(key)
		return
	}

	item.Item = key
	item.Price = catalog.NormalizePrice(item.Price)
	if _, exists := s.lines[key]; !exists {
		s.order = append(s.order, key)
	}
	s.lines[key] = Line{CatalogItem: item, Qty: qty}
}

// Quantity returns the current quantity for key, 0 when absent
func (s *Store) Quantity(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lines[key].Qty
}

// Line returns the line stored for key
func (s *Store) Line(key string) (Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lines[key]
	return l, ok
}

// Remove deletes the line for key. Removing an absent key is a no-op.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(key)
}

func (s *Store) removeLocked(key string) {
	if _, exists := s.lines[key]; !exists {
		return
	}
	delete(s.lines, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Snapshot returns the current lines and their total
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Lines: make([]Line, 0, len(s.order)),
		Total: decimal.Zero,
	}
	for _, key := range s.order {
		line := s.lines[key]
		snap.Lines = append(snap.Lines, line)
		snap.Total = snap.Total.Add(line.Subtotal())
	}
	return snap
}

// Len returns the number of lines
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// Clear empties the cart
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = make(map[string]Line)
	s.order = nil
}
