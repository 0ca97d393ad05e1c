package memory_map

import (
	"sync"
)

// Ledger tracks the live allocations a caller made in one target process.
// Entries are kept sorted by address so lookups are a binary search.
type Ledger struct {
	mu    sync.Mutex
	items []MemoryMapItem
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Insert records a new allocation. An existing entry at the same address is replaced.
func (l *Ledger) Insert(addr uint64, size uint) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item := MemoryMapItem{Address: addr, Size: size, Perms: "rw-p"}
	for i := range l.items {
		if l.items[i].Address == addr {
			l.items[i] = item
			return
		}
	}
	l.items = append(l.items, item)
	SortByAddress(l.items)
}

// Remove drops the allocation that starts exactly at addr and reports
// whether there was one.
func (l *Ledger) Remove(addr uint64) (MemoryMapItem, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.items {
		if l.items[i].Address == addr {
			item := l.items[i]
			l.items = append(l.items[:i], l.items[i+1:]...)
			return item, true
		}
	}
	return MemoryMapItem{}, false
}

// Lookup returns the allocation containing addr.
func (l *Ledger) Lookup(addr uint64) (MemoryMapItem, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if item := FindRegion(addr, l.items); item != nil {
		return *item, true
	}
	return MemoryMapItem{}, false
}

// Items returns a copy of the live allocations.
func (l *Ledger) Items() []MemoryMapItem {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]MemoryMapItem, len(l.items))
	copy(result, l.items)
	return result
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
