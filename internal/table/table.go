// Package table implements the open-addressed hash table keyed by interned
// string identity. Globals, class method tables, instance fields and the
// string intern set all use it.
package table

import "loxvm/internal/value"

const maxLoad = 0.75

// EntrySize is the number of bytes one slot occupies: a handle and hash
// plus a boxed value.
const EntrySize = 16

// Key is an interned string: its heap handle plus its cached hash. Two keys
// are the same iff their handles are the same.
type Key struct {
	Handle value.Handle
	Hash   uint32
}

type entry struct {
	key   Key
	value value.Value
}

// empty slots have a zero handle and nil value; tombstones have a zero handle
// and a true value so probing continues past them.
func (e *entry) empty() bool     { return e.key.Handle == 0 && e.value.IsNil() }
func (e *entry) tombstone() bool { return e.key.Handle == 0 && !e.value.IsNil() }

// Table maps string keys to values. The zero Table is ready to use.
type Table struct {
	count   int // live entries plus tombstones
	entries []entry

	// OnGrow, when set, is told how many bytes each resize added.
	OnGrow func(delta int)
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	n := 0
	for i := range t.entries {
		if t.entries[i].key.Handle != 0 {
			n++
		}
	}
	return n
}

// Capacity returns the number of slots.
func (t *Table) Capacity() int { return len(t.entries) }

// Bytes is the size of the slot array.
func (t *Table) Bytes() int { return len(t.entries) * EntrySize }

func findEntry(entries []entry, key Key) *entry {
	capacity := uint32(len(entries))
	index := key.Hash & (capacity - 1)
	var tomb *entry
	for {
		e := &entries[index]
		switch {
		case e.key.Handle == key.Handle && key.Handle != 0:
			return e
		case e.empty():
			if tomb != nil {
				return tomb
			}
			return e
		case e.tombstone():
			if tomb == nil {
				tomb = e
			}
		}
		index = (index + 1) & (capacity - 1)
	}
}

// Get returns the value stored under key.
func (t *Table) Get(key Key) (value.Value, bool) {
	if t.count == 0 {
		return value.Nil, false
	}
	e := findEntry(t.entries, key)
	if e.key.Handle == 0 {
		return value.Nil, false
	}
	return e.value, true
}

// Set inserts or updates key and reports whether the key was new.
func (t *Table) Set(key Key, v value.Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*maxLoad {
		t.grow(growCapacity(len(t.entries)))
	}
	e := findEntry(t.entries, key)
	isNew := e.key.Handle == 0
	if isNew && e.empty() {
		t.count++
	}
	e.key = key
	e.value = v
	return isNew
}

// Delete removes key, leaving a tombstone, and reports whether it was present.
func (t *Table) Delete(key Key) bool {
	if t.count == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.key.Handle == 0 {
		return false
	}
	e.key = Key{}
	e.value = value.True
	return true
}

// AddAll copies every entry of from into t, overwriting same-named keys.
func (t *Table) AddAll(from *Table) {
	for i := range from.entries {
		e := &from.entries[i]
		if e.key.Handle != 0 {
			t.Set(e.key, e.value)
		}
	}
}

// FindString looks up an interned string by content. equal is called with
// each candidate whose hash matches and decides whether its content matches.
func (t *Table) FindString(hash uint32, equal func(value.Handle) bool) (value.Handle, bool) {
	if t.count == 0 {
		return 0, false
	}
	capacity := uint32(len(t.entries))
	index := hash & (capacity - 1)
	for {
		e := &t.entries[index]
		if e.key.Handle == 0 {
			if e.empty() {
				return 0, false
			}
		} else if e.key.Hash == hash && equal(e.key.Handle) {
			return e.key.Handle, true
		}
		index = (index + 1) & (capacity - 1)
	}
}

// Each calls fn for every live entry.
func (t *Table) Each(fn func(Key, value.Value)) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key.Handle != 0 {
			fn(e.key, e.value)
		}
	}
}

// RemoveWhite deletes every entry whose key is not marked.
func (t *Table) RemoveWhite(marked func(value.Handle) bool) int {
	removed := 0
	for i := range t.entries {
		e := &t.entries[i]
		if e.key.Handle != 0 && !marked(e.key.Handle) {
			e.key = Key{}
			e.value = value.True
			removed++
		}
	}
	return removed
}

// Mark reports every key handle and every value to the collector.
func (t *Table) Mark(markHandle func(value.Handle), markValue func(value.Value)) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.key.Handle != 0 {
			markHandle(e.key.Handle)
			markValue(e.value)
		}
	}
}

// Reset drops every entry and the backing storage. OnGrow is not told;
// the owner releases Bytes itself.
func (t *Table) Reset() {
	t.count = 0
	t.entries = nil
}

func (t *Table) grow(capacity int) {
	entries := make([]entry, capacity)
	for i := range entries {
		entries[i].value = value.Nil
	}
	t.count = 0
	for i := range t.entries {
		old := &t.entries[i]
		if old.key.Handle == 0 {
			continue
		}
		dst := findEntry(entries, old.key)
		dst.key = old.key
		dst.value = old.value
		t.count++
	}
	delta := (capacity - len(t.entries)) * EntrySize
	t.entries = entries
	if t.OnGrow != nil {
		t.OnGrow(delta)
	}
}

func growCapacity(c int) int {
	if c < 8 {
		return 8
	}
	return c * 2
}
