package diag

// Bag collects diagnostics up to a fixed limit. Anything past the limit is
// counted but not kept.
type Bag struct {
	items   []Diagnostic
	max     uint16
	dropped int
}

func NewBag(max uint16) *Bag {
	return &Bag{
		items: make([]Diagnostic, 0, min(int(max), 16)),
		max:   max,
	}
}

// Add сохраняет диагностику; false, если лимит уже исчерпан.
func (b *Bag) Add(d Diagnostic) bool {
	if len(b.items) >= int(b.max) {
		b.dropped++
		return false
	}
	b.items = append(b.items, d)
	return true
}

// HasErrors reports whether any kept diagnostic is an error. A bag that
// dropped diagnostics always has errors.
func (b *Bag) HasErrors() bool {
	if b.dropped > 0 {
		return true
	}
	for i := range b.items {
		if b.items[i].Severity >= SevError {
			return true
		}
	}
	return false
}

func (b *Bag) Len() int {
	return len(b.items)
}

// Dropped is the number of diagnostics rejected by the limit.
func (b *Bag) Dropped() int {
	return b.dropped
}

// Items возвращает внутренний срез; не модифицировать.
func (b *Bag) Items() []Diagnostic {
	return b.items
}
