package extract

import (
	"strings"

	"github.com/spherical/invoice-extractor/internal/domain"
)

// itemKey identifies a billed item: same name (ignoring case and surrounding
// space) and same amount to the cent.
type itemKey struct {
	name   string
	amount float64
}

// Deduplicator removes repeated line items, keeping the first occurrence
type Deduplicator struct {
	seen map[itemKey]bool
}

// NewDeduplicator creates a new Deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		seen: make(map[itemKey]bool),
	}
}

// Dedupe returns the items not seen before, in input order. The seen set
// persists across calls on the same Deduplicator.
func (d *Deduplicator) Dedupe(items []domain.LineItem) []domain.LineItem {
	result := make([]domain.LineItem, 0, len(items))

	for _, it := range items {
		key := keyOf(it)
		if d.seen[key] {
			continue
		}
		d.seen[key] = true
		result = append(result, it)
	}

	return result
}

func keyOf(it domain.LineItem) itemKey {
	var name string
	if it.ItemName != nil {
		name = strings.ToLower(strings.TrimSpace(*it.ItemName))
	}
	return itemKey{name: name, amount: round2(amountOrZero(it.ItemAmount))}
}
