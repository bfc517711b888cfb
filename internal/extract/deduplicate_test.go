package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spherical/invoice-extractor/internal/domain"
)

func lineItem(name string, amount any, page string) domain.LineItem {
	it := domain.LineItem{ItemQuantity: 1, PageNo: page}
	if name != "<nil>" {
		it.ItemName = &name
	}
	if f, ok := amount.(float64); ok {
		it.ItemAmount = &f
	}
	return it
}

func TestDeduplicator_Key(t *testing.T) {
	tests := []struct {
		name      string
		a, b      domain.LineItem
		duplicate bool
	}{
		{"case and whitespace", lineItem("Widget", 10.0, "1"), lineItem("  wIDGET ", 10.0, "2"), true},
		{"amount equal to the cent", lineItem("Bolt", 1.234, "1"), lineItem("Bolt", 1.23, "1"), true},
		{"absent amount equals zero", lineItem("Fee", nil, "1"), lineItem("Fee", 0.0, "1"), true},
		{"absent name equals empty", lineItem("<nil>", 4.0, "1"), lineItem("", 4.0, "1"), true},
		{"different amount", lineItem("Widget", 10.0, "1"), lineItem("Widget", 10.01, "1"), false},
		{"different name", lineItem("Widget", 10.0, "1"), lineItem("Widgets", 10.0, "1"), false},
		{"inner whitespace matters", lineItem("Blue Pen", 2.0, "1"), lineItem("BluePen", 2.0, "1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := NewDeduplicator().Dedupe([]domain.LineItem{tt.a, tt.b})
			if tt.duplicate {
				assert.Len(t, out, 1)
				assert.Equal(t, tt.a, out[0])
			} else {
				assert.Len(t, out, 2)
			}
		})
	}
}

func TestDeduplicator_FirstOccurrenceWinsInOrder(t *testing.T) {
	items := []domain.LineItem{
		lineItem("A", 1.0, "1"),
		lineItem("B", 2.0, "1"),
		lineItem("a", 1.0, "2"),
		lineItem("C", 3.0, "2"),
		lineItem("b ", 2.0, "3"),
	}

	out := NewDeduplicator().Dedupe(items)

	assert.Equal(t, []domain.LineItem{items[0], items[1], items[3]}, out)
}

func TestDeduplicator_Idempotent(t *testing.T) {
	items := []domain.LineItem{
		lineItem("A", 1.0, "1"),
		lineItem("A", 1.0, "2"),
		lineItem("B", nil, "2"),
		lineItem("B", 0.0, "3"),
	}

	once := NewDeduplicator().Dedupe(items)
	twice := NewDeduplicator().Dedupe(once)

	assert.Equal(t, once, twice)
}

func TestDeduplicator_Empty(t *testing.T) {
	out := NewDeduplicator().Dedupe(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}
