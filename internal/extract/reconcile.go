package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"

	"github.com/spherical/invoice-extractor/internal/domain"
)

// Reconcile merges the model's per-page answer with the real page list,
// flattens and deduplicates the items and totals their amounts.
func Reconcile(result domain.ExtractionResult, pageCount int) domain.ReconciledOutput {
	pagewise := make([]domain.PageGroup, pageCount)
	index := make(map[string]int, pageCount)
	for i := range pagewise {
		pageNo := strconv.Itoa(i + 1)
		pagewise[i] = domain.PageGroup{
			PageNo:    pageNo,
			PageType:  domain.PageTypeBillDetail,
			BillItems: []domain.RawLineItem{},
		}
		index[pageNo] = i
	}

	var candidates []domain.LineItem
	var dropped []string
	for _, entry := range result.Pages {
		items := entry.LineItems
		if items == nil {
			items = []domain.RawLineItem{}
		}
		if i, ok := index[entry.PageNo]; ok {
			pagewise[i].BillItems = items
		}
		for _, raw := range items {
			candidates = append(candidates, toLineItem(raw, entry.PageNo))
			for _, field := range numericFields {
				if outOfRange(raw[field]) {
					dropped = append(dropped, fmt.Sprintf("page %s: %s out of range, treated as absent", entry.PageNo, field))
				}
			}
		}
	}

	unique := NewDeduplicator().Dedupe(candidates)

	var sum float64
	for _, it := range unique {
		sum += amountOrZero(it.ItemAmount)
	}

	issues := make([]string, 0, len(result.Issues)+len(dropped))
	issues = append(issues, result.Issues...)
	issues = append(issues, dropped...)

	return domain.ReconciledOutput{
		PagewiseLineItems: pagewise,
		UniqueLineItems:   unique,
		TotalItemsCount:   len(unique),
		SumTotal:          round2(sum),
		Issues:            issues,
	}
}

func toLineItem(raw domain.RawLineItem, pageNo string) domain.LineItem {
	item := domain.LineItem{
		ItemName:     nameOf(raw["item_name"]),
		ItemQuantity: 1,
		ItemRate:     toNumber(raw["item_rate"]),
		ItemAmount:   toNumber(raw["item_amount"]),
		PageNo:       pageNo,
	}
	if q := toNumber(raw["item_quantity"]); q != nil {
		item.ItemQuantity = *q
	}
	return item
}

func nameOf(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return &t
	case json.Number:
		s := t.String()
		return &s
	default:
		s := fmt.Sprint(t)
		return &s
	}
}

// maxMagnitude bounds coerced numbers so totals stay finite.
const maxMagnitude = 1e15

var numericFields = []string{"item_quantity", "item_rate", "item_amount"}

// toNumber coerces an untrusted amount, rate or quantity. Strings may carry
// thousands separators and a currency symbol or code on either side.
// Values that are not finite or exceed maxMagnitude are absent.
func toNumber(v any) *float64 {
	f, ok := rawNumber(v)
	if !ok || !withinRange(f) {
		return nil
	}
	return &f
}

// outOfRange reports a value that parses as a number but is rejected by toNumber.
func outOfRange(v any) bool {
	f, ok := rawNumber(v)
	return ok && !withinRange(f)
}

func withinRange(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && math.Abs(f) <= maxMagnitude
}

func rawNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, ok := parseAmount(t)
		if !ok {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	return f, true
}

func parseAmount(s string) (float64, bool) {
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsLetter(r) || unicode.Is(unicode.Sc, r)
	})
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func amountOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// round2 rounds to two decimals, ties to even, working on the shortest
// decimal form of x so that 10.005 behaves as written.
func round2(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(x, 'f', -1, 64))
	if !ok {
		return x
	}
	r.Mul(r, big.NewRat(100, 1))

	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	m.Abs(m).Lsh(m, 1)
	if c := m.Cmp(r.Denom()); c > 0 || (c == 0 && q.Bit(0) == 1) {
		if r.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}

	f, _ := new(big.Rat).SetFrac(q, big.NewInt(100)).Float64()
	return f
}
