package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spherical/invoice-extractor/internal/domain"
)

var errEmptyResponse = errors.New("model returned an empty response")

// ResponseKind tags the shape a model answer arrived in.
type ResponseKind int

const (
	KindRawText ResponseKind = iota + 1
	KindStructured
	KindAccessor
)

func (k ResponseKind) String() string {
	switch k {
	case KindRawText:
		return "raw_text"
	case KindStructured:
		return "structured"
	case KindAccessor:
		return "accessor"
	default:
		return "unknown"
	}
}

// JSONAccessor is a response object that knows how to render itself as JSON.
type JSONAccessor interface {
	JSON() ([]byte, error)
}

// Response is what an invoker hands back. Exactly one payload field is set,
// as indicated by Kind.
type Response struct {
	Kind     ResponseKind
	Text     string
	Value    any
	Accessor JSONAccessor
}

func RawText(s string) Response        { return Response{Kind: KindRawText, Text: s} }
func Structured(v any) Response        { return Response{Kind: KindStructured, Value: v} }
func Accessor(a JSONAccessor) Response { return Response{Kind: KindAccessor, Accessor: a} }

// Decode normalizes any response variant into an ExtractionResult.
// Shape problems inside an otherwise valid answer are reported as issues;
// an answer with no usable top-level shape is an error.
func Decode(resp Response) (domain.ExtractionResult, error) {
	switch resp.Kind {
	case KindRawText:
		v, err := parseJSONText(resp.Text)
		if err != nil {
			return domain.ExtractionResult{}, err
		}
		return normalize(v)

	case KindStructured:
		if resp.Value == nil {
			return domain.ExtractionResult{}, errEmptyResponse
		}
		return normalize(resp.Value)

	case KindAccessor:
		if resp.Accessor == nil {
			return domain.ExtractionResult{}, errEmptyResponse
		}
		data, err := resp.Accessor.JSON()
		if err != nil {
			return domain.ExtractionResult{}, fmt.Errorf("response json accessor: %w", err)
		}
		v, err := parseJSONText(string(data))
		if err != nil {
			return domain.ExtractionResult{}, err
		}
		return normalize(v)

	default:
		return domain.ExtractionResult{}, fmt.Errorf("unsupported response kind %d", resp.Kind)
	}
}

// parseJSONText parses model text that should be JSON. Code fences are
// stripped, and if the text still does not parse the outermost {...} or
// [...] span is tried.
func parseJSONText(text string) (any, error) {
	text = strings.TrimSpace(cleanCodeblocks(text))
	if text == "" {
		return nil, errEmptyResponse
	}

	v, err := decodeJSON(text)
	if err == nil {
		return v, nil
	}

	if span := outerJSONSpan(text); span != "" && span != text {
		if v, spanErr := decodeJSON(span); spanErr == nil {
			return v, nil
		}
	}
	return nil, fmt.Errorf("malformed JSON in model response: %w", err)
}

func decodeJSON(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// cleanCodeblocks removes a surrounding ``` or ```json fence.
func cleanCodeblocks(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	return strings.TrimSuffix(s, "```")
}

func outerJSONSpan(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}

// normalize maps a generic JSON-like value onto ExtractionResult.
func normalize(v any) (domain.ExtractionResult, error) {
	v = toGeneric(v)

	result := domain.EmptyResult()
	var pages any

	switch top := v.(type) {
	case map[string]any:
		pages = top["pages"]
		result.Issues = append(result.Issues, decodeIssues(top["issues"])...)
	case []any:
		pages = top
	default:
		return domain.ExtractionResult{}, fmt.Errorf("unexpected response shape %T", v)
	}

	switch list := pages.(type) {
	case nil:
	case []any:
		for i, p := range list {
			m, ok := p.(map[string]any)
			if !ok {
				result.Issues = append(result.Issues, fmt.Sprintf("skipped page entry %d: expected object, got %T", i, p))
				continue
			}
			result.Pages = append(result.Pages, decodePage(m, &result.Issues))
		}
	default:
		result.Issues = append(result.Issues, fmt.Sprintf("ignored pages: expected list, got %T", pages))
	}

	return result, nil
}

func decodePage(m map[string]any, issues *[]string) domain.PageEntry {
	entry := domain.PageEntry{
		PageNo:    pageNoString(m["page_no"]),
		LineItems: []domain.RawLineItem{},
	}

	switch items := m["line_items"].(type) {
	case nil:
	case []any:
		for i, it := range items {
			rec, ok := it.(map[string]any)
			if !ok {
				*issues = append(*issues, fmt.Sprintf("page %s: skipped line item %d: expected object, got %T", entry.PageNo, i, it))
				continue
			}
			entry.LineItems = append(entry.LineItems, domain.RawLineItem(rec))
		}
	default:
		*issues = append(*issues, fmt.Sprintf("page %s: ignored line_items: expected list, got %T", entry.PageNo, items))
	}

	return entry
}

// pageNoString returns the string form of a page identifier. A missing
// identifier is attributed to page "1".
func pageNoString(v any) string {
	switch t := v.(type) {
	case nil:
		return "1"
	case string:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func decodeIssues(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, it := range t {
			if s, ok := it.(string); ok {
				out = append(out, s)
				continue
			}
			b, err := json.Marshal(it)
			if err != nil {
				out = append(out, fmt.Sprint(it))
				continue
			}
			out = append(out, string(b))
		}
		return out
	default:
		return []string{fmt.Sprint(t)}
	}
}

// toGeneric converts typed Go values (structs, typed slices or maps, at any
// depth) into the map[string]any / []any form produced by encoding/json.
func toGeneric(v any) any {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return v
	}
	return out
}
