package domain

import (
	"image"
	"time"
)

// PageTypeBillDetail is the only page classification currently reported.
const PageTypeBillDetail = "Bill Detail"

// Document represents the source PDF being processed
type Document struct {
	Reference string // URL or path as supplied by the caller
	Path      string // Local file the rasterizer reads
	Remote    bool
}

// PageImage represents a single rendered PDF page
type PageImage struct {
	PageNumber int
	Width      int
	Height     int
	Image      image.Image
}

// EncodedImage is a normalized page ready to be sent to the model
type EncodedImage struct {
	PageNumber int
	MIMEType   string
	Data       []byte
	Base64     string
}

// RawLineItem is one line item exactly as the model returned it.
// Keys are expected to be item_name, item_quantity, item_rate and item_amount,
// but nothing about the values is guaranteed.
type RawLineItem map[string]any

// PageEntry groups the raw items the model attributed to one page
type PageEntry struct {
	PageNo    string        `json:"page_no"`
	LineItems []RawLineItem `json:"line_items"`
}

// ExtractionResult is the model's answer after shape normalization
type ExtractionResult struct {
	Pages  []PageEntry `json:"pages"`
	Issues []string    `json:"issues"`
}

// EmptyResult returns a result with no pages and the given issues.
func EmptyResult(issues ...string) ExtractionResult {
	if issues == nil {
		issues = []string{}
	}
	return ExtractionResult{Pages: []PageEntry{}, Issues: issues}
}

// LineItem is a normalized candidate line item tagged with its source page
type LineItem struct {
	ItemName     *string  `json:"item_name"`
	ItemQuantity float64  `json:"item_quantity"`
	ItemRate     *float64 `json:"item_rate"`
	ItemAmount   *float64 `json:"item_amount"`
	PageNo       string   `json:"_page_no"`
}

// PageGroup holds the raw items reported for one physical page
type PageGroup struct {
	PageNo    string        `json:"page_no"`
	PageType  string        `json:"page_type"`
	BillItems []RawLineItem `json:"bill_items"`
}

// ReconciledOutput is the final payload returned to callers
type ReconciledOutput struct {
	PagewiseLineItems []PageGroup `json:"pagewise_line_items"`
	UniqueLineItems   []LineItem  `json:"unique_line_items"`
	TotalItemsCount   int         `json:"total_items_count"`
	SumTotal          float64     `json:"sum_total"`
	Issues            []string    `json:"issues"`
}

// Envelope wraps a successful extraction
type Envelope struct {
	IsSuccess bool              `json:"is_success"`
	Data      *ReconciledOutput `json:"data"`
}

// EventType represents the type of stream event
type EventType string

const (
	EventStart        EventType = "start"
	EventPageRendered EventType = "page_rendered"
	EventExtraction   EventType = "extraction"
	EventError        EventType = "error"
	EventComplete     EventType = "complete"
)

// StreamEvent represents an event emitted during processing
type StreamEvent struct {
	Type       EventType   `json:"type"`
	PageNumber int         `json:"page_number,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
