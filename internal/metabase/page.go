package metabase

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Page is the normalized list shape produced for every listing operation,
// whether the remote API answered with a bare JSON array or a
// {"data": [...]} envelope.
type Page struct {
	Items  []json.RawMessage `json:"data"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// Metadata is the pagination block attached to envelope responses.
type Metadata struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Envelope is the documented response shape for listing tools.
type Envelope struct {
	Data     []json.RawMessage `json:"data"`
	Metadata Metadata          `json:"metadata"`
}

// Envelope returns the page in the documented data/metadata shape.
func (p *Page) Envelope() Envelope {
	items := p.Items
	if items == nil {
		items = []json.RawMessage{}
	}
	return Envelope{
		Data: items,
		Metadata: Metadata{
			Total:  p.Total,
			Limit:  p.Limit,
			Offset: p.Offset,
		},
	}
}

// Slice returns the window [offset, offset+limit) of the page's items. The
// reported offset is clamped to the item count so that offset+returned <= total
// holds even when the caller pages past the end.
func (p *Page) Slice(limit, offset int) *Page {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	start := offset
	if start > len(p.Items) {
		start = len(p.Items)
	}
	end := start + limit
	if end > len(p.Items) {
		end = len(p.Items)
	}
	return &Page{
		Items:  p.Items[start:end],
		Total:  p.Total,
		Limit:  limit,
		Offset: start,
	}
}

// HasMore reports whether another window of results exists past this page.
func (p *Page) HasMore() bool {
	return p.Offset+p.Limit < p.Total
}

// normalizePage converts a remote listing response into a Page. The card
// and collection endpoints answer with bare arrays while the database
// endpoint wraps its rows in a data envelope with pagination fields; both
// normalize to the same shape. Anything else is a decode failure naming
// the operation.
func normalizePage(op string, body []byte) (*Page, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%s: empty response from metabase", op)
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%s: failed to decode response: %w", op, err)
		}
		return &Page{Items: items, Total: len(items), Limit: len(items), Offset: 0}, nil
	}

	var envelope struct {
		Data   []json.RawMessage `json:"data"`
		Total  *int              `json:"total"`
		Limit  *int              `json:"limit"`
		Offset *int              `json:"offset"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("%s: unexpected response shape from metabase", op)
	}

	page := &Page{
		Items: envelope.Data,
		Total: len(envelope.Data),
		Limit: len(envelope.Data),
	}
	if envelope.Total != nil {
		page.Total = *envelope.Total
	}
	if envelope.Limit != nil {
		page.Limit = *envelope.Limit
	}
	if envelope.Offset != nil {
		page.Offset = *envelope.Offset
	}
	return page, nil
}
