package validation

import "encoding/json"

// DateLayout is the query-parameter date format for range filters.
const DateLayout = "2006-01-02"

// ListOrdersQuery filters the reconciled order view. An empty range means
// today.
type ListOrdersQuery struct {
	Start  string `form:"start" validate:"omitempty,datetime=2006-01-02"`
	End    string `form:"end" validate:"omitempty,datetime=2006-01-02"`
	Search string `form:"search" validate:"omitempty,max=64"`
}

// WebhookEvent is the minimal shape of a provider callback. Entries are kept
// raw; this service only acknowledges them.
type WebhookEvent struct {
	Object string            `json:"object" validate:"required"`
	Entry  []json.RawMessage `json:"entry,omitempty"`
}
