package model

import "strings"

// Field is one named cell of an inventory row
type Field struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// Match is a scored inventory unit
type Match struct {
	Supplier string   `json:"supplier"`
	Score    int      `json:"score"`
	Fields   []Field  `json:"fields"`
	Criteria []string `json:"criteria"`
	RowIndex int      `json:"row_index"`
	UnitID   string   `json:"unit_id"`
}

// Value returns the cell under column, matched case-insensitively
func (m *Match) Value(column string) string {
	if column == "" {
		return ""
	}
	for _, f := range m.Fields {
		if strings.EqualFold(f.Column, column) {
			return f.Value
		}
	}
	return ""
}

// StartRequest is the body of POST /clients/:id/start
type StartRequest struct {
	Handle string `json:"handle"`
	Name   string `json:"name"`
}

// MessageRequest is the body of POST /clients/:id/messages
type MessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// SelectionRequest is the body of POST /clients/:id/selection
type SelectionRequest struct {
	Index int `json:"index" binding:"required"`
}

// ContactRequest is the body of POST /clients/:id/contact
type ContactRequest struct {
	Contact string `json:"contact" binding:"required"`
}

// ConversationResponse is returned by every client endpoint
type ConversationResponse struct {
	Replies []string `json:"replies"`
	State   State    `json:"state"`
	Matches []Match  `json:"matches,omitempty"`
	Took    int64    `json:"took_ms"` // Response time in milliseconds
}

// LeadListResponse is returned by GET /agents/:id/leads
type LeadListResponse struct {
	Leads []Lead `json:"leads"`
	Total int    `json:"total"`
}
