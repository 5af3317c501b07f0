package model

import "strings"

// FieldName identifies one requirement slot
type FieldName string

const (
	FieldBudget    FieldName = "budget"
	FieldSize      FieldName = "size"
	FieldLocation  FieldName = "location"
	FieldRooms     FieldName = "rooms"
	FieldReadiness FieldName = "ready_status"
	FieldContact   FieldName = "contact"
	FieldNotes     FieldName = "notes"
)

// RequiredFields must all be set before a search runs
var RequiredFields = []FieldName{FieldBudget, FieldSize, FieldLocation, FieldRooms, FieldReadiness}

// AllFields in questionnaire order
var AllFields = []FieldName{FieldBudget, FieldSize, FieldLocation, FieldRooms, FieldReadiness, FieldContact, FieldNotes}

// RequirementSet accumulates what the client is looking for, as free text
type RequirementSet struct {
	Budget    string `json:"budget"`
	Size      string `json:"size"`
	Location  string `json:"location"`
	Rooms     string `json:"rooms"`
	Readiness string `json:"ready_status"`
	Contact   string `json:"contact"`
	Notes     string `json:"notes"`
}

func (r *RequirementSet) slot(name FieldName) *string {
	switch name {
	case FieldBudget:
		return &r.Budget
	case FieldSize:
		return &r.Size
	case FieldLocation:
		return &r.Location
	case FieldRooms:
		return &r.Rooms
	case FieldReadiness:
		return &r.Readiness
	case FieldContact:
		return &r.Contact
	case FieldNotes:
		return &r.Notes
	}
	return nil
}

// Get returns the value for name, or "" for an unknown field
func (r *RequirementSet) Get(name FieldName) string {
	if p := r.slot(name); p != nil {
		return *p
	}
	return ""
}

// Set overwrites a field; used for explicit corrections
func (r *RequirementSet) Set(name FieldName, value string) {
	if p := r.slot(name); p != nil {
		*p = strings.TrimSpace(value)
	}
}

// SetIfEmpty commits value only when the field is still unset.
// Reports whether the field changed.
func (r *RequirementSet) SetIfEmpty(name FieldName, value string) bool {
	p := r.slot(name)
	value = strings.TrimSpace(value)
	if p == nil || value == "" || *p != "" {
		return false
	}
	*p = value
	return true
}

// IsComplete is true once every required field has a value
func (r *RequirementSet) IsComplete() bool {
	for _, f := range RequiredFields {
		if r.Get(f) == "" {
			return false
		}
	}
	return true
}

// Missing lists required fields that are still empty
func (r *RequirementSet) Missing() []FieldName {
	var out []FieldName
	for _, f := range RequiredFields {
		if r.Get(f) == "" {
			out = append(out, f)
		}
	}
	return out
}
