package model

import "time"

// LeadStatus is the lifecycle stage of a lead
type LeadStatus string

const (
	LeadStatusDraft     LeadStatus = "draft"
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusViewing   LeadStatus = "viewing"
	LeadStatusClosed    LeadStatus = "closed"
	LeadStatusRejected  LeadStatus = "rejected"
)

var leadTransitions = map[LeadStatus][]LeadStatus{
	LeadStatusDraft:     {LeadStatusNew},
	LeadStatusNew:       {LeadStatusContacted, LeadStatusViewing, LeadStatusClosed, LeadStatusRejected},
	LeadStatusContacted: {LeadStatusViewing, LeadStatusClosed, LeadStatusRejected},
	LeadStatusViewing:   {LeadStatusContacted, LeadStatusClosed, LeadStatusRejected},
}

// Valid reports whether s is a known status
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusDraft, LeadStatusNew, LeadStatusContacted, LeadStatusViewing, LeadStatusClosed, LeadStatusRejected:
		return true
	}
	return false
}

// CanTransition reports whether a lead may move from s to next
func (s LeadStatus) CanTransition(next LeadStatus) bool {
	for _, allowed := range leadTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Lead is a client's captured requirements owned by one agent
type Lead struct {
	ID               string     `json:"id" db:"id"`
	ClientID         string     `json:"client_id" db:"client_id"`
	Handle           string     `json:"handle,omitempty" db:"handle"`
	Name             string     `json:"name,omitempty" db:"name"`
	AgentID          string     `json:"agent_id" db:"agent_id"`
	Budget           string     `json:"budget" db:"budget"`
	Size             string     `json:"size" db:"size"`
	Location         string     `json:"location" db:"location"`
	Rooms            string     `json:"rooms" db:"rooms"`
	Readiness        string     `json:"ready_status" db:"readiness"`
	Contact          string     `json:"contact" db:"contact"`
	Notes            string     `json:"notes" db:"notes"`
	Status           LeadStatus `json:"status" db:"status"`
	DraftStep        int        `json:"draft_step" db:"draft_step"`
	SelectedSupplier string     `json:"selected_supplier,omitempty" db:"selected_supplier"`
	SelectedUnit     string     `json:"selected_unit,omitempty" db:"selected_unit"`
	CommissionAmount *float64   `json:"commission_amount,omitempty" db:"commission_amount"`
	CommissionPaidAt *time.Time `json:"commission_paid_at,omitempty" db:"commission_paid_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// Requirements returns the lead's requirement fields as a set
func (l *Lead) Requirements() RequirementSet {
	return RequirementSet{
		Budget:    l.Budget,
		Size:      l.Size,
		Location:  l.Location,
		Rooms:     l.Rooms,
		Readiness: l.Readiness,
		Contact:   l.Contact,
		Notes:     l.Notes,
	}
}

// ApplyRequirements copies every requirement field onto the lead
func (l *Lead) ApplyRequirements(r RequirementSet) {
	l.Budget = r.Budget
	l.Size = r.Size
	l.Location = r.Location
	l.Rooms = r.Rooms
	l.Readiness = r.Readiness
	l.Contact = r.Contact
	l.Notes = r.Notes
}

// IsDraft reports whether the lead is still an autosave snapshot
func (l *Lead) IsDraft() bool {
	return l.Status == LeadStatusDraft
}

// LeadStatusUpdate is the body of PATCH /leads/:id/status
type LeadStatusUpdate struct {
	Status           LeadStatus `json:"status" binding:"required"`
	CommissionAmount *float64   `json:"commission_amount,omitempty"`
}

// LeadReassignRequest is the body of PUT /leads/:id/agent
type LeadReassignRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
}
