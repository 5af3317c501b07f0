package model

// Mode selects how requirements are elicited
type Mode string

const (
	ModeLLM           Mode = "llm"
	ModeQuestionnaire Mode = "questionnaire"
)

// State is the derived conversation state
type State string

const (
	StateCollecting        State = "COLLECTING"
	StateAwaitingSelection State = "AWAITING_SELECTION"
	StateAwaitingContact   State = "AWAITING_CONTACT"
	StateTerminal          State = "TERMINAL"
)

// Message is one transcript entry
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Selection records the unit a client picked from the shown matches
type Selection struct {
	Supplier string `json:"supplier"`
	UnitID   string `json:"unit_id"`
	Summary  string `json:"summary"`
}

// Session is the in-memory dialogue state for one client
type Session struct {
	ClientID string
	Handle   string
	Name     string
	AgentID  string

	Requirements RequirementSet
	Transcript   []Message
	Mode         Mode
	Step         int

	AwaitingSelection bool
	AwaitingContact   bool
	Selected          *Selection
	Shown             []Match
	Offset            int

	// Refining is set after "nothing fits" or an empty result page; the next
	// message corrects criteria instead of collecting new ones.
	Refining bool
	Closed   bool

	DraftLeadID string
	LeadID      string
}

// NewSession starts a collecting session for a client
func NewSession(clientID, handle, name string, mode Mode) *Session {
	return &Session{
		ClientID: clientID,
		Handle:   handle,
		Name:     name,
		Mode:     mode,
	}
}

// State derives the conversation state from the session flags
func (s *Session) State() State {
	switch {
	case s.Closed:
		return StateTerminal
	case s.AwaitingContact:
		return StateAwaitingContact
	case s.AwaitingSelection:
		return StateAwaitingSelection
	default:
		return StateCollecting
	}
}

// AddMessage appends a transcript entry
func (s *Session) AddMessage(role, content string) {
	s.Transcript = append(s.Transcript, Message{Role: role, Content: content})
}

// CurrentLeadID returns the finalized lead id, else the draft id
func (s *Session) CurrentLeadID() string {
	if s.LeadID != "" {
		return s.LeadID
	}
	return s.DraftLeadID
}
