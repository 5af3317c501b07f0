package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadmatch/internal/logging"
	"leadmatch/internal/model"
	"leadmatch/internal/utils"
)

var (
	// ErrInvalidLead means a lead is missing its client or agent identity
	ErrInvalidLead = errors.New("invalid lead")
	// ErrInvalidTransition means the requested status change is not allowed
	ErrInvalidTransition = errors.New("invalid lead status transition")
	// ErrNoActiveAgent means no agent can take new clients
	ErrNoActiveAgent = errors.New("no active agent")
)

// notesPreviewLen bounds notes in agent-facing summaries
const notesPreviewLen = 200

// LeadStore persists leads
type LeadStore interface {
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	SaveLead(ctx context.Context, lead *model.Lead) error
	FindLeadByClient(ctx context.Context, clientID string) (*model.Lead, error)
	DeleteLead(ctx context.Context, id string) error
	ListLeads(ctx context.Context, agentID string, status model.LeadStatus) ([]model.Lead, error)
}

// AgentStore persists agents
type AgentStore interface {
	GetAgent(ctx context.Context, id string) (*model.Agent, error)
	SaveAgent(ctx context.Context, agent *model.Agent) error
	ListAgents(ctx context.Context) ([]model.Agent, error)
}

// Notifier delivers a text message to an agent
type Notifier interface {
	NotifyAgent(ctx context.Context, agent *model.Agent, text string) error
}

// LeadAssembler turns sessions into persisted leads and tells agents about them
type LeadAssembler struct {
	leads    LeadStore
	agents   AgentStore
	notifier Notifier
	now      func() time.Time

	notifyTimeout time.Duration
	pending       sync.WaitGroup
}

// NewLeadAssembler creates a new lead assembler
func NewLeadAssembler(leads LeadStore, agents AgentStore, notifier Notifier) *LeadAssembler {
	return &LeadAssembler{
		leads:         leads,
		agents:        agents,
		notifier:      notifier,
		now:           time.Now,
		notifyTimeout: 30 * time.Second,
	}
}

// AssignAgent picks the owner for a new client: the earliest registered
// active agent
func (a *LeadAssembler) AssignAgent(ctx context.Context) (string, error) {
	agents, err := a.agents.ListAgents(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list agents: %w", err)
	}
	sort.SliceStable(agents, func(i, j int) bool {
		return agents[i].CreatedAt.Before(agents[j].CreatedAt)
	})
	for _, agent := range agents {
		if agent.IsActive {
			return agent.ID, nil
		}
	}
	return "", ErrNoActiveAgent
}

// RegisterAgent stores a new active agent
func (a *LeadAssembler) RegisterAgent(ctx context.Context, req model.AgentRegisterRequest) (*model.Agent, error) {
	handle := strings.TrimPrefix(strings.TrimSpace(req.Handle), "@")
	name := strings.TrimSpace(req.FullName)
	if handle == "" || name == "" {
		return nil, fmt.Errorf("%w: agent needs handle and full name", ErrInvalidLead)
	}

	agent := &model.Agent{
		ID:              uuid.New().String(),
		Handle:          handle,
		FullName:        name,
		Phone:           strings.TrimSpace(req.Phone),
		Company:         strings.TrimSpace(req.Company),
		NotifyChannelID: strings.TrimSpace(req.NotifyChannelID),
		IsActive:        true,
		CreatedAt:       a.now(),
	}
	if err := a.agents.SaveAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to save agent: %w", err)
	}
	log.Printf("🧑‍💼 Agent %s registered (@%s)", agent.ID, agent.Handle)
	return agent, nil
}

// GetAgent returns an agent by id
func (a *LeadAssembler) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	return a.agents.GetAgent(ctx, id)
}

// FindByClient returns the newest lead of a client
func (a *LeadAssembler) FindByClient(ctx context.Context, clientID string) (*model.Lead, error) {
	return a.leads.FindLeadByClient(ctx, clientID)
}

// GetLead returns a lead by id
func (a *LeadAssembler) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	return a.leads.GetLead(ctx, id)
}

// ListLeads returns an agent's leads, optionally filtered by status
func (a *LeadAssembler) ListLeads(ctx context.Context, agentID string, status model.LeadStatus) ([]model.Lead, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	return a.leads.ListLeads(ctx, agentID, status)
}

// SaveDraft autosaves the session. A session without a lead gets a new draft
// and an existing draft is updated in place. A finalized lead is left alone
// until Finalize or Update writes the corrected criteria.
func (a *LeadAssembler) SaveDraft(ctx context.Context, s *model.Session) error {
	if s.ClientID == "" {
		return fmt.Errorf("%w: empty client id", ErrInvalidLead)
	}

	lead, err := a.current(ctx, s)
	if err != nil {
		return err
	}
	if lead == nil {
		lead = a.newLead(s, model.LeadStatusDraft)
	}
	if !lead.IsDraft() {
		logging.Debugf("💾 Lead %s is %s, autosave skipped for client %s", lead.ID, lead.Status, s.ClientID)
		return nil
	}
	a.apply(lead, s)

	if err := a.leads.SaveLead(ctx, lead); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	s.DraftLeadID = lead.ID
	logging.Debugf("💾 Draft %s saved for client %s at step %d", lead.ID, s.ClientID, lead.DraftStep)
	return nil
}

// Finalize promotes the session's draft to a new lead, or creates one when no
// draft exists, then notifies the owning agent in the background. A session
// that already has a finalized lead is updated in place without notifying.
func (a *LeadAssembler) Finalize(ctx context.Context, s *model.Session) (*model.Lead, error) {
	if err := validateIdentity(s.ClientID, s.AgentID); err != nil {
		return nil, err
	}

	lead, err := a.current(ctx, s)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		lead = a.newLead(s, model.LeadStatusNew)
	}

	promoted := lead.IsDraft() || s.LeadID == ""
	if lead.IsDraft() {
		lead.Status = model.LeadStatusNew
	}
	a.apply(lead, s)
	lead.DraftStep = 0

	if err := validateIdentity(lead.ClientID, lead.AgentID); err != nil {
		return nil, err
	}
	if err := a.leads.SaveLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to save lead: %w", err)
	}

	s.LeadID = lead.ID
	s.DraftLeadID = ""

	if promoted {
		log.Printf("✅ Lead %s finalized for client %s (agent %s)", lead.ID, lead.ClientID, lead.AgentID)
		a.notifyAsync(lead.AgentID, NewLeadText(lead))
	}
	return lead, nil
}

// Update writes corrected requirements onto the session's lead
func (a *LeadAssembler) Update(ctx context.Context, s *model.Session) (*model.Lead, error) {
	lead, err := a.current(ctx, s)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, fmt.Errorf("client %s: %w", s.ClientID, model.ErrLeadNotFound)
	}
	a.apply(lead, s)
	if err := a.leads.SaveLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}
	return lead, nil
}

// Handoff stores the contact and chosen unit and notifies the agent
func (a *LeadAssembler) Handoff(ctx context.Context, s *model.Session) (*model.Lead, error) {
	if err := validateIdentity(s.ClientID, s.AgentID); err != nil {
		return nil, err
	}

	lead, err := a.current(ctx, s)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, fmt.Errorf("client %s: %w", s.ClientID, model.ErrLeadNotFound)
	}
	a.apply(lead, s)
	if s.Selected != nil {
		lead.SelectedSupplier = s.Selected.Supplier
		lead.SelectedUnit = s.Selected.UnitID
	}
	if err := a.leads.SaveLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to save contact: %w", err)
	}

	log.Printf("📞 Contact received for lead %s", lead.ID)
	a.notifyAsync(lead.AgentID, HandoffText(lead, s.Selected))
	return lead, nil
}

// Reassign moves a lead to another agent. The old record is deleted and a
// new one is created under the new agent.
func (a *LeadAssembler) Reassign(ctx context.Context, leadID, agentID string) (*model.Lead, error) {
	old, err := a.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	agent, err := a.agents.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.IsActive {
		return nil, fmt.Errorf("%w: agent %s is inactive", ErrInvalidLead, agentID)
	}
	if old.AgentID == agentID {
		return old, nil
	}

	moved := *old
	moved.ID = uuid.New().String()
	moved.AgentID = agentID
	moved.CreatedAt = a.now()
	moved.UpdatedAt = moved.CreatedAt
	if err := validateIdentity(moved.ClientID, moved.AgentID); err != nil {
		return nil, err
	}

	if err := a.leads.SaveLead(ctx, &moved); err != nil {
		return nil, fmt.Errorf("failed to save reassigned lead: %w", err)
	}
	if err := a.leads.DeleteLead(ctx, old.ID); err != nil {
		return nil, fmt.Errorf("failed to delete lead %s: %w", old.ID, err)
	}

	log.Printf("🔁 Lead %s reassigned from %s to %s as %s", old.ID, old.AgentID, agentID, moved.ID)
	if !moved.IsDraft() {
		a.notifyAsync(agentID, NewLeadText(&moved))
	}
	return &moved, nil
}

// UpdateStatus moves a lead along its lifecycle. Closing a lead with a
// commission amount stamps the payment time.
func (a *LeadAssembler) UpdateStatus(ctx context.Context, leadID string, update model.LeadStatusUpdate) (*model.Lead, error) {
	lead, err := a.leads.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !update.Status.Valid() || !lead.Status.CanTransition(update.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, lead.Status, update.Status)
	}

	lead.Status = update.Status
	if update.CommissionAmount != nil {
		if *update.CommissionAmount < 0 {
			return nil, fmt.Errorf("%w: negative commission", ErrInvalidTransition)
		}
		amount := *update.CommissionAmount
		lead.CommissionAmount = &amount
		if update.Status == model.LeadStatusClosed {
			paidAt := a.now()
			lead.CommissionPaidAt = &paidAt
		}
	}
	lead.UpdatedAt = a.now()

	if err := a.leads.SaveLead(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	log.Printf("📋 Lead %s is now %s", lead.ID, lead.Status)
	return lead, nil
}

// Wait blocks until background notifications finish
func (a *LeadAssembler) Wait() {
	a.pending.Wait()
}

// current loads the session's lead, nil when it has none yet
func (a *LeadAssembler) current(ctx context.Context, s *model.Session) (*model.Lead, error) {
	id := s.CurrentLeadID()
	if id == "" {
		return nil, nil
	}
	lead, err := a.leads.GetLead(ctx, id)
	if errors.Is(err, model.ErrLeadNotFound) {
		log.Printf("⚠️  Lead %s for client %s vanished, creating a new one", id, s.ClientID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lead %s: %w", id, err)
	}
	return lead, nil
}

func (a *LeadAssembler) newLead(s *model.Session, status model.LeadStatus) *model.Lead {
	now := a.now()
	return &model.Lead{
		ID:        uuid.New().String(),
		ClientID:  s.ClientID,
		Status:    status,
		CreatedAt: now,
	}
}

// apply copies session identity and requirements onto the lead
func (a *LeadAssembler) apply(lead *model.Lead, s *model.Session) {
	if s.Handle != "" {
		lead.Handle = s.Handle
	}
	if s.Name != "" {
		lead.Name = s.Name
	}
	if s.AgentID != "" {
		lead.AgentID = s.AgentID
	}
	lead.ApplyRequirements(s.Requirements)
	if lead.IsDraft() {
		lead.DraftStep = s.Step
	}
	lead.UpdatedAt = a.now()
}

// notifyAsync delivers text to the agent without blocking the caller;
// failures are logged only
func (a *LeadAssembler) notifyAsync(agentID, text string) {
	if a.notifier == nil {
		return
	}
	a.pending.Add(1)
	go func() {
		defer a.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.notifyTimeout)
		defer cancel()

		agent, err := a.agents.GetAgent(ctx, agentID)
		if err != nil {
			log.Printf("❌ Notification skipped, agent %s: %v", agentID, err)
			return
		}
		if err := a.notifier.NotifyAgent(ctx, agent, text); err != nil {
			log.Printf("❌ Failed to notify agent %s: %v", agentID, err)
		}
	}()
}

func validateIdentity(clientID, agentID string) error {
	if strings.TrimSpace(clientID) == "" {
		return fmt.Errorf("%w: empty client id", ErrInvalidLead)
	}
	if strings.TrimSpace(agentID) == "" {
		return fmt.Errorf("%w: empty agent id", ErrInvalidLead)
	}
	return nil
}

// LeadSummaryText renders the requirement block shared by client and agent
// messages
func LeadSummaryText(r model.RequirementSet) string {
	var b strings.Builder
	line := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}
	line("💰 Бюджет", r.Budget)
	line("📐 Площадь", r.Size)
	line("📍 Район", r.Location)
	line("🛏 Комнаты", r.Rooms)
	line("🏗 Готовность", r.Readiness)
	line("📞 Контакт", r.Contact)
	line("📝 Пожелания", utils.Truncate(r.Notes, notesPreviewLen))
	return strings.TrimRight(b.String(), "\n")
}

// NewLeadText is the agent notification for a finalized lead
func NewLeadText(lead *model.Lead) string {
	var b strings.Builder
	b.WriteString("🔔 Новая заявка\n")
	b.WriteString(clientLine(lead))
	b.WriteString(LeadSummaryText(lead.Requirements()))
	fmt.Fprintf(&b, "\n🆔 %s", lead.ID)
	return b.String()
}

// HandoffText is the agent notification once the client left a contact
func HandoffText(lead *model.Lead, selected *model.Selection) string {
	var b strings.Builder
	b.WriteString("📞 Клиент оставил контакт\n")
	b.WriteString(clientLine(lead))
	b.WriteString(LeadSummaryText(lead.Requirements()))
	if selected != nil {
		fmt.Fprintf(&b, "\n🏠 Выбранный объект: %s, %s", selected.Supplier, selected.UnitID)
	}
	fmt.Fprintf(&b, "\n🆔 %s", lead.ID)
	return b.String()
}

func clientLine(lead *model.Lead) string {
	name := lead.Name
	if name == "" {
		name = lead.ClientID
	}
	if lead.Handle != "" {
		return fmt.Sprintf("👤 %s (@%s)\n", name, strings.TrimPrefix(lead.Handle, "@"))
	}
	return fmt.Sprintf("👤 %s\n", name)
}
