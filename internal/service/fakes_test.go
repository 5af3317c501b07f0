package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"leadmatch/internal/model"
)

type memStore struct {
	mu     sync.Mutex
	leads  map[string]model.Lead
	agents map[string]model.Agent
	saves  int
}

func newMemStore() *memStore {
	return &memStore{leads: map[string]model.Lead{}, agents: map[string]model.Agent{}}
}

func (m *memStore) GetLead(_ context.Context, id string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok {
		return nil, model.ErrLeadNotFound
	}
	return &lead, nil
}

func (m *memStore) SaveLead(_ context.Context, lead *model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[lead.ID] = *lead
	m.saves++
	return nil
}

func (m *memStore) FindLeadByClient(_ context.Context, clientID string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *model.Lead
	for _, lead := range m.leads {
		if lead.ClientID != clientID {
			continue
		}
		if found == nil || lead.CreatedAt.After(found.CreatedAt) {
			l := lead
			found = &l
		}
	}
	if found == nil {
		return nil, model.ErrLeadNotFound
	}
	return found, nil
}

func (m *memStore) DeleteLead(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leads[id]; !ok {
		return model.ErrLeadNotFound
	}
	delete(m.leads, id)
	return nil
}

func (m *memStore) ListLeads(_ context.Context, agentID string, status model.LeadStatus) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Lead
	for _, lead := range m.leads {
		if (agentID == "" || lead.AgentID == agentID) && (status == "" || lead.Status == status) {
			out = append(out, lead)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leads)
}

func (m *memStore) GetAgent(_ context.Context, id string) (*model.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agent, ok := m.agents[id]
	if !ok {
		return nil, model.ErrAgentNotFound
	}
	return &agent, nil
}

func (m *memStore) SaveAgent(_ context.Context, agent *model.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[agent.ID] = *agent
	return nil
}

func (m *memStore) ListAgents(_ context.Context) ([]model.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a)
	}
	return out, nil
}

func (m *memStore) addAgent(id string, active bool, created time.Time) {
	m.agents[id] = model.Agent{ID: id, FullName: "Agent " + id, IsActive: active, CreatedAt: created}
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages map[string][]string
	err      error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{messages: map[string][]string{}}
}

func (n *recordingNotifier) NotifyAgent(_ context.Context, agent *model.Agent, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages[agent.ID] = append(n.messages[agent.ID], text)
	return n.err
}

func (n *recordingNotifier) sent(agentID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages[agentID]...)
}

type fakeMatcher struct {
	matches []model.Match
	err     error
	calls   int
}

func (f *fakeMatcher) Match(_ context.Context, _ model.RequirementSet, maxResults, offset int) ([]model.Match, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.matches) {
		return []model.Match{}, nil
	}
	end := offset + maxResults
	if end > len(f.matches) {
		end = len(f.matches)
	}
	return f.matches[offset:end], nil
}

func threeMatches() []model.Match {
	return []model.Match{
		{Supplier: "alpha", UnitID: "A-1", Score: 105, Fields: []model.Field{{Column: "Unit", Value: "A-1"}}},
		{Supplier: "alpha", UnitID: "A-2", Score: 80, Fields: []model.Field{{Column: "Unit", Value: "A-2"}}},
		{Supplier: "beta", UnitID: "B-7", Score: 55, Fields: []model.Field{{Column: "Unit", Value: "B-7"}}},
	}
}

// scriptedAssistant replays extraction results in order
type scriptedAssistant struct {
	available   bool
	extractions []*model.ExtractionResult
	extractErr  error
	reply       string
	replyErr    error
	transcript  string
	extracted   int
}

func (a *scriptedAssistant) Available() bool { return a.available }

func (a *scriptedAssistant) GenerateReply(_ context.Context, _ []model.Message, _ string) (string, error) {
	return a.reply, a.replyErr
}

func (a *scriptedAssistant) ExtractFields(_ context.Context, _ []model.Message) (*model.ExtractionResult, error) {
	if a.extractErr != nil {
		if errors.Is(a.extractErr, ErrExtractionParse) {
			return &model.ExtractionResult{Fields: map[model.FieldName]string{}}, a.extractErr
		}
		return nil, a.extractErr
	}
	if a.extracted >= len(a.extractions) {
		return &model.ExtractionResult{Fields: map[model.FieldName]string{}}, nil
	}
	r := a.extractions[a.extracted]
	a.extracted++
	return r, nil
}

func (a *scriptedAssistant) Transcribe(_ context.Context, _ []byte, _ string) (string, error) {
	if a.transcript == "" {
		return "", ErrCapabilityUnavailable
	}
	return a.transcript, nil
}
