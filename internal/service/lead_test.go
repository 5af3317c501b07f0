package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadmatch/internal/model"
)

func newTestAssembler() (*LeadAssembler, *memStore, *recordingNotifier) {
	store := newMemStore()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.addAgent("agent-2", true, base.Add(time.Hour))
	store.addAgent("agent-1", true, base)
	store.addAgent("agent-0", false, base.Add(-time.Hour))
	notifier := newRecordingNotifier()
	return NewLeadAssembler(store, store, notifier), store, notifier
}

func testSession() *model.Session {
	s := model.NewSession("client-1", "ivan", "Иван", model.ModeQuestionnaire)
	s.AgentID = "agent-1"
	s.Requirements = fullRequirements()
	return s
}

func TestLeadAssembler_AssignAgentPicksEarliestActive(t *testing.T) {
	a, store, _ := newTestAssembler()

	id, err := a.AssignAgent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "agent-1", id)

	for id, agent := range store.agents {
		agent.IsActive = false
		store.agents[id] = agent
	}
	_, err = a.AssignAgent(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveAgent)
}

func TestLeadAssembler_DraftThenFinalize(t *testing.T) {
	a, store, notifier := newTestAssembler()
	ctx := context.Background()
	s := testSession()
	s.Step = 3

	require.NoError(t, a.SaveDraft(ctx, s))
	require.NotEmpty(t, s.DraftLeadID)
	draft, err := store.GetLead(ctx, s.DraftLeadID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusDraft, draft.Status)
	assert.Equal(t, 3, draft.DraftStep)

	lead, err := a.Finalize(ctx, s)
	require.NoError(t, err)
	a.Wait()

	assert.Equal(t, draft.ID, lead.ID, "draft promoted in place")
	assert.Equal(t, model.LeadStatusNew, lead.Status)
	assert.Equal(t, 0, lead.DraftStep)
	assert.Equal(t, lead.ID, s.LeadID)
	assert.Empty(t, s.DraftLeadID)
	assert.Equal(t, 1, store.count())
	require.Len(t, notifier.sent("agent-1"), 1)
	assert.Contains(t, notifier.sent("agent-1")[0], "Новая заявка")

	// finalizing again updates without a second notification
	s.Requirements.Budget = "до 90000"
	_, err = a.Finalize(ctx, s)
	require.NoError(t, err)
	a.Wait()
	assert.Len(t, notifier.sent("agent-1"), 1)
	assert.Equal(t, 1, store.count())
}

func TestLeadAssembler_FinalizeWithoutDraftCreates(t *testing.T) {
	a, store, _ := newTestAssembler()
	lead, err := a.Finalize(context.Background(), testSession())
	require.NoError(t, err)
	a.Wait()
	assert.Equal(t, model.LeadStatusNew, lead.Status)
	assert.Equal(t, 1, store.count())
}

func TestLeadAssembler_FinalizeRejectsMissingIdentity(t *testing.T) {
	a, store, _ := newTestAssembler()

	s := testSession()
	s.AgentID = ""
	_, err := a.Finalize(context.Background(), s)
	assert.ErrorIs(t, err, ErrInvalidLead)

	s = testSession()
	s.ClientID = " "
	_, err = a.Finalize(context.Background(), s)
	assert.ErrorIs(t, err, ErrInvalidLead)
	assert.Equal(t, 0, store.count())
}

func TestLeadAssembler_NotificationFailureIsSwallowed(t *testing.T) {
	a, store, notifier := newTestAssembler()
	notifier.err = errors.New("discord down")

	lead, err := a.Finalize(context.Background(), testSession())
	require.NoError(t, err)
	a.Wait()

	stored, err := store.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusNew, stored.Status)
}

func TestLeadAssembler_Handoff(t *testing.T) {
	a, store, notifier := newTestAssembler()
	ctx := context.Background()
	s := testSession()
	_, err := a.Finalize(ctx, s)
	require.NoError(t, err)

	s.Requirements.Contact = "+995 555 000 000"
	s.Selected = &model.Selection{Supplier: "alpha", UnitID: "A-1"}
	lead, err := a.Handoff(ctx, s)
	require.NoError(t, err)
	a.Wait()

	stored, _ := store.GetLead(ctx, lead.ID)
	assert.Equal(t, "+995 555 000 000", stored.Contact)
	assert.Equal(t, "alpha", stored.SelectedSupplier)
	assert.Equal(t, "A-1", stored.SelectedUnit)

	sent := notifier.sent("agent-1")
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1], "alpha, A-1")
}

func TestLeadAssembler_Reassign(t *testing.T) {
	a, store, notifier := newTestAssembler()
	ctx := context.Background()
	old, err := a.Finalize(ctx, testSession())
	require.NoError(t, err)

	moved, err := a.Reassign(ctx, old.ID, "agent-2")
	require.NoError(t, err)
	a.Wait()

	assert.NotEqual(t, old.ID, moved.ID)
	assert.Equal(t, "agent-2", moved.AgentID)
	_, err = store.GetLead(ctx, old.ID)
	assert.ErrorIs(t, err, model.ErrLeadNotFound)
	assert.Equal(t, 1, store.count())
	assert.Len(t, notifier.sent("agent-2"), 1)

	_, err = a.Reassign(ctx, moved.ID, "agent-0")
	assert.ErrorIs(t, err, ErrInvalidLead, "inactive agent")
	_, err = a.Reassign(ctx, moved.ID, "nobody")
	assert.ErrorIs(t, err, model.ErrAgentNotFound)
}

func TestLeadAssembler_UpdateStatus(t *testing.T) {
	a, _, _ := newTestAssembler()
	ctx := context.Background()
	paid := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return paid }

	lead, err := a.Finalize(ctx, testSession())
	require.NoError(t, err)

	tests := []struct {
		name    string
		status  model.LeadStatus
		wantErr bool
	}{
		{"back to draft", model.LeadStatusDraft, true},
		{"unknown", model.LeadStatus("lost"), true},
		{"contacted", model.LeadStatusContacted, false},
		{"viewing", model.LeadStatusViewing, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.UpdateStatus(ctx, lead.ID, model.LeadStatusUpdate{Status: tt.status})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	amount := 3500.0
	closed, err := a.UpdateStatus(ctx, lead.ID, model.LeadStatusUpdate{Status: model.LeadStatusClosed, CommissionAmount: &amount})
	require.NoError(t, err)
	require.NotNil(t, closed.CommissionAmount)
	assert.Equal(t, 3500.0, *closed.CommissionAmount)
	require.NotNil(t, closed.CommissionPaidAt)
	assert.True(t, closed.CommissionPaidAt.Equal(paid))

	_, err = a.UpdateStatus(ctx, lead.ID, model.LeadStatusUpdate{Status: model.LeadStatusNew})
	assert.ErrorIs(t, err, ErrInvalidTransition, "closed is final")
}

func TestNewLeadText_TruncatesNotes(t *testing.T) {
	lead := &model.Lead{ID: "l-1", ClientID: "c-1", Handle: "@ivan", Name: "Иван", Notes: strings.Repeat("н", 300)}
	text := NewLeadText(lead)

	assert.Contains(t, text, "👤 Иван (@ivan)")
	assert.Contains(t, text, strings.Repeat("н", 200)+"...")
	assert.NotContains(t, text, strings.Repeat("н", 201))
	assert.NotContains(t, text, "Бюджет", "empty fields are omitted")
}

func TestLeadAssembler_RegisterAgent(t *testing.T) {
	a, store, _ := newTestAssembler()
	ctx := context.Background()

	agent, err := a.RegisterAgent(ctx, model.AgentRegisterRequest{Handle: " @maria ", FullName: "Мария", NotifyChannelID: "42"})
	require.NoError(t, err)
	assert.Equal(t, "maria", agent.Handle)
	assert.True(t, agent.IsActive)
	assert.NotEmpty(t, agent.ID)

	stored, err := store.GetAgent(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "42", stored.NotifyChannelID)

	_, err = a.RegisterAgent(ctx, model.AgentRegisterRequest{Handle: "@", FullName: "x"})
	assert.ErrorIs(t, err, ErrInvalidLead)
}

func TestLeadAssembler_SaveDraftLeavesFinalizedLead(t *testing.T) {
	a, store, _ := newTestAssembler()
	ctx := context.Background()
	s := testSession()

	lead, err := a.Finalize(ctx, s)
	require.NoError(t, err)
	a.Wait()

	s.Requirements.Budget = ""
	s.Requirements.Size = ""
	require.NoError(t, a.SaveDraft(ctx, s))

	stored, err := store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusNew, stored.Status)
	assert.Equal(t, lead.Budget, stored.Budget)
	assert.Equal(t, lead.Size, stored.Size)
	assert.Empty(t, s.DraftLeadID)
	assert.Equal(t, 1, store.count())
}
