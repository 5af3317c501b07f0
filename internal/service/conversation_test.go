package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadmatch/internal/config"
	"leadmatch/internal/model"
)

var questionnaireAnswers = []string{
	"до 150000",
	"60-80",
	"Гонио",
	"2 спальни",
	"готовое",
	"+995 555 000 000",
	"нет",
}

type conversationFixture struct {
	store    *memStore
	notifier *recordingNotifier
	matcher  *fakeMatcher
	leads    *LeadAssembler
}

func newConversationFixture() *conversationFixture {
	leads, store, notifier := newTestAssembler()
	return &conversationFixture{
		store:    store,
		notifier: notifier,
		matcher:  &fakeMatcher{matches: threeMatches()},
		leads:    leads,
	}
}

// service builds a fresh ConversationService over the same stores, as a
// restarted process would
func (f *conversationFixture) service(assistant Assistant) *ConversationService {
	return NewConversationService(assistant, f.matcher, f.leads, config.DefaultKeywords().Dialogue, config.SearchConfig{PageSize: 3, MaxPage: 5})
}

func countQuestions(replies []string, asked map[model.FieldName]int) {
	for _, text := range replies {
		for _, q := range Questionnaire {
			if text == q.Text {
				asked[q.Field]++
			}
		}
	}
}

func TestConversation_QuestionnaireCompletesOnce(t *testing.T) {
	f := newConversationFixture()
	svc := f.service(nil)
	ctx := context.Background()
	asked := map[model.FieldName]int{}

	resp, err := svc.Start(ctx, "client-1", "ivan", "Иван")
	require.NoError(t, err)
	assert.Equal(t, model.StateCollecting, resp.State)
	countQuestions(resp.Replies, asked)

	for i, answer := range questionnaireAnswers {
		resp, err = svc.HandleMessage(ctx, "client-1", answer)
		require.NoError(t, err)
		countQuestions(resp.Replies, asked)
		if i < len(questionnaireAnswers)-1 {
			assert.Equal(t, model.StateCollecting, resp.State)
		}
	}
	f.leads.Wait()

	for _, q := range Questionnaire {
		assert.Equal(t, 1, asked[q.Field], "question %s asked once", q.Field)
	}
	assert.Equal(t, model.StateAwaitingSelection, resp.State)
	assert.Len(t, resp.Matches, 3)
	assert.Equal(t, 1, f.matcher.calls)
	assert.Len(t, f.notifier.sent("agent-1"), 1, "lead finalized exactly once")

	lead, err := f.store.FindLeadByClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusNew, lead.Status)
	assert.Equal(t, "до 150000", lead.Budget)
	assert.Equal(t, "2 спальни", lead.Rooms)
	assert.Empty(t, lead.Notes, "«нет» clears notes")
	assert.Equal(t, 1, f.store.count())
}

func TestConversation_DraftRecoveryResumesAtNextStep(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()

	first := f.service(nil)
	_, err := first.Start(ctx, "client-1", "ivan", "Иван")
	require.NoError(t, err)
	for _, answer := range questionnaireAnswers[:3] {
		_, err = first.HandleMessage(ctx, "client-1", answer)
		require.NoError(t, err)
	}

	draft, err := f.store.FindLeadByClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusDraft, draft.Status)
	assert.Equal(t, 3, draft.DraftStep)

	// process restart: no in-memory session
	second := f.service(nil)
	resp, err := second.Start(ctx, "client-1", "", "")
	require.NoError(t, err)
	assert.Contains(t, resp.Replies, Questionnaire[3].Text)

	s, ok := second.Session("client-1")
	require.True(t, ok)
	assert.Equal(t, 3, s.Step)
	assert.Equal(t, "Гонио", s.Requirements.Location)

	asked := map[model.FieldName]int{}
	for _, answer := range questionnaireAnswers[3:] {
		resp, err = second.HandleMessage(ctx, "client-1", answer)
		require.NoError(t, err)
		countQuestions(resp.Replies, asked)
	}
	f.leads.Wait()

	assert.Zero(t, asked[model.FieldBudget])
	assert.Zero(t, asked[model.FieldSize])
	assert.Zero(t, asked[model.FieldLocation])
	assert.Equal(t, model.StateAwaitingSelection, resp.State)
	assert.Equal(t, 1, f.store.count(), "draft promoted, not duplicated")
}

func TestConversation_MessageAfterRestartAnswersCurrentStep(t *testing.T) {
	f := newConversationFixture()
	ctx := context.Background()

	first := f.service(nil)
	_, err := first.Start(ctx, "client-1", "", "")
	require.NoError(t, err)
	_, err = first.HandleMessage(ctx, "client-1", "до 150000")
	require.NoError(t, err)

	second := f.service(nil)
	resp, err := second.HandleMessage(ctx, "client-1", "60-80")
	require.NoError(t, err)
	assert.Equal(t, []string{Questionnaire[2].Text}, resp.Replies)

	s, _ := second.Session("client-1")
	assert.Equal(t, "60-80", s.Requirements.Size)
}

func completedSession(t *testing.T, f *conversationFixture, svc *ConversationService) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Start(ctx, "client-1", "ivan", "Иван")
	require.NoError(t, err)
	for _, answer := range questionnaireAnswers {
		_, err = svc.HandleMessage(ctx, "client-1", answer)
		require.NoError(t, err)
	}
	f.leads.Wait()
}

func TestConversation_SelectionFlow(t *testing.T) {
	f := newConversationFixture()
	svc := f.service(nil)
	ctx := context.Background()
	completedSession(t, f, svc)

	t.Run("out of range index re-prompts", func(t *testing.T) {
		resp, err := svc.HandleMessage(ctx, "client-1", "9")
		require.NoError(t, err)
		assert.Equal(t, model.StateAwaitingSelection, resp.State)
		require.Len(t, resp.Replies, 1)
		assert.Contains(t, resp.Replies[0], "от 1 до 3")

		resp, err = svc.SelectApartment(ctx, "client-1", 0)
		require.NoError(t, err)
		assert.Equal(t, model.StateAwaitingSelection, resp.State)
	})

	t.Run("text without a number re-prompts", func(t *testing.T) {
		resp, err := svc.HandleMessage(ctx, "client-1", "хм")
		require.NoError(t, err)
		assert.Equal(t, model.StateAwaitingSelection, resp.State)
	})

	t.Run("contact before selection is refused", func(t *testing.T) {
		resp, err := svc.SubmitContact(ctx, "client-1", "+995 555 111 111")
		require.NoError(t, err)
		assert.Equal(t, []string{msgNotAwaitingPhone}, resp.Replies)
		assert.Equal(t, model.StateAwaitingSelection, resp.State)
	})

	t.Run("valid index asks for contact", func(t *testing.T) {
		resp, err := svc.HandleMessage(ctx, "client-1", "беру 2")
		require.NoError(t, err)
		assert.Equal(t, model.StateAwaitingContact, resp.State)
		assert.Equal(t, []string{msgAskContact}, resp.Replies)
	})

	t.Run("contact hands off and closes", func(t *testing.T) {
		resp, err := svc.SubmitContact(ctx, "client-1", "  @ivan_b  ")
		require.NoError(t, err)
		f.leads.Wait()
		assert.Equal(t, model.StateTerminal, resp.State)
		assert.Equal(t, []string{msgThanks}, resp.Replies)

		_, ok := svc.Session("client-1")
		assert.False(t, ok)

		lead, err := f.store.FindLeadByClient(ctx, "client-1")
		require.NoError(t, err)
		assert.Equal(t, "@ivan_b", lead.Contact)
		assert.Equal(t, "alpha", lead.SelectedSupplier)
		assert.Equal(t, "A-2", lead.SelectedUnit)

		sent := f.notifier.sent("agent-1")
		require.Len(t, sent, 2)
		assert.Contains(t, sent[1], "alpha, A-2")
	})
}

func TestConversation_NegativeResponseInvitesRefinement(t *testing.T) {
	f := newConversationFixture()
	svc := f.service(nil)
	ctx := context.Background()
	completedSession(t, f, svc)

	resp, err := svc.HandleMessage(ctx, "client-1", "Ничего не подходит")
	require.NoError(t, err)
	f.leads.Wait()

	assert.Equal(t, model.StateCollecting, resp.State)
	assert.Equal(t, []string{msgRefine}, resp.Replies)
	s, _ := svc.Session("client-1")
	assert.True(t, s.Refining)
	assert.False(t, s.AwaitingSelection)
	assert.Equal(t, 1, f.store.count(), "no duplicate lead")
	assert.Len(t, f.notifier.sent("agent-1"), 1)

	// without a language model refinement restarts the questionnaire
	resp, err = svc.HandleMessage(ctx, "client-1", "хочу дешевле")
	require.NoError(t, err)
	assert.Equal(t, []string{msgFallback, Questionnaire[0].Text}, resp.Replies)

	// contact survives the restart, notes are asked again
	for _, answer := range append(questionnaireAnswers[:5:5], "нет") {
		resp, err = svc.HandleMessage(ctx, "client-1", answer)
		require.NoError(t, err)
	}
	f.leads.Wait()
	assert.Equal(t, model.StateAwaitingSelection, resp.State)
	assert.Equal(t, 1, f.store.count(), "lead updated in place")
	assert.Len(t, f.notifier.sent("agent-1"), 1)
}

func TestConversation_MorePagesThroughMatches(t *testing.T) {
	f := newConversationFixture()
	f.matcher.matches = append(threeMatches(), model.Match{Supplier: "gamma", UnitID: "G-1", Score: 30})
	svc := f.service(nil)
	ctx := context.Background()
	completedSession(t, f, svc)

	resp, err := svc.HandleMessage(ctx, "client-1", "ещё")
	require.NoError(t, err)
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "G-1", resp.Matches[0].UnitID)

	resp, err = svc.HandleMessage(ctx, "client-1", "еще")
	require.NoError(t, err)
	assert.Equal(t, []string{msgNoMoreMatches}, resp.Replies)
	assert.Equal(t, model.StateAwaitingSelection, resp.State)

	resp, err = svc.SelectApartment(ctx, "client-1", 1)
	require.NoError(t, err)
	assert.Equal(t, model.StateAwaitingContact, resp.State)
	s, _ := svc.Session("client-1")
	assert.Equal(t, "G-1", s.Selected.UnitID)
}

func TestConversation_NoMatchesInvitesAdjustment(t *testing.T) {
	f := newConversationFixture()
	f.matcher.matches = nil
	svc := f.service(nil)
	completedSession(t, f, svc)

	s, ok := svc.Session("client-1")
	require.True(t, ok)
	assert.Equal(t, model.StateCollecting, s.State())
	assert.True(t, s.Refining)

	resp, err := svc.SelectApartment(context.Background(), "client-1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{msgNotSelecting}, resp.Replies)
}

func TestConversation_LLMFirstWriteWins(t *testing.T) {
	f := newConversationFixture()
	assistant := &scriptedAssistant{
		available: true,
		reply:     "Какой район?",
		extractions: []*model.ExtractionResult{
			{Fields: map[model.FieldName]string{model.FieldBudget: "150000 USD", model.FieldSize: "от 60"}},
			{Fields: map[model.FieldName]string{model.FieldBudget: "999 USD", model.FieldLocation: "Гонио"}},
			{Fields: map[model.FieldName]string{model.FieldRooms: "2", model.FieldReadiness: "готовое"}, IsComplete: true},
		},
	}
	svc := f.service(assistant)
	ctx := context.Background()

	resp, err := svc.Start(ctx, "client-1", "ivan", "Иван")
	require.NoError(t, err)
	assert.Equal(t, []string{msgGreetingLLM}, resp.Replies)

	resp, err = svc.HandleMessage(ctx, "client-1", "Бюджет 150 тысяч долларов, от 60 метров")
	require.NoError(t, err)
	assert.Equal(t, []string{"Какой район?"}, resp.Replies)

	_, err = svc.HandleMessage(ctx, "client-1", "Гонио, и бюджет поменьше")
	require.NoError(t, err)
	s, _ := svc.Session("client-1")
	assert.Equal(t, "150000 USD", s.Requirements.Budget, "extractor cannot overwrite a confirmed field")
	assert.Equal(t, "Гонио", s.Requirements.Location)

	draft, err := f.store.FindLeadByClient(ctx, "client-1")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusDraft, draft.Status)
	assert.Equal(t, "Гонио", draft.Location)

	resp, err = svc.HandleMessage(ctx, "client-1", "двушка, готовая")
	require.NoError(t, err)
	f.leads.Wait()
	assert.Equal(t, model.StateAwaitingSelection, resp.State)
	assert.Len(t, f.notifier.sent("agent-1"), 1)
}

func TestConversation_LLMFallsBackToQuestionnaire(t *testing.T) {
	f := newConversationFixture()
	assistant := &scriptedAssistant{
		available: true,
		extractions: []*model.ExtractionResult{
			{Fields: map[model.FieldName]string{model.FieldBudget: "до 150000"}},
		},
		reply: "Какая площадь?",
	}
	svc := f.service(assistant)
	ctx := context.Background()
	_, err := svc.Start(ctx, "client-1", "", "")
	require.NoError(t, err)
	_, err = svc.HandleMessage(ctx, "client-1", "до 150000")
	require.NoError(t, err)

	assistant.extractErr = ErrCapabilityUnavailable
	resp, err := svc.HandleMessage(ctx, "client-1", "60 метров")
	require.NoError(t, err)
	assert.Equal(t, []string{msgFallback, Questionnaire[1].Text}, resp.Replies)

	s, _ := svc.Session("client-1")
	assert.Equal(t, model.ModeQuestionnaire, s.Mode)
	assert.Equal(t, 1, s.Step, "budget already known, questionnaire starts at size")

	resp, err = svc.HandleMessage(ctx, "client-1", "60-80")
	require.NoError(t, err)
	assert.Equal(t, []string{Questionnaire[2].Text}, resp.Replies)
}

func TestConversation_LLMParseFailureContinues(t *testing.T) {
	f := newConversationFixture()
	assistant := &scriptedAssistant{available: true, extractErr: ErrExtractionParse, reply: "Уточните бюджет?"}
	svc := f.service(assistant)
	ctx := context.Background()
	_, err := svc.Start(ctx, "client-1", "", "")
	require.NoError(t, err)

	resp, err := svc.HandleMessage(ctx, "client-1", "привет")
	require.NoError(t, err)
	assert.Equal(t, []string{"Уточните бюджет?"}, resp.Replies)
	s, _ := svc.Session("client-1")
	assert.Equal(t, model.ModeLLM, s.Mode)
}

func TestConversation_LLMReplyFailureUsesCannedQuestion(t *testing.T) {
	f := newConversationFixture()
	assistant := &scriptedAssistant{available: true, replyErr: ErrCapabilityUnavailable}
	svc := f.service(assistant)
	ctx := context.Background()
	_, err := svc.Start(ctx, "client-1", "", "")
	require.NoError(t, err)

	resp, err := svc.HandleMessage(ctx, "client-1", "привет")
	require.NoError(t, err)
	assert.Equal(t, []string{Questionnaire[0].Text}, resp.Replies)
}

func TestConversation_WelcomeBackAfterFinalizedLead(t *testing.T) {
	f := newConversationFixture()
	completedSession(t, f, f.service(nil))

	svc := f.service(nil)
	resp, err := svc.Start(context.Background(), "client-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{msgWelcomeBack}, resp.Replies)

	resp, err = svc.HandleMessage(context.Background(), "client-1", "любой текст")
	require.NoError(t, err)
	assert.Equal(t, []string{msgFallback, Questionnaire[0].Text}, resp.Replies)
}

func TestConversation_NoActiveAgent(t *testing.T) {
	f := newConversationFixture()
	for id, agent := range f.store.agents {
		agent.IsActive = false
		f.store.agents[id] = agent
	}
	svc := f.service(nil)

	resp, err := svc.Start(context.Background(), "client-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{msgNoAgent}, resp.Replies)
	assert.Equal(t, model.StateTerminal, resp.State)
}

func TestConversation_Voice(t *testing.T) {
	f := newConversationFixture()
	svc := f.service(&scriptedAssistant{})
	ctx := context.Background()

	resp, err := svc.HandleVoice(ctx, "client-1", []byte("ogg"), "voice.ogg")
	require.NoError(t, err)
	assert.Equal(t, []string{msgVoiceFailed}, resp.Replies)

	svc = f.service(&scriptedAssistant{transcript: "до 150000"})
	_, err = svc.Start(ctx, "client-2", "", "")
	require.NoError(t, err)
	resp, err = svc.HandleVoice(ctx, "client-2", []byte("ogg"), "voice.ogg")
	require.NoError(t, err)
	require.NotEmpty(t, resp.Replies)
	assert.Equal(t, "🎤 до 150000", resp.Replies[0])
	s, _ := svc.Session("client-2")
	assert.Equal(t, "до 150000", s.Requirements.Budget)
}

func TestConversation_CancelKeepsDraft(t *testing.T) {
	f := newConversationFixture()
	svc := f.service(nil)
	ctx := context.Background()
	_, err := svc.Start(ctx, "client-1", "", "")
	require.NoError(t, err)
	_, err = svc.HandleMessage(ctx, "client-1", "до 150000")
	require.NoError(t, err)

	resp := svc.Cancel(ctx, "client-1")
	assert.Equal(t, model.StateTerminal, resp.State)
	_, ok := svc.Session("client-1")
	assert.False(t, ok)

	resp, err = svc.Start(ctx, "client-1", "", "")
	require.NoError(t, err)
	assert.Contains(t, resp.Replies, Questionnaire[1].Text)
}

func TestConversation_EmptyAnswerRepeatsQuestion(t *testing.T) {
	f := newConversationFixture()
	svc := f.service(nil)
	ctx := context.Background()
	_, err := svc.Start(ctx, "client-1", "", "")
	require.NoError(t, err)

	resp, err := svc.HandleMessage(ctx, "client-1", "   ")
	require.NoError(t, err)
	assert.Equal(t, []string{msgEmptyAnswer, Questionnaire[0].Text}, resp.Replies)
	s, _ := svc.Session("client-1")
	assert.Equal(t, 0, s.Step)
}

func TestConversation_ConcurrentMessagesForOneClient(t *testing.T) {
	f := newConversationFixture()
	svc := f.service(nil)
	ctx := context.Background()
	_, err := svc.Start(ctx, "client-1", "ivan", "Иван")
	require.NoError(t, err)

	answers := []string{"до 150000", "60-80"}
	var wg sync.WaitGroup
	for _, answer := range answers {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_, err := svc.HandleMessage(ctx, "client-1", text)
			assert.NoError(t, err)
		}(answer)
	}
	wg.Wait()

	s, ok := svc.Session("client-1")
	require.True(t, ok)
	assert.Equal(t, 2, s.Step)
	assert.ElementsMatch(t, answers, []string{s.Requirements.Budget, s.Requirements.Size})
	assert.Equal(t, 1, f.store.count(), "one draft per client")
}

func TestConversation_RefineKeepsFinalizedLead(t *testing.T) {
	f := newConversationFixture()
	svc := f.service(nil)
	ctx := context.Background()
	completedSession(t, f, svc)

	s, _ := svc.Session("client-1")
	leadID := s.LeadID
	require.NotEmpty(t, leadID)

	_, err := svc.HandleMessage(ctx, "client-1", "ничего не подходит")
	require.NoError(t, err)
	_, err = svc.HandleMessage(ctx, "client-1", "хочу дешевле")
	require.NoError(t, err)

	lead, err := f.store.GetLead(ctx, leadID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusNew, lead.Status)
	assert.Equal(t, "до 150000", lead.Budget)
	assert.Equal(t, "60-80", lead.Size)
	assert.Equal(t, "Гонио", lead.Location)
	assert.NotEmpty(t, lead.Rooms)

	// a restarted process greets the client over the intact lead
	restarted := f.service(nil)
	resp, err := restarted.Start(ctx, "client-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{msgWelcomeBack}, resp.Replies)
	rs, _ := restarted.Session("client-1")
	assert.Equal(t, "до 150000", rs.Requirements.Budget)

	// finishing the refined questionnaire writes the new criteria in place
	refined := []string{"до 120000", "60-80", "Гонио", "2 спальни", "готовое", "нет"}
	for _, answer := range refined {
		resp, err = svc.HandleMessage(ctx, "client-1", answer)
		require.NoError(t, err)
	}
	f.leads.Wait()
	assert.Equal(t, model.StateAwaitingSelection, resp.State)

	lead, err = f.store.GetLead(ctx, leadID)
	require.NoError(t, err)
	assert.Equal(t, "до 120000", lead.Budget)
	assert.Equal(t, 1, f.store.count())
}

func TestConversation_NumberWinsOverNegativeWord(t *testing.T) {
	f := newConversationFixture()
	svc := f.service(nil)
	ctx := context.Background()
	completedSession(t, f, svc)

	resp, err := svc.HandleMessage(ctx, "client-1", "2, ничего лучше не надо")
	require.NoError(t, err)
	assert.Equal(t, model.StateAwaitingContact, resp.State)
	assert.Equal(t, []string{msgAskContact}, resp.Replies)
}
