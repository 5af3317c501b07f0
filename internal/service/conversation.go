package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"leadmatch/internal/config"
	"leadmatch/internal/logging"
	"leadmatch/internal/model"
	"leadmatch/internal/utils"
)

// Client-facing messages
const (
	msgGreeting         = "👋 Здравствуйте! Я помогу подобрать квартиру из актуальных предложений застройщиков. Задам несколько коротких вопросов."
	msgGreetingLLM      = "👋 Здравствуйте! Я помогу подобрать квартиру из актуальных предложений застройщиков. Расскажите, что вы ищете: бюджет, площадь, район, количество комнат и стадию готовности."
	msgResume           = "С возвращением! Продолжим с того места, где остановились."
	msgWelcomeBack      = "С возвращением! Ваша заявка уже передана агенту. Если хотите изменить критерии, просто напишите, что поменять."
	msgNoAgent          = "Сейчас нет свободных агентов. Пожалуйста, попробуйте чуть позже."
	msgFallback         = "Перейдём к короткой анкете."
	msgSearching        = "✅ Спасибо! Вот ваш запрос:"
	msgNoMatches        = "😔 Пока не нашёл подходящих вариантов. Хотите изменить критерии? Напишите, что поменять."
	msgNoMoreMatches    = "Больше вариантов нет. Выберите номер из списка выше или напишите «ничего не подходит»."
	msgMatchesHeader    = "🏠 Подходящие варианты:"
	msgMatchesFooter    = "Напишите номер понравившегося варианта, «ещё» для следующих или «ничего не подходит»."
	msgRefine           = "Понял. Что изменить в критериях? Например: «бюджет до 120 000» или «район Гонио»."
	msgRefineUnclear    = "Не понял, что изменить. Например: «бюджет до 120 000» или «район Гонио»."
	msgAskContact       = "Отличный выбор! 👍 Оставьте телефон или ник в мессенджере, и агент свяжется с вами."
	msgContactEmpty     = "Пожалуйста, отправьте телефон или ник в мессенджере."
	msgThanks           = "Спасибо! Агент свяжется с вами в ближайшее время. 🙌"
	msgCancelled        = "Диалог завершён. Чтобы начать заново, просто напишите."
	msgNotSelecting     = "Сначала давайте подберём варианты."
	msgNotAwaitingPhone = "Контакт понадобится после выбора варианта."
	msgStoreFailure     = "Не удалось сохранить заявку. Пожалуйста, попробуйте ещё раз чуть позже."
	msgVoiceFailed      = "Не удалось распознать голосовое сообщение. Пожалуйста, напишите текстом."
	msgEmptyAnswer      = "Не понял ответ. Попробуйте ещё раз."
)

// Matcher ranks inventory against requirements
type Matcher interface {
	Match(ctx context.Context, req model.RequirementSet, maxResults, offset int) ([]model.Match, error)
}

// ConversationService runs the per-client dialogue. Calls for one client are
// serialized; different clients proceed in parallel.
type ConversationService struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	locks    map[string]*clientLock

	assistant Assistant
	matcher   Matcher
	leads     *LeadAssembler
	keywords  config.DialogueKeywords
	pageSize  int
	maxPage   int
}

// NewConversationService creates a new conversation service
func NewConversationService(assistant Assistant, matcher Matcher, leads *LeadAssembler, keywords config.DialogueKeywords, search config.SearchConfig) *ConversationService {
	pageSize := search.PageSize
	if pageSize <= 0 {
		pageSize = 5
	}
	return &ConversationService{
		sessions:  make(map[string]*model.Session),
		locks:     make(map[string]*clientLock),
		assistant: assistant,
		matcher:   matcher,
		leads:     leads,
		keywords:  keywords,
		pageSize:  pageSize,
		maxPage:   search.MaxPage,
	}
}

type clientLock struct {
	mu   sync.Mutex
	refs int
}

// lockClient blocks until no other call holds clientID and returns the
// matching unlock
func (c *ConversationService) lockClient(clientID string) func() {
	c.mu.Lock()
	l, ok := c.locks[clientID]
	if !ok {
		l = &clientLock{}
		c.locks[clientID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(c.locks, clientID)
		}
		c.mu.Unlock()
	}
}

// reply collects outgoing messages for one inbound event
type reply struct {
	texts   []string
	matches []model.Match
}

func (r *reply) say(texts ...string) {
	for _, t := range texts {
		if t = strings.TrimSpace(t); t != "" {
			r.texts = append(r.texts, t)
		}
	}
}

func (c *ConversationService) respond(s *model.Session, r *reply) *model.ConversationResponse {
	state := model.StateTerminal
	if s != nil {
		state = s.State()
	}
	return &model.ConversationResponse{
		Replies: r.texts,
		State:   state,
		Matches: r.matches,
	}
}

// Session returns a copy of the in-memory session, if any
func (c *ConversationService) Session(clientID string) (model.Session, bool) {
	defer c.lockClient(clientID)()
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[clientID]
	if !ok {
		return model.Session{}, false
	}
	return *s, true
}

func (c *ConversationService) lookup(clientID string) *model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[clientID]
}

func (c *ConversationService) store(s *model.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.ClientID] = s
}

func (c *ConversationService) drop(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, clientID)
}

func (c *ConversationService) initialMode() model.Mode {
	if c.assistant != nil && c.assistant.Available() {
		return model.ModeLLM
	}
	return model.ModeQuestionnaire
}

// openKind tells how a session came to exist
type openKind int

const (
	openNone openKind = iota // no agent available
	openNew
	openDraft
	openFinalized
)

// Start begins or resumes the dialogue for a client
func (c *ConversationService) Start(ctx context.Context, clientID, handle, name string) (*model.ConversationResponse, error) {
	defer c.lockClient(clientID)()
	r := &reply{}
	if s := c.lookup(clientID); s != nil {
		r.say(msgResume)
		c.prompt(s, r)
		return c.respond(s, r), nil
	}

	s, kind, err := c.open(ctx, clientID, handle, name)
	if err != nil {
		return nil, err
	}
	c.greet(ctx, s, kind, r)
	return c.respond(s, r), nil
}

// greet tells a client how their freshly opened session continues
func (c *ConversationService) greet(ctx context.Context, s *model.Session, kind openKind, r *reply) {
	switch kind {
	case openNone:
		r.say(msgNoAgent)
	case openFinalized:
		r.say(msgWelcomeBack)
	case openDraft:
		r.say(msgResume)
		if s.Mode == model.ModeQuestionnaire && s.Step >= len(Questionnaire) {
			c.complete(ctx, s, r)
			return
		}
		c.prompt(s, r)
	case openNew:
		if s.Mode == model.ModeLLM {
			r.say(msgGreetingLLM)
			s.AddMessage("assistant", msgGreetingLLM)
			return
		}
		r.say(msgGreeting)
		c.prompt(s, r)
	}
}

// open rebuilds a session from the client's newest lead, or starts a new one
// with an assigned agent
func (c *ConversationService) open(ctx context.Context, clientID, handle, name string) (*model.Session, openKind, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, openNone, fmt.Errorf("%w: empty client id", ErrInvalidLead)
	}

	lead, err := c.leads.FindByClient(ctx, clientID)
	if err != nil {
		if !errors.Is(err, model.ErrLeadNotFound) {
			log.Printf("⚠️  Failed to look up leads for client %s: %v", clientID, err)
		}
		lead = nil
	}

	agentID := ""
	if lead != nil {
		agentID = lead.AgentID
	}
	if agentID == "" {
		agentID, err = c.leads.AssignAgent(ctx)
		if err != nil {
			log.Printf("⚠️  Cannot assign agent for client %s: %v", clientID, err)
			return nil, openNone, nil
		}
	}

	if lead == nil {
		s := model.NewSession(clientID, handle, name, c.initialMode())
		s.AgentID = agentID
		c.store(s)
		logging.Debugf("🆕 Session for client %s in %s mode, agent %s", clientID, s.Mode, agentID)
		return s, openNew, nil
	}

	s := model.NewSession(clientID, firstNonEmpty(handle, lead.Handle), firstNonEmpty(name, lead.Name), c.initialMode())
	s.AgentID = agentID
	s.Requirements = lead.Requirements()

	if !lead.IsDraft() {
		s.LeadID = lead.ID
		s.Refining = true
		c.store(s)
		log.Printf("👋 Client %s returned with lead %s (%s)", clientID, lead.ID, lead.Status)
		return s, openFinalized, nil
	}

	s.DraftLeadID = lead.ID
	if lead.DraftStep > 0 || s.Mode == model.ModeQuestionnaire {
		s.Mode = model.ModeQuestionnaire
		s.Step = nextStep(&s.Requirements, lead.DraftStep)
	}
	c.store(s)
	log.Printf("♻️  Restored draft %s for client %s at step %d", lead.ID, clientID, s.Step)
	return s, openDraft, nil
}

// resume returns the active session, opening one and greeting the client
// when none is in memory
func (c *ConversationService) resume(ctx context.Context, clientID string, r *reply) (*model.Session, error) {
	if s := c.lookup(clientID); s != nil {
		return s, nil
	}
	s, kind, err := c.open(ctx, clientID, "", "")
	if err != nil {
		return nil, err
	}
	c.greet(ctx, s, kind, r)
	return s, nil
}

// HandleMessage processes one inbound text message
func (c *ConversationService) HandleMessage(ctx context.Context, clientID, text string) (*model.ConversationResponse, error) {
	defer c.lockClient(clientID)()
	r := &reply{}
	s := c.lookup(clientID)
	if s == nil {
		var kind openKind
		var err error
		s, kind, err = c.open(ctx, clientID, "", "")
		if err != nil {
			return nil, err
		}
		switch {
		case kind == openDraft:
			// the message continues where the draft stopped
		case kind == openNew && s.Mode == model.ModeLLM:
			// the first message already describes what the client wants
		default:
			c.greet(ctx, s, kind, r)
			return c.respond(s, r), nil
		}
	}

	if err := c.dispatch(ctx, s, text, r); err != nil {
		return nil, err
	}
	return c.respond(s, r), nil
}

func (c *ConversationService) dispatch(ctx context.Context, s *model.Session, text string, r *reply) error {
	switch s.State() {
	case model.StateAwaitingSelection:
		c.onSelectionText(ctx, s, text, r)
		return nil
	case model.StateAwaitingContact:
		return c.onContact(ctx, s, text, r)
	case model.StateTerminal:
		r.say(msgCancelled)
		return nil
	}

	if s.Refining {
		c.refine(ctx, s, text, r)
		return nil
	}
	if s.Mode == model.ModeLLM {
		c.onLLMMessage(ctx, s, text, r)
		return nil
	}
	c.onAnswer(ctx, s, text, r)
	return nil
}

// HandleVoice transcribes a voice message and handles it as text. The client
// is not held during transcription.
func (c *ConversationService) HandleVoice(ctx context.Context, clientID string, audio []byte, filename string) (*model.ConversationResponse, error) {
	if c.assistant == nil {
		return &model.ConversationResponse{Replies: []string{msgVoiceFailed}, State: c.stateOf(clientID)}, nil
	}
	text, err := c.assistant.Transcribe(ctx, audio, filename)
	if err != nil || strings.TrimSpace(text) == "" {
		log.Printf("⚠️  Voice message from %s not transcribed: %v", clientID, err)
		return &model.ConversationResponse{Replies: []string{msgVoiceFailed}, State: c.stateOf(clientID)}, nil
	}

	resp, err := c.HandleMessage(ctx, clientID, text)
	if err != nil {
		return nil, err
	}
	resp.Replies = append([]string{"🎤 " + text}, resp.Replies...)
	return resp, nil
}

func (c *ConversationService) stateOf(clientID string) model.State {
	defer c.lockClient(clientID)()
	if s := c.lookup(clientID); s != nil {
		return s.State()
	}
	return model.StateTerminal
}

// SelectApartment picks a unit by its 1-based position in the shown list
func (c *ConversationService) SelectApartment(ctx context.Context, clientID string, index int) (*model.ConversationResponse, error) {
	defer c.lockClient(clientID)()
	r := &reply{}
	s, err := c.resume(ctx, clientID, r)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return c.respond(nil, r), nil
	}
	if s.State() != model.StateAwaitingSelection {
		r.say(msgNotSelecting)
		return c.respond(s, r), nil
	}
	c.selectIndex(s, index, r)
	return c.respond(s, r), nil
}

// SubmitContact accepts the client's contact after a selection
func (c *ConversationService) SubmitContact(ctx context.Context, clientID, contact string) (*model.ConversationResponse, error) {
	defer c.lockClient(clientID)()
	r := &reply{}
	s, err := c.resume(ctx, clientID, r)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return c.respond(nil, r), nil
	}
	if s.State() != model.StateAwaitingContact {
		r.say(msgNotAwaitingPhone)
		return c.respond(s, r), nil
	}
	if err := c.onContact(ctx, s, contact, r); err != nil {
		return nil, err
	}
	return c.respond(s, r), nil
}

// Cancel ends the dialogue; a persisted draft stays resumable
func (c *ConversationService) Cancel(_ context.Context, clientID string) *model.ConversationResponse {
	defer c.lockClient(clientID)()
	if s := c.lookup(clientID); s != nil {
		s.Closed = true
	}
	c.drop(clientID)
	log.Printf("🛑 Session for client %s cancelled", clientID)
	return &model.ConversationResponse{Replies: []string{msgCancelled}, State: model.StateTerminal}
}

// prompt asks for whatever the session needs next
func (c *ConversationService) prompt(s *model.Session, r *reply) {
	switch s.State() {
	case model.StateAwaitingSelection:
		r.say(msgMatchesFooter)
		return
	case model.StateAwaitingContact:
		r.say(msgAskContact)
		return
	}
	if s.Refining {
		r.say(msgRefine)
		return
	}
	if s.Mode == model.ModeQuestionnaire {
		if q, ok := questionAt(s.Step); ok {
			r.say(q.Text)
		}
		return
	}
	if missing := s.Requirements.Missing(); len(missing) > 0 {
		r.say(questionFor(missing[0]))
	}
}

// onAnswer stores a questionnaire answer and advances the step
func (c *ConversationService) onAnswer(ctx context.Context, s *model.Session, text string, r *reply) {
	s.Step = nextStep(&s.Requirements, s.Step)
	q, ok := questionAt(s.Step)
	if !ok {
		c.complete(ctx, s, r)
		return
	}

	value := utils.Sanitize(text, maxAnswerLen)
	if q.Field == model.FieldNotes && utils.IsPhrase(text, c.keywords.NotesNone) {
		value = ""
	} else if value == "" {
		r.say(msgEmptyAnswer, q.Text)
		return
	}
	s.Requirements.Set(q.Field, value)
	s.Step = nextStep(&s.Requirements, s.Step+1)
	c.autosave(ctx, s)

	if s.Step >= len(Questionnaire) {
		c.complete(ctx, s, r)
		return
	}
	next, _ := questionAt(s.Step)
	r.say(next.Text)
}

// onLLMMessage extracts fields from the transcript and replies
func (c *ConversationService) onLLMMessage(ctx context.Context, s *model.Session, text string, r *reply) {
	text = utils.Sanitize(text, maxAnswerLen)
	if text == "" {
		r.say(msgEmptyAnswer)
		return
	}
	s.AddMessage("user", text)

	result, err := c.assistant.ExtractFields(ctx, s.Transcript)
	if err != nil && !errors.Is(err, ErrExtractionParse) {
		log.Printf("⚠️  Extraction unavailable for client %s, switching to questionnaire: %v", s.ClientID, err)
		c.fallback(ctx, s, r)
		return
	}

	complete := false
	if result != nil {
		for field, value := range result.Fields {
			if s.Requirements.SetIfEmpty(field, utils.Sanitize(value, maxAnswerLen)) {
				logging.Debugf("🧩 %s: %s = %q", s.ClientID, field, s.Requirements.Get(field))
			}
		}
		complete = result.IsComplete
	}
	complete = complete || s.Requirements.IsComplete()
	c.autosave(ctx, s)

	if complete {
		c.complete(ctx, s, r)
		return
	}

	answer, err := c.assistant.GenerateReply(ctx, s.Transcript, systemPromptFor(s.Requirements))
	if err != nil {
		log.Printf("⚠️  Reply generation failed for client %s: %v", s.ClientID, err)
		answer = cannedQuestion(s.Requirements)
	}
	s.AddMessage("assistant", answer)
	r.say(answer)
}

// fallback switches a session to the questionnaire from its first open step
func (c *ConversationService) fallback(ctx context.Context, s *model.Session, r *reply) {
	s.Mode = model.ModeQuestionnaire
	s.Step = nextStep(&s.Requirements, 0)
	c.autosave(ctx, s)

	r.say(msgFallback)
	if s.Step >= len(Questionnaire) {
		c.complete(ctx, s, r)
		return
	}
	q, _ := questionAt(s.Step)
	r.say(q.Text)
}

// complete finalizes the lead and shows the first page of matches
func (c *ConversationService) complete(ctx context.Context, s *model.Session, r *reply) {
	if _, err := c.leads.Finalize(ctx, s); err != nil {
		log.Printf("❌ Failed to finalize lead for client %s: %v", s.ClientID, err)
		r.say(msgStoreFailure)
		return
	}
	s.Step = len(Questionnaire)
	r.say(msgSearching + "\n" + LeadSummaryText(s.Requirements))
	c.showMatches(ctx, s, 0, r)
}

// showMatches renders one page of matches starting at offset
func (c *ConversationService) showMatches(ctx context.Context, s *model.Session, offset int, r *reply) {
	if c.maxPage > 0 && offset >= c.maxPage*c.pageSize {
		r.say(msgNoMoreMatches)
		return
	}

	matches, err := c.matcher.Match(ctx, s.Requirements, c.pageSize, offset)
	if err != nil {
		log.Printf("⚠️  Match failed for client %s: %v", s.ClientID, err)
	}
	if len(matches) == 0 {
		if offset > 0 {
			r.say(msgNoMoreMatches)
			return
		}
		s.AwaitingSelection = false
		s.Shown = nil
		s.Refining = true
		r.say(msgNoMatches)
		return
	}

	s.Shown = matches
	s.Offset = offset
	s.AwaitingSelection = true
	s.Refining = false

	var b strings.Builder
	b.WriteString(msgMatchesHeader)
	for i, m := range matches {
		fmt.Fprintf(&b, "\n\n%d. %s", i+1, MatchSummaryText(m))
	}
	r.say(b.String(), msgMatchesFooter)
	r.matches = matches
}

// onSelectionText handles free text while matches are shown. A number wins
// over a negative phrase in the same message.
func (c *ConversationService) onSelectionText(ctx context.Context, s *model.Session, text string, r *reply) {
	if utils.IsPhrase(text, c.keywords.More) {
		c.showMatches(ctx, s, s.Offset+len(s.Shown), r)
		return
	}
	if index, ok := utils.FirstInt(text); ok {
		c.selectIndex(s, index, r)
		return
	}
	if utils.ContainsPhrase(text, c.keywords.Negative) {
		s.AwaitingSelection = false
		s.Refining = true
		r.say(msgRefine)
		return
	}
	r.say(rangePrompt(len(s.Shown)))
}

// selectIndex records the chosen unit; out of range indices re-prompt
func (c *ConversationService) selectIndex(s *model.Session, index int, r *reply) {
	if index < 1 || index > len(s.Shown) {
		r.say("Такого варианта нет. " + rangePrompt(len(s.Shown)))
		return
	}
	m := s.Shown[index-1]
	s.Selected = &model.Selection{
		Supplier: m.Supplier,
		UnitID:   m.UnitID,
		Summary:  MatchSummaryText(m),
	}
	s.AwaitingSelection = false
	s.AwaitingContact = true
	log.Printf("👉 Client %s selected %s / %s", s.ClientID, m.Supplier, m.UnitID)
	r.say(msgAskContact)
}

// onContact stores the contact, hands the lead to the agent and closes the
// session
func (c *ConversationService) onContact(ctx context.Context, s *model.Session, text string, r *reply) error {
	contact := utils.Sanitize(text, maxAnswerLen)
	if contact == "" {
		r.say(msgContactEmpty)
		return nil
	}
	s.Requirements.Set(model.FieldContact, contact)

	if _, err := c.leads.Handoff(ctx, s); err != nil {
		if errors.Is(err, ErrInvalidLead) {
			return err
		}
		log.Printf("❌ Handoff failed for client %s: %v", s.ClientID, err)
		r.say(msgStoreFailure)
		return nil
	}

	s.AwaitingContact = false
	s.Closed = true
	c.drop(s.ClientID)
	r.say(msgThanks)
	return nil
}

// refine applies corrected criteria to the existing lead and searches again
func (c *ConversationService) refine(ctx context.Context, s *model.Session, text string, r *reply) {
	text = utils.Sanitize(text, maxAnswerLen)
	if text == "" {
		r.say(msgRefineUnclear)
		return
	}

	if s.Mode == model.ModeLLM && c.assistant != nil && c.assistant.Available() {
		s.AddMessage("user", text)
		result, err := c.assistant.ExtractFields(ctx, []model.Message{{Role: "user", Content: text}})
		if err == nil || errors.Is(err, ErrExtractionParse) {
			if result == nil || result.Empty() {
				r.say(msgRefineUnclear)
				return
			}
			for field, value := range result.Fields {
				s.Requirements.Set(field, utils.Sanitize(value, maxAnswerLen))
			}
			c.applyRefinement(ctx, s, r)
			return
		}
		log.Printf("⚠️  Extraction unavailable while refining for %s: %v", s.ClientID, err)
	}

	// without a language model the questionnaire starts over
	for _, f := range model.RequiredFields {
		s.Requirements.Set(f, "")
	}
	s.Mode = model.ModeQuestionnaire
	s.Refining = false
	s.Step = nextStep(&s.Requirements, 0)
	c.autosave(ctx, s)

	q, _ := questionAt(s.Step)
	r.say(msgFallback, q.Text)
}

func (c *ConversationService) applyRefinement(ctx context.Context, s *model.Session, r *reply) {
	s.Refining = false
	if s.LeadID != "" {
		if _, err := c.leads.Update(ctx, s); err != nil {
			log.Printf("⚠️  Failed to update lead for client %s: %v", s.ClientID, err)
		}
		r.say(msgSearching + "\n" + LeadSummaryText(s.Requirements))
		c.showMatches(ctx, s, 0, r)
		return
	}
	c.complete(ctx, s, r)
}

func (c *ConversationService) autosave(ctx context.Context, s *model.Session) {
	if err := c.leads.SaveDraft(ctx, s); err != nil {
		log.Printf("⚠️  Autosave failed for client %s: %v", s.ClientID, err)
	}
}

// systemPromptFor appends what is already known so the model does not ask
// again
func systemPromptFor(req model.RequirementSet) string {
	known := LeadSummaryText(req)
	if known == "" {
		return DefaultSystemPrompt
	}
	return DefaultSystemPrompt + "\n\nУже известно о клиенте:\n" + known
}

// cannedQuestion asks for the first missing criterion
func cannedQuestion(req model.RequirementSet) string {
	if missing := req.Missing(); len(missing) > 0 {
		return questionFor(missing[0])
	}
	return msgSearching
}

func rangePrompt(n int) string {
	if n == 1 {
		return "Напишите 1, чтобы выбрать вариант, или «ничего не подходит»."
	}
	return fmt.Sprintf("Выберите номер от 1 до %d или напишите «ничего не подходит».", n)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
