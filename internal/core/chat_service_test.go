package core

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"omnitak.com/support-hub/internal/store"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Publish(sessionID, event string, data any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sessionID+":"+event)
}

type fakeTitler struct {
	title string
	err   error
}

func (f fakeTitler) GenerateTicketTitle(ctx context.Context, summary string) (string, error) {
	return f.title, f.err
}

type testHarness struct {
	svc      *ChatService
	db       *store.SQLiteStore
	contexts *MemoryContextStore
	notifier *recordingNotifier
}

func newHarness(t *testing.T, titler TicketTitler) *testHarness {
	t.Helper()
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("init sqlite failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	contexts := NewMemoryContextStore(time.Hour, DefaultMaxHistory)
	composer := NewComposer(NewKnowledgeSearcher(db), 5, WithRandomSource(firstPick{}))
	svc := NewChatService(db, contexts, composer, NewTicketDesk(db, titler))
	notifier := &recordingNotifier{}
	svc.SetNotifier(notifier)
	return &testHarness{svc: svc, db: db, contexts: contexts, notifier: notifier}
}

func TestProcessMessage_NewSession(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	reply := h.svc.ProcessMessage(ctx, "Hello", "", nil)
	if reply.SessionID == "" {
		t.Fatal("expected a generated session id")
	}
	if reply.Type != MessageGreeting || reply.MessageID == "" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	conv, messages, err := h.svc.GetTranscript(ctx, reply.SessionID)
	if err != nil {
		t.Fatalf("transcript failed: %v", err)
	}
	if conv.Status != store.StatusActive || conv.ID != reply.ConversationID {
		t.Fatalf("unexpected conversation: %+v", conv)
	}
	if len(messages) != 3 {
		t.Fatalf("expected welcome, user and bot messages, got %d", len(messages))
	}
	wantTypes := []store.MessageType{store.MessageBot, store.MessageUser, store.MessageBot}
	for i, m := range messages {
		if m.Type != wantTypes[i] {
			t.Fatalf("message %d: got type %s, want %s", i, m.Type, wantTypes[i])
		}
	}
	if messages[0].Body != welcomeMessages[0] || messages[1].Body != "Hello" || messages[2].Body != reply.Text {
		t.Fatalf("unexpected bodies: %+v", messages)
	}
	if messages[2].Confidence == nil || *messages[2].Confidence != reply.Confidence {
		t.Fatalf("bot confidence not stored: %v", messages[2].Confidence)
	}

	cc, _ := h.contexts.Get(ctx, reply.SessionID)
	if cc == nil || cc.MessageCount != 1 || cc.LastUserMessage != "Hello" {
		t.Fatalf("context not updated: %+v", cc)
	}
	if len(h.notifier.events) != 2 || !strings.HasSuffix(h.notifier.events[1], EventBotMessage) {
		t.Fatalf("unexpected events: %v", h.notifier.events)
	}
}

func TestProcessMessage_UserBeforeBot(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	started, err := h.svc.StartConversation(ctx, "order-sess", nil)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for _, msg := range []string{"hi", "my wifi is down", "asdf", "thanks", "bye"} {
		h.svc.ProcessMessage(ctx, msg, started.SessionID, nil)
	}

	_, messages, err := h.svc.GetTranscript(ctx, started.SessionID)
	if err != nil {
		t.Fatalf("transcript failed: %v", err)
	}
	if len(messages) != 11 {
		t.Fatalf("expected 11 messages, got %d", len(messages))
	}
	for i := 1; i < len(messages); i += 2 {
		user, bot := messages[i], messages[i+1]
		if user.Type != store.MessageUser || bot.Type != store.MessageBot {
			t.Fatalf("turn at %d out of order: %s then %s", i, user.Type, bot.Type)
		}
		if bot.SentAt.Before(user.SentAt) {
			t.Fatalf("bot reply stored before its user message at %d", i)
		}
	}
}

func TestProcessMessage_ArticleLinked(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	article := store.Article{Title: "Password Reset Guide", Body: "Open the self-service portal and choose Forgot password."}
	if err := h.db.CreateArticle(ctx, &article); err != nil {
		t.Fatalf("create article failed: %v", err)
	}

	reply := h.svc.ProcessMessage(ctx, "How do I reset my password?", "kb-sess", nil)
	if !strings.Contains(reply.Text, "Password Reset Guide") {
		t.Fatalf("expected article in reply: %q", reply.Text)
	}
	_, messages, _ := h.svc.GetTranscript(ctx, "kb-sess")
	bot := messages[len(messages)-1]
	if bot.RelatedArticleID == nil || *bot.RelatedArticleID != article.ID {
		t.Fatalf("bot message should reference article %d, got %v", article.ID, bot.RelatedArticleID)
	}
}

func TestStartConversation_ReplacesActive(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	userID := int64(42)

	first, err := h.svc.StartConversation(ctx, "restart-sess", &userID)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if first.WelcomeMessage != welcomeMessages[0] {
		t.Fatalf("unexpected welcome: %q", first.WelcomeMessage)
	}
	h.svc.ProcessMessage(ctx, "hello", "restart-sess", &userID)

	second, err := h.svc.StartConversation(ctx, "restart-sess", &userID)
	if err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if second.ConversationID == first.ConversationID {
		t.Fatal("expected a new conversation")
	}
	prev, _ := h.db.GetConversationByID(ctx, first.ConversationID)
	if prev.Status != store.StatusEnded {
		t.Fatalf("previous conversation should be ended, got %s", prev.Status)
	}
	cc, _ := h.contexts.Get(ctx, "restart-sess")
	if cc.MessageCount != 0 || len(cc.History) != 0 {
		t.Fatalf("context should be fresh, got %+v", cc)
	}
}

func TestEndConversation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first := h.svc.ProcessMessage(ctx, "hello", "end-sess", nil)
	if err := h.svc.EndConversation(ctx, "end-sess"); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	conv, _ := h.db.GetConversationByID(ctx, first.ConversationID)
	if conv.Status != store.StatusEnded || conv.EndedAt == nil {
		t.Fatalf("unexpected conversation after end: %+v", conv)
	}
	if cc, _ := h.contexts.Get(ctx, "end-sess"); cc != nil {
		t.Fatal("context should be dropped on end")
	}
	if err := h.svc.EndConversation(ctx, "end-sess"); !IsNotFound(err) {
		t.Fatalf("ending twice should be not found, got %v", err)
	}

	next := h.svc.ProcessMessage(ctx, "hello again", "end-sess", nil)
	if next.ConversationID == first.ConversationID {
		t.Fatal("a message after end should open a new conversation")
	}
}

func TestEscalateToTicket(t *testing.T) {
	h := newHarness(t, fakeTitler{title: "Printer on floor 3 jammed"})
	ctx := context.Background()

	h.svc.ProcessMessage(ctx, "my printer is jammed", "esc-sess", nil)
	result, err := h.svc.EscalateToTicket(ctx, "esc-sess", "printer still jammed")
	if err != nil {
		t.Fatalf("escalate failed: %v", err)
	}
	if !result.Escalated || result.TicketID == nil {
		t.Fatalf("unexpected result: %+v", result)
	}

	ticket, err := h.db.GetTicketByID(ctx, *result.TicketID)
	if err != nil {
		t.Fatalf("get ticket failed: %v", err)
	}
	if ticket.Title != "Printer on floor 3 jammed" {
		t.Fatalf("unexpected title: %q", ticket.Title)
	}
	if !strings.Contains(ticket.Description, "printer still jammed") || !strings.Contains(ticket.Description, "User: my printer is jammed") {
		t.Fatalf("description should carry reason and history: %q", ticket.Description)
	}

	conv, _, _ := h.svc.GetTranscript(ctx, "esc-sess")
	if conv.Status != store.StatusEscalated || conv.TicketID == nil || *conv.TicketID != *result.TicketID {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	again, err := h.svc.EscalateToTicket(ctx, "esc-sess", "again")
	if err != nil || again.TicketID == nil || *again.TicketID != *result.TicketID {
		t.Fatalf("second escalation should report the same ticket, got %+v, %v", again, err)
	}
}

func TestEscalatedSessionStopsComposing(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.svc.ProcessMessage(ctx, "hello", "handoff-sess", nil)
	result, err := h.svc.EscalateToTicket(ctx, "handoff-sess", "needs hands-on help")
	if err != nil {
		t.Fatalf("escalate failed: %v", err)
	}

	reply := h.svc.ProcessMessage(ctx, "thanks", "handoff-sess", nil)
	if !strings.Contains(reply.Text, ticketRef(result.TicketID)) || reply.Type != MessageRequest {
		t.Fatalf("expected hand-off notice, got %s %q", reply.Type, reply.Text)
	}
	cc, _ := h.contexts.Get(ctx, "handoff-sess")
	if cc.MessageCount != 1 {
		t.Fatalf("escalated session should not be composed, message count %d", cc.MessageCount)
	}
	_, messages, _ := h.svc.GetTranscript(ctx, "handoff-sess")
	if last := messages[len(messages)-1]; last.Body != reply.Text {
		t.Fatalf("hand-off notice not stored: %q", last.Body)
	}

	ticket, _ := h.db.GetTicketByID(ctx, *result.TicketID)
	if ticket.Title != "needs hands-on help" {
		t.Fatalf("without a titler the reason is the title, got %q", ticket.Title)
	}
}

func TestProcessMessage_EscalationRequestOpensTicket(t *testing.T) {
	h := newHarness(t, fakeTitler{err: errors.New("quota exceeded")})
	ctx := context.Background()

	reply := h.svc.ProcessMessage(ctx, "I need to talk to a human agent", "ask-sess", nil)
	if reply.TicketID == nil {
		t.Fatalf("expected a ticket, got %+v", reply)
	}
	if !strings.Contains(reply.Text, ticketRef(reply.TicketID)) {
		t.Fatalf("reply should name the ticket: %q", reply.Text)
	}
	ticket, _ := h.db.GetTicketByID(ctx, *reply.TicketID)
	if !strings.HasPrefix(ticket.Title, "Requested in chat") {
		t.Fatalf("expected reason fallback title, got %q", ticket.Title)
	}
}

func TestProcessMessage_CancelledSkipsBotMessage(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if _, err := h.svc.StartConversation(ctx, "cancel-sess", nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	reply := h.svc.ProcessMessage(cctx, "hello", "cancel-sess", nil)
	if reply.Text == "" {
		t.Fatal("expected some reply text")
	}

	_, messages, _ := h.svc.GetTranscript(ctx, "cancel-sess")
	if len(messages) != 2 {
		t.Fatalf("expected welcome and user message only, got %d", len(messages))
	}
	if messages[1].Type != store.MessageUser || messages[1].Body != "hello" {
		t.Fatalf("user message should still be stored: %+v", messages[1])
	}
}

type failingMessages struct {
	*store.SQLiteStore
}

func (failingMessages) CreateMessage(ctx context.Context, msg *store.Message) error {
	return errors.New("disk full")
}

func TestProcessMessage_PersistenceFailure(t *testing.T) {
	h := newHarness(t, nil)
	svc := NewChatService(failingMessages{h.db}, h.contexts, NewComposer(nil, 5), nil)

	reply := svc.ProcessMessage(context.Background(), "hello", "broken-sess", nil)
	if reply.Text != fallbackReply {
		t.Fatalf("expected apology, got %q", reply.Text)
	}
}

func TestSetMessageFeedback(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	reply := h.svc.ProcessMessage(ctx, "hello", "fb-sess", nil)
	if err := h.svc.SetMessageFeedback(ctx, reply.MessageID, true); err != nil {
		t.Fatalf("feedback failed: %v", err)
	}
	if err := h.svc.SetMessageFeedback(ctx, reply.MessageID, false); !errors.Is(err, store.ErrFeedbackAlreadySet) {
		t.Fatalf("expected ErrFeedbackAlreadySet, got %v", err)
	}
}

func TestGetTranscript_Unknown(t *testing.T) {
	h := newHarness(t, nil)
	if _, _, err := h.svc.GetTranscript(context.Background(), "nobody"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := h.svc.EscalateToTicket(context.Background(), "nobody", "x"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// slowLookups widens the window between looking a session up and creating
// its conversation.
type slowLookups struct {
	*store.SQLiteStore
}

func (s slowLookups) GetConversationBySession(ctx context.Context, sessionID string, status store.ConversationStatus) (*store.Conversation, error) {
	time.Sleep(20 * time.Millisecond)
	return s.SQLiteStore.GetConversationBySession(ctx, sessionID, status)
}

func TestProcessMessage_ConcurrentFirstMessages(t *testing.T) {
	h := newHarness(t, nil)
	svc := NewChatService(slowLookups{h.db}, h.contexts, NewComposer(nil, 5, WithRandomSource(firstPick{})), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	replies := make([]Reply, 2)
	for i := range replies {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			replies[i] = svc.ProcessMessage(ctx, "hello", "race-sess", nil)
		}(i)
	}
	wg.Wait()

	if replies[0].ConversationID == 0 || replies[0].ConversationID != replies[1].ConversationID {
		t.Fatalf("messages went to conversations %d and %d", replies[0].ConversationID, replies[1].ConversationID)
	}
	_, messages, err := h.svc.GetTranscript(ctx, "race-sess")
	if err != nil {
		t.Fatalf("transcript failed: %v", err)
	}
	if len(messages) != 5 {
		t.Fatalf("expected one welcome and two exchanges, got %d messages", len(messages))
	}
}

type slowTitler struct {
	mu    sync.Mutex
	calls int
}

func (s *slowTitler) GenerateTicketTitle(ctx context.Context, summary string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	return "Needs help", nil
}

func TestEscalateToTicket_Concurrent(t *testing.T) {
	titler := &slowTitler{}
	h := newHarness(t, titler)
	ctx := context.Background()

	if _, err := h.svc.StartConversation(ctx, "esc-race", nil); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	var wg sync.WaitGroup
	results := make([]EscalationResult, 3)
	errs := make([]error, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i == 2 {
				// An escalation phrase racing the explicit escalations.
				results[i] = EscalationResult{Escalated: true, TicketID: h.svc.ProcessMessage(ctx, "I need to create a support ticket", "esc-race", nil).TicketID}
				return
			}
			results[i], errs[i] = h.svc.EscalateToTicket(ctx, "esc-race", "help")
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if errs[i] != nil {
			t.Fatalf("escalation %d failed: %v", i, errs[i])
		}
		if res.TicketID == nil || *res.TicketID != *results[0].TicketID {
			t.Fatalf("escalation %d got ticket %v, want %v", i, res.TicketID, results[0].TicketID)
		}
	}
	titler.mu.Lock()
	defer titler.mu.Unlock()
	if titler.calls != 1 {
		t.Fatalf("expected one ticket, titler ran %d times", titler.calls)
	}
	if extra, _ := h.db.GetTicketByID(ctx, *results[0].TicketID+1); extra != nil {
		t.Fatalf("unexpected second ticket: %+v", extra)
	}
}
