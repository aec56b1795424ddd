package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"omnitak.com/support-hub/internal/store"
)

const transcriptLimit = 500

// Event names delivered to a session's real-time group.
const (
	EventBotMessage            = "bot_message"
	EventConversationStarted   = "conversation_started"
	EventConversationEnded     = "conversation_ended"
	EventConversationEscalated = "conversation_escalated"
)

type ConversationStore interface {
	CreateConversation(ctx context.Context, sessionID string, userID *int64) (*store.Conversation, error)
	GetConversationBySession(ctx context.Context, sessionID string, status store.ConversationStatus) (*store.Conversation, error)
	EndConversation(ctx context.Context, conversationID int64) error
	EscalateConversation(ctx context.Context, conversationID int64, ticketID *int64, reason string) error
	CreateMessage(ctx context.Context, msg *store.Message) error
	GetMessagesByConversationID(ctx context.Context, conversationID int64, limit int, offset int) ([]store.Message, error)
	SetMessageFeedback(ctx context.Context, messageID string, helpful bool) error
}

// TicketHook opens a ticket for an escalated conversation and returns its id.
type TicketHook interface {
	OpenTicket(ctx context.Context, conv *store.Conversation, reason string, history []string) (int64, error)
}

// Notifier pushes session events to connected real-time clients.
type Notifier interface {
	Publish(sessionID, event string, data any)
}

type StartedConversation struct {
	SessionID      string `json:"session_id"`
	ConversationID int64  `json:"conversation_id"`
	WelcomeMessage string `json:"welcome_message"`
}

// Reply is what a caller gets back for one user message.
type Reply struct {
	ComposedResponse
	SessionID      string    `json:"session_id"`
	ConversationID int64     `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	TicketID       *int64    `json:"ticket_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

type EscalationResult struct {
	Escalated bool   `json:"escalated"`
	TicketID  *int64 `json:"ticket_id"`
}

// ChatService owns conversations: it persists every turn, drives the composer
// under the session's context lock and escalates sessions to tickets.
// Operations on one session run one at a time.
type ChatService struct {
	sessions *sessionLocks
	dbStore  ConversationStore
	contexts ContextStore
	composer *Composer
	tickets  TicketHook
	notifier Notifier
}

func NewChatService(db ConversationStore, contexts ContextStore, composer *Composer, tickets TicketHook) *ChatService {
	return &ChatService{
		sessions: newSessionLocks(),
		dbStore:  db,
		contexts: contexts,
		composer: composer,
		tickets:  tickets,
	}
}

// SetNotifier attaches the real-time channel. Events are dropped without one.
func (s *ChatService) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *ChatService) publish(sessionID, event string, data any) {
	if s.notifier != nil {
		s.notifier.Publish(sessionID, event, data)
	}
}

func (s *ChatService) StartConversation(ctx context.Context, sessionID string, userID *int64) (*StartedConversation, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	defer s.sessions.lock(sessionID)()
	return s.startConversation(ctx, sessionID, userID)
}

func (s *ChatService) startConversation(ctx context.Context, sessionID string, userID *int64) (*StartedConversation, error) {
	// A session has at most one active conversation.
	if prev, err := s.dbStore.GetConversationBySession(ctx, sessionID, store.StatusActive); err != nil {
		return nil, fmt.Errorf("failed to look up session %s: %w", sessionID, err)
	} else if prev != nil {
		if err := s.dbStore.EndConversation(ctx, prev.ID); err != nil {
			return nil, fmt.Errorf("failed to close previous conversation %d: %w", prev.ID, err)
		}
	}

	conv, err := s.dbStore.CreateConversation(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	welcome := s.composer.Welcome()
	welcomeMsg := store.Message{ConversationID: conv.ID, Body: welcome, Type: store.MessageBot}
	if err := s.dbStore.CreateMessage(ctx, &welcomeMsg); err != nil {
		log.Printf("Failed to store welcome message for conversation %d: %v", conv.ID, err)
	}

	err = s.contexts.Update(ctx, sessionID, func(cc *ConversationContext) error {
		*cc = *newConversationContext(sessionID, time.Now(), cc.maxHistory)
		return nil
	})
	if err != nil {
		log.Printf("Failed to initialize context for session %s: %v", sessionID, err)
	}

	started := &StartedConversation{SessionID: sessionID, ConversationID: conv.ID, WelcomeMessage: welcome}
	s.publish(sessionID, EventConversationStarted, started)
	return started, nil
}

// ProcessMessage answers one user message. It always returns a reply; failures
// along the way are logged and answered with the apology text.
func (s *ChatService) ProcessMessage(ctx context.Context, message, sessionID string, userID *int64) Reply {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	defer s.sessions.lock(sessionID)()
	// Writes that have started must finish even if the caller goes away.
	persistCtx := context.WithoutCancel(ctx)

	conv, err := s.loadOrStart(persistCtx, sessionID, userID)
	if err != nil {
		log.Printf("Failed to load conversation for session %s: %v", sessionID, err)
		return s.fallbackReply(sessionID, 0)
	}

	userMsg := store.Message{ConversationID: conv.ID, Body: message, Type: store.MessageUser}
	if err := s.dbStore.CreateMessage(persistCtx, &userMsg); err != nil {
		log.Printf("Failed to store user message for conversation %d: %v", conv.ID, err)
		return s.fallbackReply(sessionID, conv.ID)
	}

	if conv.Status == store.StatusEscalated {
		return s.handOff(ctx, persistCtx, conv)
	}

	var resp ComposedResponse
	err = s.contexts.Update(ctx, sessionID, func(cc *ConversationContext) error {
		resp = s.composer.Compose(ctx, message, cc)
		return nil
	})
	if err != nil {
		log.Printf("Context store unavailable for session %s, composing without history: %v", sessionID, err)
		resp = s.composer.Compose(ctx, message, newConversationContext(sessionID, time.Now(), DefaultMaxHistory))
	}

	reply := Reply{ComposedResponse: resp, SessionID: sessionID, ConversationID: conv.ID}

	if resp.EscalationRequested && s.tickets != nil {
		result, err := s.escalate(persistCtx, conv, "Requested in chat: "+message)
		if err != nil {
			log.Printf("Automatic escalation failed for session %s: %v", sessionID, err)
		} else if result.Escalated {
			reply.TicketID = result.TicketID
			reply.Text = reply.Text + "\n\n" + fmt.Sprintf(HandOffReply, ticketRef(result.TicketID))
		}
	}

	s.finishTurn(ctx, persistCtx, &reply, resp.ArticleID)
	return reply
}

// finishTurn stores the bot message unless the caller has already gone away,
// then pushes it to the session's real-time group.
func (s *ChatService) finishTurn(ctx, persistCtx context.Context, reply *Reply, articleID *int64) {
	reply.Timestamp = time.Now().UTC()
	if err := ctx.Err(); err != nil {
		log.Printf("Request for session %s cancelled, skipping bot message: %v", reply.SessionID, err)
		return
	}

	confidence := reply.Confidence
	botMsg := store.Message{
		ConversationID:   reply.ConversationID,
		Body:             reply.Text,
		Type:             store.MessageBot,
		RelatedArticleID: articleID,
		Confidence:       &confidence,
	}
	if err := s.dbStore.CreateMessage(persistCtx, &botMsg); err != nil {
		log.Printf("Failed to store bot message for conversation %d: %v", reply.ConversationID, err)
	} else {
		reply.MessageID = botMsg.ID
		reply.Timestamp = botMsg.SentAt
	}
	s.publish(reply.SessionID, EventBotMessage, reply)
}

func (s *ChatService) handOff(ctx, persistCtx context.Context, conv *store.Conversation) Reply {
	reply := Reply{
		ComposedResponse: ComposedResponse{
			Text:             fmt.Sprintf(HandOffReply, ticketRef(conv.TicketID)),
			Type:             MessageRequest,
			Confidence:       1,
			RelatedArticles:  []ArticleSummary{},
			SuggestedActions: []QuickAction{},
		},
		SessionID:      conv.SessionID,
		ConversationID: conv.ID,
		TicketID:       conv.TicketID,
	}
	s.finishTurn(ctx, persistCtx, &reply, nil)
	return reply
}

func (s *ChatService) fallbackReply(sessionID string, conversationID int64) Reply {
	return Reply{
		ComposedResponse: fallbackResponse(),
		SessionID:        sessionID,
		ConversationID:   conversationID,
		Timestamp:        time.Now().UTC(),
	}
}

// loadOrStart returns the session's current conversation, starting a new one
// when the session is unknown or its last conversation has ended.
func (s *ChatService) loadOrStart(ctx context.Context, sessionID string, userID *int64) (*store.Conversation, error) {
	conv, err := s.dbStore.GetConversationBySession(ctx, sessionID, "")
	if err != nil {
		return nil, err
	}
	if conv != nil && conv.Status != store.StatusEnded {
		return conv, nil
	}
	if _, err := s.startConversation(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	conv, err = s.dbStore.GetConversationBySession(ctx, sessionID, store.StatusActive)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation for session %s vanished after start", sessionID)
	}
	return conv, nil
}

// currentConversation returns the session's latest conversation that has not
// ended, or store.ErrNotFound.
func (s *ChatService) currentConversation(ctx context.Context, sessionID string) (*store.Conversation, error) {
	conv, err := s.dbStore.GetConversationBySession(ctx, sessionID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to look up session %s: %w", sessionID, err)
	}
	if conv == nil || conv.Status == store.StatusEnded {
		return nil, store.ErrNotFound
	}
	return conv, nil
}

func (s *ChatService) EndConversation(ctx context.Context, sessionID string) error {
	defer s.sessions.lock(sessionID)()
	conv, err := s.currentConversation(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.dbStore.EndConversation(ctx, conv.ID); err != nil {
		return fmt.Errorf("failed to end conversation %d: %w", conv.ID, err)
	}
	if err := s.contexts.Delete(ctx, sessionID); err != nil {
		log.Printf("Failed to drop context for session %s: %v", sessionID, err)
	}
	s.publish(sessionID, EventConversationEnded, map[string]any{"conversation_id": conv.ID})
	return nil
}

// EscalateToTicket marks the session's conversation escalated and links a
// ticket when a ticket desk is configured. Escalating twice is a no-op that
// reports the existing ticket.
func (s *ChatService) EscalateToTicket(ctx context.Context, sessionID, reason string) (EscalationResult, error) {
	defer s.sessions.lock(sessionID)()
	conv, err := s.currentConversation(ctx, sessionID)
	if err != nil {
		return EscalationResult{}, err
	}
	return s.escalate(ctx, conv, reason)
}

// escalate expects the caller to hold the session lock.
func (s *ChatService) escalate(ctx context.Context, conv *store.Conversation, reason string) (EscalationResult, error) {
	if conv.Status == store.StatusEscalated {
		return EscalationResult{Escalated: true, TicketID: conv.TicketID}, nil
	}

	var ticketID *int64
	if s.tickets != nil {
		var history []string
		if cc, err := s.contexts.Get(ctx, conv.SessionID); err != nil {
			log.Printf("Failed to read context for session %s: %v", conv.SessionID, err)
		} else if cc != nil {
			history = cc.History
		}
		id, err := s.tickets.OpenTicket(ctx, conv, reason, history)
		if err != nil {
			return EscalationResult{}, err
		}
		ticketID = &id
	}

	if err := s.dbStore.EscalateConversation(ctx, conv.ID, ticketID, reason); err != nil {
		return EscalationResult{}, fmt.Errorf("failed to escalate conversation %d: %w", conv.ID, err)
	}
	conv.Status = store.StatusEscalated
	conv.TicketID = ticketID
	conv.EscalationReason = &reason

	result := EscalationResult{Escalated: true, TicketID: ticketID}
	s.publish(conv.SessionID, EventConversationEscalated, result)
	return result, nil
}

func (s *ChatService) SetMessageFeedback(ctx context.Context, messageID string, helpful bool) error {
	return s.dbStore.SetMessageFeedback(ctx, messageID, helpful)
}

// GetTranscript returns the session's latest conversation with its messages
// in order.
func (s *ChatService) GetTranscript(ctx context.Context, sessionID string) (*store.Conversation, []store.Message, error) {
	conv, err := s.dbStore.GetConversationBySession(ctx, sessionID, "")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up session %s: %w", sessionID, err)
	}
	if conv == nil {
		return nil, nil, store.ErrNotFound
	}
	messages, err := s.dbStore.GetMessagesByConversationID(ctx, conv.ID, transcriptLimit, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get messages for conversation %d: %w", conv.ID, err)
	}
	return conv, messages, nil
}

func ticketRef(id *int64) string {
	if id == nil {
		return "pending"
	}
	return "#" + strconv.FormatInt(*id, 10)
}

// IsNotFound reports whether err means the session has no usable conversation.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
