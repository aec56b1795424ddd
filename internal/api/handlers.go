package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"omnitak.com/support-hub/internal/auth"
	"omnitak.com/support-hub/internal/config"
	"omnitak.com/support-hub/internal/core"
	"omnitak.com/support-hub/internal/store"
)

const (
	serviceName             = "Omnitak Support Hub Chat Service"
	defaultEscalationReason = "Escalation requested by user"
	maxBodyBytes            = 64 * 1024

	defaultKnowledgeLimit = 10
	maxKnowledgeLimit     = 50
	minKnowledgeQuery     = 2
)

type APIHandler struct {
	chatService *core.ChatService
	knowledge   core.Searcher
}

func NewAPIHandler(cs *core.ChatService, knowledge core.Searcher) *APIHandler {
	return &APIHandler{chatService: cs, knowledge: knowledge}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// OptionalAuthMiddleware attaches the user id from a bearer token when one is
// sent. Requests without a token stay anonymous; a bad token is rejected.
// Without a configured secret every request is anonymous.
func (h *APIHandler) OptionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || config.AppConfig.JWTSecret == "" {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
	})
}

type StartChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
}

func (h *APIHandler) StartChatHandler(w http.ResponseWriter, r *http.Request) {
	var req StartChatRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	started, err := h.chatService.StartConversation(r.Context(), strings.TrimSpace(req.SessionID), auth.UserIDFromContext(r.Context()))
	if err != nil {
		log.Printf("Error starting conversation: %v", err)
		http.Error(w, "Unable to start conversation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, started)
}

type SendMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

func (h *APIHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	reply := h.chatService.ProcessMessage(r.Context(), req.Message, strings.TrimSpace(req.SessionID), auth.UserIDFromContext(r.Context()))
	writeJSON(w, http.StatusOK, reply)
}

func (h *APIHandler) EndChatHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.chatService.EndConversation(r.Context(), sessionID); err != nil {
		if core.IsNotFound(err) {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		log.Printf("Error ending conversation for session %s: %v", sessionID, err)
		http.Error(w, "Failed to end conversation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type EscalateRequest struct {
	Reason string `json:"reason"`
}

func (h *APIHandler) EscalateHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req EscalateRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = defaultEscalationReason
	}

	result, err := h.chatService.EscalateToTicket(r.Context(), sessionID, reason)
	if err != nil {
		if core.IsNotFound(err) {
			writeJSON(w, http.StatusNotFound, core.EscalationResult{Escalated: false})
			return
		}
		log.Printf("Error escalating session %s: %v", sessionID, err)
		writeJSON(w, http.StatusInternalServerError, core.EscalationResult{Escalated: false})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type TranscriptResponse struct {
	*store.Conversation
	Messages []store.Message `json:"messages"`
}

func (h *APIHandler) TranscriptHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conv, messages, err := h.chatService.GetTranscript(r.Context(), sessionID)
	if err != nil {
		if core.IsNotFound(err) {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		log.Printf("Error getting transcript for session %s: %v", sessionID, err)
		http.Error(w, "Failed to get conversation", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	writeJSON(w, http.StatusOK, TranscriptResponse{Conversation: conv, Messages: messages})
}

type FeedbackRequest struct {
	Helpful *bool `json:"helpful"`
}

func (h *APIHandler) MessageFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")

	var req FeedbackRequest
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Helpful == nil {
		http.Error(w, "helpful is required", http.StatusBadRequest)
		return
	}

	err := h.chatService.SetMessageFeedback(r.Context(), messageID, *req.Helpful)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Message not found", http.StatusNotFound)
	case errors.Is(err, store.ErrFeedbackAlreadySet):
		http.Error(w, "Feedback already recorded", http.StatusConflict)
	default:
		log.Printf("Error setting feedback for message %s: %v", messageID, err)
		http.Error(w, "Failed to set feedback", http.StatusInternalServerError)
	}
}

type KnowledgeSearchResponse struct {
	Query        string                `json:"query"`
	Results      []core.ArticleSummary `json:"results"`
	TotalResults int                   `json:"total_results"`
}

// KnowledgeSearchHandler backs the "browse knowledge base" quick action:
// GET /api/knowledge/search?q=...&limit=...
func (h *APIHandler) KnowledgeSearchHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		query = strings.TrimSpace(r.URL.Query().Get("query"))
	}
	if len([]rune(query)) < minKnowledgeQuery {
		http.Error(w, "Search query must be at least 2 characters long", http.StatusBadRequest)
		return
	}

	limit := defaultKnowledgeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive number", http.StatusBadRequest)
			return
		}
		limit = min(n, maxKnowledgeLimit)
	}

	results, err := h.knowledge.Search(r.Context(), query, limit)
	if err != nil {
		log.Printf("Error searching knowledge base for %q: %v", query, err)
		http.Error(w, "Failed to search knowledge base", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, KnowledgeSearchResponse{Query: query, Results: results, TotalResults: len(results)})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   serviceName,
	})
}
