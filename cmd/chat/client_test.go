package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"omnitak.com/support-hub/internal/core"
)

func TestClient_StartAndSend(t *testing.T) {
	var gotAuth string
	var sent map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/api/chat/start":
			json.NewEncoder(w).Encode(core.StartedConversation{SessionID: "abc", ConversationID: 1, WelcomeMessage: "Hi"})
		case "/api/chat/send":
			json.NewDecoder(r.Body).Decode(&sent)
			reply := core.Reply{SessionID: "abc"}
			reply.Text = "Try resetting it."
			json.NewEncoder(w).Encode(reply)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newClient(srv.URL+"/", "tok", "")
	started, err := c.start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.WelcomeMessage != "Hi" || c.sessionID != "abc" {
		t.Fatalf("unexpected start: %+v, session %q", started, c.sessionID)
	}

	reply, err := c.send(context.Background(), "password help")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if reply.Text != "Try resetting it." {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if sent["session_id"] != "abc" || sent["message"] != "password help" {
		t.Fatalf("unexpected request body: %v", sent)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
}

func TestClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Conversation not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newClient(srv.URL, "", "gone")
	err := c.end(context.Background())
	if err == nil || !strings.Contains(err.Error(), "Conversation not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestResolveInput(t *testing.T) {
	actions := []core.QuickAction{
		{Label: "Reset password", Message: "I need to reset my password"},
		{Label: "Talk to a human", Message: "I need to talk to a human agent"},
	}
	tests := []struct {
		in, want string
	}{
		{"1", "I need to reset my password"},
		{"2", "I need to talk to a human agent"},
		{"3", "3"},
		{"0", "0"},
		{"my vpn is down", "my vpn is down"},
	}
	for _, tt := range tests {
		if got := resolveInput(tt.in, actions); got != tt.want {
			t.Errorf("resolveInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrinter_PlainReply(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, false)

	ticket := int64(7)
	reply := core.Reply{TicketID: &ticket}
	reply.Text = "Connecting you."
	reply.SuggestedActions = []core.QuickAction{{Label: "Create a ticket"}}
	p.reply(reply)

	out := buf.String()
	for _, want := range []string{"bot> Connecting you.", "Ticket #7", "[1]", "Create a ticket"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
