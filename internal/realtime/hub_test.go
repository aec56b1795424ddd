package realtime

import (
	"testing"
)

func TestHub_PublishToGroupOnly(t *testing.T) {
	hub := NewHub()

	var a, b []Message
	leaveA := hub.Join("s1", func(m Message) { a = append(a, m) })
	hub.Join("s2", func(m Message) { b = append(b, m) })

	hub.Publish("s1", "bot_message", map[string]string{"response": "hi"})
	if len(a) != 1 || len(b) != 0 {
		t.Fatalf("expected one message for s1 only, got %d and %d", len(a), len(b))
	}
	if a[0].Event != "bot_message" || a[0].SessionID != "s1" || a[0].TS == 0 {
		t.Fatalf("unexpected message: %+v", a[0])
	}

	leaveA()
	leaveA()
	hub.Publish("s1", "bot_message", nil)
	if len(a) != 1 {
		t.Fatalf("listener received after leaving: %d", len(a))
	}
	if hub.Members("s1") != 0 || hub.Members("s2") != 1 {
		t.Fatalf("unexpected members: %d, %d", hub.Members("s1"), hub.Members("s2"))
	}
}

func TestHub_SeveralListenersPerSession(t *testing.T) {
	hub := NewHub()
	count := 0
	for i := 0; i < 3; i++ {
		hub.Join("shared", func(Message) { count++ })
	}
	hub.Publish("shared", "conversation_ended", nil)
	if count != 3 {
		t.Fatalf("expected 3 deliveries, got %d", count)
	}
}

func TestGroupName(t *testing.T) {
	if got := GroupName("abc"); got != "ChatSession_abc" {
		t.Fatalf("GroupName() = %q", got)
	}
}
