package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"omnitak.com/support-hub/internal/store"
	"omnitak.com/support-hub/internal/utils"
)

const (
	ticketTitleTimeout   = 10 * time.Second
	maxTicketTitleLength = 80
	defaultTicketTitle   = "Chat escalation"
)

type TicketStore interface {
	CreateTicket(ctx context.Context, ticket *store.Ticket) error
}

type TicketTitler interface {
	GenerateTicketTitle(ctx context.Context, summary string) (string, error)
}

// TicketDesk opens a ticket for an escalated conversation. The titler is
// optional; without it, or when it fails, the reason becomes the title.
type TicketDesk struct {
	tickets TicketStore
	titler  TicketTitler
}

func NewTicketDesk(tickets TicketStore, titler TicketTitler) *TicketDesk {
	return &TicketDesk{tickets: tickets, titler: titler}
}

func (d *TicketDesk) OpenTicket(ctx context.Context, conv *store.Conversation, reason string, history []string) (int64, error) {
	description := ticketDescription(reason, history)
	ticket := store.Ticket{
		ConversationID: conv.ID,
		UserID:         conv.UserID,
		Title:          d.title(ctx, conv, reason, description),
		Description:    description,
	}
	if err := d.tickets.CreateTicket(ctx, &ticket); err != nil {
		return 0, fmt.Errorf("opening ticket for conversation %d: %w", conv.ID, err)
	}
	log.Printf("Opened ticket %d for conversation %d (session %s)", ticket.ID, conv.ID, conv.SessionID)
	return ticket.ID, nil
}

func (d *TicketDesk) title(ctx context.Context, conv *store.Conversation, reason, description string) string {
	fallback := utils.Excerpt(strings.TrimSpace(reason), maxTicketTitleLength)
	if fallback == "" {
		fallback = defaultTicketTitle
	}
	if d.titler == nil {
		return fallback
	}

	tctx, cancel := context.WithTimeout(ctx, ticketTitleTimeout)
	defer cancel()
	title, err := d.titler.GenerateTicketTitle(tctx, description)
	if err != nil {
		log.Printf("Failed to generate ticket title for conversation %d: %v", conv.ID, err)
		return fallback
	}
	return utils.Excerpt(title, maxTicketTitleLength)
}

func ticketDescription(reason string, history []string) string {
	var b strings.Builder
	b.WriteString("Escalated from the support chat.\n\nReason: ")
	if strings.TrimSpace(reason) == "" {
		b.WriteString("not given")
	} else {
		b.WriteString(strings.TrimSpace(reason))
	}
	if len(history) > 0 {
		b.WriteString("\n\nRecent conversation:\n")
		for _, line := range history {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
