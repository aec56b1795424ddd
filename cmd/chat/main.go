package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"omnitak.com/support-hub/internal/core"
)

const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorGray  = "\033[90m"
	colorCyan  = "\033[36m"
)

// printer writes bot replies, rendering markdown when stdout is a terminal.
type printer struct {
	out      io.Writer
	renderer *glamour.TermRenderer
}

func newPrinter(out io.Writer, interactive bool) *printer {
	p := &printer{out: out}
	if !interactive {
		return p
	}
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-10),
	)
	if err != nil {
		log.Printf("Markdown rendering disabled: %v", err)
		return p
	}
	p.renderer = renderer
	return p
}

func (p *printer) bot(text string) {
	if p.renderer != nil {
		if rendered, err := p.renderer.Render(text); err == nil {
			fmt.Fprint(p.out, rendered)
			return
		}
	}
	fmt.Fprintf(p.out, "bot> %s\n", text)
}

func (p *printer) actions(actions []core.QuickAction) {
	for i, a := range actions {
		fmt.Fprintf(p.out, "  %s[%d]%s %s\n", colorCyan, i+1, colorReset, a.Label)
	}
}

func (p *printer) reply(r core.Reply) {
	p.bot(r.Text)
	for _, a := range r.RelatedArticles {
		fmt.Fprintf(p.out, "  %s- %s (%s)%s\n", colorGray, a.Title, a.CategoryName, colorReset)
	}
	if r.TicketID != nil {
		fmt.Fprintf(p.out, "%sTicket #%d opened.%s\n", colorBold, *r.TicketID, colorReset)
	} else if r.EscalationSuggested {
		fmt.Fprintf(p.out, "%sType /escalate to open a support ticket.%s\n", colorGray, colorReset)
	}
	p.actions(r.SuggestedActions)
}

// resolveInput maps a quick action number to its message.
func resolveInput(input string, actions []core.QuickAction) string {
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(actions) {
		return actions[n-1].Message
	}
	return input
}

func main() {
	server := flag.String("server", "http://localhost:8080", "Support hub base URL")
	session := flag.String("session", "", "Resume an existing chat session")
	flag.Parse()

	log.SetFlags(0)
	ctx := context.Background()
	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	out := newPrinter(os.Stdout, interactive)
	c := newClient(*server, os.Getenv("SUPPORT_HUB_TOKEN"), *session)

	started, err := c.start(ctx)
	if err != nil {
		log.Fatalf("Could not start chat: %v", err)
	}
	if interactive {
		fmt.Printf("%sSession %s%s  %s(/escalate [reason], /end, /quit)%s\n", colorBold, started.SessionID, colorReset, colorGray, colorReset)
	}
	out.bot(started.WelcomeMessage)

	var actions []core.QuickAction
	reader := bufio.NewReader(os.Stdin)
	for {
		if interactive {
			fmt.Print("you> ")
		}
		line, err := reader.ReadString('\n')
		input := strings.TrimSpace(line)
		if err != nil && input == "" {
			return
		}

		switch {
		case input == "":
			continue
		case input == "/quit":
			return
		case input == "/end":
			if err := c.end(ctx); err != nil {
				log.Printf("Could not end chat: %v", err)
			}
			return
		case strings.HasPrefix(input, "/escalate"):
			result, err := c.escalate(ctx, strings.TrimSpace(strings.TrimPrefix(input, "/escalate")))
			if err != nil {
				log.Printf("Could not escalate: %v", err)
				continue
			}
			if result.TicketID != nil {
				fmt.Printf("%sEscalated. Ticket #%d opened.%s\n", colorBold, *result.TicketID, colorReset)
			} else {
				fmt.Printf("%sEscalated. A ticket will be created shortly.%s\n", colorBold, colorReset)
			}
			continue
		}

		reply, err := c.send(ctx, resolveInput(input, actions))
		if err != nil {
			log.Printf("Send failed: %v", err)
			continue
		}
		out.reply(reply)
		actions = reply.SuggestedActions
	}
}
