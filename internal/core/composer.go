package core

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

const (
	gibberishEscalationStreak = 2 // Offer a human once the streak goes past this

	titleHitConfidence   = 0.85
	bodyHitConfidence    = 0.7
	cannedConfidence     = 0.75
	clarifyConfidence    = 0.3
	fallbackConfidence   = 0.0
	escalationConfidence = 0.85
)

// Searcher is the knowledge lookup the composer relies on.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]ArticleSummary, error)
}

// RandomSource picks template indexes. *rand.Rand satisfies it.
type RandomSource interface {
	Intn(n int) int
}

// ComposedResponse is the composer's answer to one user message.
type ComposedResponse struct {
	Text                string           `json:"response"`
	Type                MessageType      `json:"type"`
	Confidence          float64          `json:"confidence"`
	RelatedArticles     []ArticleSummary `json:"related_articles"`
	SuggestedActions    []QuickAction    `json:"suggested_actions"`
	EscalationSuggested bool             `json:"escalation_suggested"`
	EscalationRequested bool             `json:"-"`
	ArticleID           *int64           `json:"-"`
}

type Composer struct {
	searcher    Searcher
	searchLimit int
	now         func() time.Time
	debug       bool

	mu  sync.Mutex // Guards rnd, *rand.Rand is not safe for concurrent use
	rnd RandomSource
}

type ComposerOption func(*Composer)

// WithRandomSource makes template choice deterministic in tests.
func WithRandomSource(rnd RandomSource) ComposerOption {
	return func(c *Composer) { c.rnd = rnd }
}

func WithClock(now func() time.Time) ComposerOption {
	return func(c *Composer) { c.now = now }
}

func WithDebugLogging(enabled bool) ComposerOption {
	return func(c *Composer) { c.debug = enabled }
}

func NewComposer(searcher Searcher, searchLimit int, opts ...ComposerOption) *Composer {
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}
	c := &Composer{
		searcher:    searcher,
		searchLimit: searchLimit,
		now:         time.Now,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Composer) pick(pool []string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pool[c.rnd.Intn(len(pool))]
}

// Compose runs the decision cascade for one message and records the turn in
// cc. It never fails: a panic anywhere below turns into the apology reply.
func (c *Composer) Compose(ctx context.Context, message string, cc *ConversationContext) (resp ComposedResponse) {
	if cc == nil {
		cc = newConversationContext("", c.now(), DefaultMaxHistory)
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Composer panic for session %s: %v\n%s", cc.SessionID, r, debug.Stack())
			resp = fallbackResponse()
			cc.SetLastTurn(message, resp.Text)
		}
	}()

	cc.IncrementMessageCount()
	class := Classify(message)
	if c.debug {
		log.Printf("Session %s message %d classified as %s (%.2f) keywords=%v escalation=%v",
			cc.SessionID, cc.MessageCount, class.Type, class.Confidence, class.Keywords, class.EscalationRequired)
	}

	if class.Type == MessageGibberish {
		resp = c.handleGibberish(cc)
	} else {
		cc.ResetGibberishCount()
		switch class.Type {
		case MessageGreeting:
			resp = c.handleGreeting(message)
		case MessageQuestion:
			resp = c.handleQuestion(ctx, message)
		case MessageGratitude:
			resp = c.reply(MessageGratitude, class.Confidence, c.pick(gratitudeReplies))
		case MessageFarewell:
			resp = c.reply(MessageFarewell, class.Confidence, c.pick(farewellReplies))
		case MessageRequest:
			resp = c.reply(MessageRequest, escalationConfidence, c.pick(escalationRequestReplies))
		default:
			resp = c.handleGeneralQuery(ctx, message)
		}
	}

	if class.EscalationRequired {
		resp.EscalationRequested = true
		resp.EscalationSuggested = true
	}
	if cc.ShowsFrustration(c.now()) {
		resp.EscalationSuggested = true
	}
	if resp.EscalationSuggested {
		resp.SuggestedActions = withEscalation(resp.SuggestedActions)
	}

	cc.SetLastTurn(message, resp.Text)
	return resp
}

func (c *Composer) reply(t MessageType, confidence float64, text string) ComposedResponse {
	return ComposedResponse{
		Text:             text,
		Type:             t,
		Confidence:       confidence,
		RelatedArticles:  []ArticleSummary{},
		SuggestedActions: QuickActionsFor(t),
	}
}

func (c *Composer) handleGibberish(cc *ConversationContext) ComposedResponse {
	cc.IncrementGibberishCount()
	if cc.GibberishCount > gibberishEscalationStreak {
		resp := c.reply(MessageGibberish, 0.9, gibberishEscalation)
		resp.EscalationSuggested = true
		return resp
	}
	return c.reply(MessageGibberish, 0.9, c.pick(gibberishReplies))
}

func timeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "morning"
	case h < 17:
		return "afternoon"
	default:
		return "evening"
	}
}

func (c *Composer) handleGreeting(message string) ComposedResponse {
	text := c.pick(greetingReplies)
	period := timeOfDay(c.now())
	if strings.Contains(strings.ToLower(message), "good "+period) {
		text = fmt.Sprintf("Good %s! %s", period, text)
	}
	return c.reply(MessageGreeting, 0.9, text)
}

func (c *Composer) handleQuestion(ctx context.Context, message string) ComposedResponse {
	if results := c.search(ctx, message); len(results) > 0 {
		return c.articleReply(MessageQuestion, questionArticleReply, results)
	}
	return c.handleGeneralQuery(ctx, message)
}

// handleGeneralQuery scans the topic buckets in priority order; a bucket with a
// knowledge hit surfaces the article, otherwise its canned checklist. Messages
// outside every bucket get a raw search and then a clarification prompt.
func (c *Composer) handleGeneralQuery(ctx context.Context, message string) ComposedResponse {
	if bucket, ok := matchTopic(message); ok {
		wording := topicReplies[bucket.Type]
		if bucket.SearchQuery != "" {
			if results := c.search(ctx, bucket.SearchQuery); len(results) > 0 {
				return c.articleReply(bucket.Type, wording.ArticleReply, results)
			}
		}
		return c.reply(bucket.Type, cannedConfidence, wording.Canned)
	}

	if results := c.search(ctx, message); len(results) > 0 {
		return c.articleReply(MessageGeneralInquiry, generalArticleReply, results)
	}
	return c.reply(MessageGeneralInquiry, clarifyConfidence, clarificationReply)
}

func (c *Composer) articleReply(t MessageType, format string, results []ArticleSummary) ComposedResponse {
	top := results[0]
	confidence := bodyHitConfidence
	if top.Score >= titleMatchScore {
		confidence = titleHitConfidence
	}
	resp := c.reply(t, confidence, fmt.Sprintf(format, top.Title, top.Excerpt))
	resp.RelatedArticles = results
	id := top.ArticleID
	resp.ArticleID = &id
	return resp
}

// search treats a failing knowledge base as an empty one.
func (c *Composer) search(ctx context.Context, query string) []ArticleSummary {
	if c.searcher == nil {
		return nil
	}
	results, err := c.searcher.Search(ctx, query, c.searchLimit)
	if err != nil {
		log.Printf("Knowledge search failed, answering without articles: %v", err)
		return nil
	}
	return results
}

func fallbackResponse() ComposedResponse {
	return ComposedResponse{
		Text:                fallbackReply,
		Type:                MessageUnknown,
		Confidence:          fallbackConfidence,
		RelatedArticles:     []ArticleSummary{},
		SuggestedActions:    QuickActionsFor(MessageUnknown),
		EscalationSuggested: true,
	}
}

// Welcome picks the greeting that opens a new conversation.
func (c *Composer) Welcome() string {
	return c.pick(welcomeMessages)
}
