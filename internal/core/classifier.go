package core

import (
	"fmt"
	"math"
	"strings"
)

// MessageType is the label the classifier and composer attach to a user message.
type MessageType int

const (
	MessageUnknown MessageType = iota
	MessageGreeting
	MessageQuestion
	MessageRequest
	MessageGratitude
	MessageFarewell
	MessageGibberish
	MessageTechnicalIssue
	MessagePasswordHelp
	MessageEmailProblem
	MessageNetworkIssue
	MessageSoftwareProblem
	MessageHardwareProblem
	MessageGeneralInquiry
)

var messageTypeNames = map[MessageType]string{
	MessageUnknown:         "unknown",
	MessageGreeting:        "greeting",
	MessageQuestion:        "question",
	MessageRequest:         "request",
	MessageGratitude:       "gratitude",
	MessageFarewell:        "farewell",
	MessageGibberish:       "gibberish",
	MessageTechnicalIssue:  "technical_issue",
	MessagePasswordHelp:    "password_help",
	MessageEmailProblem:    "email_problem",
	MessageNetworkIssue:    "network_issue",
	MessageSoftwareProblem: "software_problem",
	MessageHardwareProblem: "hardware_problem",
	MessageGeneralInquiry:  "general_inquiry",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return messageTypeNames[MessageUnknown]
}

func (t MessageType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *MessageType) UnmarshalText(b []byte) error {
	name := string(b)
	for mt, n := range messageTypeNames {
		if n == name {
			*t = mt
			return nil
		}
	}
	return fmt.Errorf("unknown message type %q", name)
}

// IsTechnical reports whether the type names a concrete IT problem area.
func (t MessageType) IsTechnical() bool {
	switch t {
	case MessageTechnicalIssue, MessagePasswordHelp, MessageEmailProblem,
		MessageNetworkIssue, MessageSoftwareProblem, MessageHardwareProblem:
		return true
	}
	return false
}

// Classification is the result of classifying one message.
type Classification struct {
	Type               MessageType `json:"type"`
	Confidence         float64     `json:"confidence"`
	Keywords           []string    `json:"keywords,omitempty"`
	EscalationRequired bool        `json:"escalation_required"`
}

const (
	// minRepeatingWordLen is the shortest word the tiling check looks at, so
	// words like "haha" or "bebe" are not flagged.
	minRepeatingWordLen = 5
	noVowelWordLen      = 8
	realWordRatio       = 0.3
	mashRunLen          = 4
)

// Classify labels a raw message. Gibberish detection runs first and
// short-circuits everything else; the remaining checks run in a fixed order
// and the first match wins.
func Classify(text string) Classification {
	if IsGibberish(text) {
		return Classification{Type: MessageGibberish, Confidence: 0.9}
	}

	lower := strings.ToLower(strings.TrimSpace(text))
	words := normalizeWords(lower)
	c := Classification{
		Keywords:           topicKeywords(words),
		EscalationRequired: escalationMatcher.Any(words),
	}

	switch {
	case greetingMatcher.Any(words):
		c.Type, c.Confidence = MessageGreeting, 0.9
	case isQuestion(lower):
		c.Type, c.Confidence = MessageQuestion, 0.8
	case gratitudeMatcher.Any(words):
		c.Type, c.Confidence = MessageGratitude, 0.9
	case farewellMatcher.Any(words):
		c.Type, c.Confidence = MessageFarewell, 0.85
	case c.EscalationRequired:
		c.Type, c.Confidence = MessageRequest, 0.85
	default:
		c.Type, c.Confidence = MessageGeneralInquiry, 0.5
	}
	return c
}

// IsGibberish reports whether the message looks like keyboard noise rather
// than language.
func IsGibberish(text string) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}

	words := strings.Fields(lettersOnly(strings.ToLower(text)))
	for _, word := range words {
		if len(word) > noVowelWordLen && !hasVowel(word) {
			return true
		}
		if hasKeyboardMash(word) {
			return true
		}
		if len(word) >= minRepeatingWordLen && isRepeatingPattern(word) {
			return true
		}
	}

	recognized := 0
	for _, word := range words {
		if isLikelyRealWord(word) {
			recognized++
		}
	}
	threshold := math.Max(1, realWordRatio*float64(len(words)))
	return float64(recognized) < threshold
}

// lettersOnly keeps ASCII letters and whitespace.
func lettersOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeWords lowercases and replaces everything but letters, digits and
// hyphens with single spaces so keyword patterns see clean word boundaries.
func normalizeWords(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func hasVowel(word string) bool {
	return strings.ContainsAny(word, "aeiou")
}

func hasKeyboardMash(word string) bool {
	for _, p := range keyboardPatterns {
		if strings.Contains(word, p) {
			return true
		}
	}
	run := 1
	for i := 1; i < len(word); i++ {
		if word[i] == word[i-1] {
			run++
			if run >= mashRunLen {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// isRepeatingPattern reports whether some proper prefix tiles the whole word.
func isRepeatingPattern(word string) bool {
	n := len(word)
	for k := 1; k <= n/2; k++ {
		if n%k != 0 {
			continue
		}
		if strings.Repeat(word[:k], n/k) == word {
			return true
		}
	}
	return false
}

func isLikelyRealWord(word string) bool {
	if len(word) < 2 {
		return false
	}
	if _, ok := commonWords[word]; ok {
		return true
	}
	return hasVowel(word)
}

func isQuestion(lower string) bool {
	if strings.Contains(lower, "?") {
		return true
	}
	for _, q := range questionWords {
		if strings.HasPrefix(lower, q+" ") {
			return true
		}
	}
	return false
}

func topicKeywords(words string) []string {
	var found []string
	for _, m := range bucketMatchers {
		found = append(found, m.Matches(words)...)
	}
	return found
}

// matchTopic returns the first bucket whose keywords occur in the message.
func matchTopic(message string) (topicBucket, bool) {
	words := normalizeWords(message)
	for i, m := range bucketMatchers {
		if m.Any(words) {
			return topicBuckets[i], true
		}
	}
	return topicBucket{}, false
}
