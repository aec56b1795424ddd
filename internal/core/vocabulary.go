package core

import (
	"regexp"
	"strings"
)

// keyboardPatterns are substrings produced by mashing adjacent keys.
var keyboardPatterns = []string{
	"asdf", "qwerty", "zxcv", "hjkl", "mnbv", "dfgh", "jklm", "uiop", "wasd",
}

// commonWords are short words and helpdesk terms accepted as real even when
// the vowel heuristic would not vouch for them.
var commonWords = toSet(
	"the", "and", "for", "are", "but", "not", "you", "all", "can", "had", "her", "was", "one",
	"our", "out", "day", "get", "has", "him", "his", "how", "man", "new", "now", "old", "see",
	"two", "who", "boy", "did", "its", "let", "put", "say", "she", "too", "use", "my", "why",
	"hello", "hi", "hey", "help", "please", "thanks", "thank", "thx", "yes", "no", "ok", "okay",
	"sure", "computer", "laptop", "email", "password", "login", "problem", "issue", "error",
	"support", "ticket", "system", "network", "internet", "wifi", "vpn", "printer", "software",
	"hardware", "windows", "microsoft", "office", "outlook", "teams", "monitor", "mouse",
	"keyboard", "crm", "sql", "pdf", "html",
)

var greetingWords = []string{"hello", "hi", "hey", "greetings", "hola", "howdy"}

var greetingPhrases = []string{"good morning", "good afternoon", "good evening"}

var questionWords = []string{
	"what", "how", "why", "when", "where", "who", "which", "can", "could", "would",
	"should", "is", "are", "do", "does", "did",
}

var gratitudeWords = []string{"thank", "thanks", "thankyou", "thanked", "appreciate", "appreciated", "grateful", "thx", "ty", "cheers"}

var farewellWords = []string{"bye", "goodbye", "see you", "farewell", "exit", "quit", "leave", "done", "finished"}

var escalationPhrases = []string{
	"human agent", "real person", "live agent", "speak to agent", "speak to an agent",
	"speak to someone", "speak with it support", "speak with someone", "talk to a human",
	"talk to an agent", "talk to someone", "create a ticket", "create a support ticket",
	"open a ticket", "open a support ticket", "raise a ticket", "log a ticket",
}

// topicBucket is one keyword family of the general query scan. Buckets are
// checked in declaration order.
type topicBucket struct {
	Type        MessageType
	Keywords    []string
	SearchQuery string // Empty means canned reply only
}

var topicBuckets = []topicBucket{
	{
		Type:        MessagePasswordHelp,
		Keywords:    []string{"password", "login", "log in", "sign in", "locked out", "account locked"},
		SearchQuery: "password reset login",
	},
	{
		Type:        MessageEmailProblem,
		Keywords:    []string{"email", "e-mail", "outlook", "mail", "inbox", "mailbox"},
		SearchQuery: "email outlook mail",
	},
	{
		Type:        MessageNetworkIssue,
		Keywords:    []string{"internet", "network", "wifi", "wi-fi", "connection", "connect", "vpn"},
		SearchQuery: "network wifi internet connection",
	},
	{
		Type:        MessageHardwareProblem,
		Keywords:    []string{"printer", "print", "printing", "scanner"},
		SearchQuery: "printer printing",
	},
	{
		Type:        MessageSoftwareProblem,
		Keywords:    []string{"software", "application", "program", "app", "install", "update"},
		SearchQuery: "software application install",
	},
	{
		Type:     MessageGeneralInquiry,
		Keywords: []string{"how are you", "how do you do"},
	},
}

// keywordMatcher matches whole words (with common inflections) and phrases.
type keywordMatcher struct {
	words    []string
	patterns []*regexp.Regexp
}

// newKeywordMatcher compiles each keyword with word boundaries. With inflect
// set, single words also accept plural and verb suffixes, so "print" matches
// "printing".
func newKeywordMatcher(inflect bool, keywords ...[]string) *keywordMatcher {
	m := &keywordMatcher{}
	for _, list := range keywords {
		for _, kw := range list {
			pattern := `\b` + regexp.QuoteMeta(kw)
			if inflect && !strings.Contains(kw, " ") {
				pattern += `(?:es|s|ed|ing)?`
			}
			m.words = append(m.words, kw)
			m.patterns = append(m.patterns, regexp.MustCompile(pattern+`\b`))
		}
	}
	return m
}

// Matches returns the keywords found in the lowercased text.
func (m *keywordMatcher) Matches(text string) []string {
	var found []string
	for i, p := range m.patterns {
		if p.MatchString(text) {
			found = append(found, m.words[i])
		}
	}
	return found
}

func (m *keywordMatcher) Any(text string) bool {
	for _, p := range m.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

var (
	greetingMatcher   = newKeywordMatcher(false, greetingWords, greetingPhrases)
	gratitudeMatcher  = newKeywordMatcher(false, gratitudeWords)
	farewellMatcher   = newKeywordMatcher(false, farewellWords)
	escalationMatcher = newKeywordMatcher(false, escalationPhrases)
	bucketMatchers    = compileBuckets()
)

func compileBuckets() []*keywordMatcher {
	matchers := make([]*keywordMatcher, len(topicBuckets))
	for i, b := range topicBuckets {
		matchers[i] = newKeywordMatcher(true, b.Keywords)
	}
	return matchers
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsCommonWord reports whether word is in the curated vocabulary.
func IsCommonWord(word string) bool {
	_, ok := commonWords[strings.ToLower(word)]
	return ok
}
