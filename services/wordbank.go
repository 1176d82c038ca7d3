package services

import (
	"context"
	"regexp"
	"strings"
)

// WordBankMatcher detects word-bank usage in two phases: a local
// exact/morphological regex pass, then (only for long-enough ambiguous
// text) an escalation to the remote gateway for fuzzier variants. Remote
// hits are re-validated locally so a hallucinated match never awards
// points.
type WordBankMatcher struct {
	grader Grader
}

const (
	escalationMinTextLen  = 20
	escalationMinTokenLen = 4
	stemPrefixLen         = 2
)

var wordSuffixes = `(?:s|es|ed|d|ing|er|ers)?`

func NewWordBankMatcher(grader Grader) *WordBankMatcher {
	return &WordBankMatcher{grader: grader}
}

// Match returns the distinct word-bank entries used in text, in bank
// order. If the local pass finds anything, the remote service is never
// consulted.
func (m *WordBankMatcher) Match(ctx context.Context, text string, wordBank []string) []string {
	local := m.matchLocal(text, wordBank)
	if len(local) > 0 {
		return local
	}

	if !m.shouldEscalate(text, wordBank) {
		return nil
	}

	remote := m.grader.DetectVocabulary(ctx, text, wordBank)
	return m.validateRemote(text, wordBank, remote)
}

func (m *WordBankMatcher) matchLocal(text string, wordBank []string) []string {
	var hits []string
	for _, word := range wordBank {
		if matchesMorphological(text, word) {
			hits = append(hits, word)
		}
	}
	return hits
}

// matchesMorphological matches the base word plus common suffix forms
// ("ocean", "oceans"; "jump", "jumped", "jumping").
func matchesMorphological(text, word string) bool {
	base := regexp.QuoteMeta(normalizeWord(word))
	if base == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)\b` + base + wordSuffixes + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// shouldEscalate gates the remote call: the text must be long enough to
// be ambiguous, contain a meaningful token, and share a stem prefix with
// at least one bank entry (e.g. "ran" never escalates for a bank that
// has no r-words).
func (m *WordBankMatcher) shouldEscalate(text string, wordBank []string) bool {
	if len(strings.TrimSpace(text)) < escalationMinTextLen {
		return false
	}

	hasMeaningfulToken := false
	tokens := tokenize(text)
	for _, tok := range tokens {
		if len(tok) >= escalationMinTokenLen {
			hasMeaningfulToken = true
			break
		}
	}
	if !hasMeaningfulToken {
		return false
	}

	for _, word := range wordBank {
		for _, tok := range tokens {
			if sharesStem(tok, word) {
				return true
			}
		}
	}
	return false
}

// sharesStem is the loose relation that justifies asking the remote
// service about a token: a common two-letter prefix, or an ablaut-style
// variant ("ran"/"run") where only the first letter and length line up.
func sharesStem(token, word string) bool {
	w := normalizeWord(word)
	if w == "" || token == "" {
		return false
	}
	if len(token) >= stemPrefixLen && len(w) >= stemPrefixLen && token[:stemPrefixLen] == w[:stemPrefixLen] {
		return true
	}
	if token[0] == w[0] && len(token) >= 3 && abs(len(token)-len(w)) <= 1 {
		return true
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// validateRemote keeps only remote hits that are genuine bank entries and
// whose stem actually appears in the text.
func (m *WordBankMatcher) validateRemote(text string, wordBank []string, remote []string) []string {
	if len(remote) == 0 {
		return nil
	}

	bank := make(map[string]string, len(wordBank))
	for _, word := range wordBank {
		bank[normalizeWord(word)] = word
	}

	tokens := tokenize(text)
	var hits []string
	seen := make(map[string]bool)
	for _, claimed := range remote {
		word, ok := bank[normalizeWord(claimed)]
		if !ok || seen[word] {
			continue
		}
		for _, tok := range tokens {
			if sharesStem(tok, word) {
				hits = append(hits, word)
				seen[word] = true
				break
			}
		}
	}
	return hits
}

var tokenPattern = regexp.MustCompile(`[a-zA-Z']+`)

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	return raw
}
