// Package classify routes inbound messages by language and intent.
//
// Classification is a closed, rule-driven decision: Devanagari script or a
// curated romanized-Hindi lexicon decides the language, and an ordered table
// of keyword rules decides the intent. The off-topic rule runs first and
// overrides every other signal — a false OFF_TOPIC is cheaper than letting
// the generator discuss politics or competitor banks.
//
// Classify is pure and deterministic: no state, no randomness, no network.
package classify

import (
	"strings"
	"unicode"
)

// Language identifies the detected language register of a message.
type Language string

// Supported language registers. Unsupported short-circuits the dialogue to a
// fixed polite refusal.
const (
	LangEnglish     Language = "ENGLISH"
	LangHindi       Language = "HINDI"
	LangHinglish    Language = "HINGLISH"
	LangUnsupported Language = "UNSUPPORTED"
)

// Intent is the closed set of conversational intents the orchestrator
// dispatches on.
type Intent string

const (
	IntentGreeting       Intent = "GREETING"
	IntentAskCashback    Intent = "ASK_CASHBACK"
	IntentAskFees        Intent = "ASK_FEES"
	IntentAskEligibility Intent = "ASK_ELIGIBILITY"
	IntentAskDocuments   Intent = "ASK_DOCUMENTS"
	IntentHesitation     Intent = "HESITATION"
	IntentOffTopic       Intent = "OFF_TOPIC"
	IntentOther          Intent = "OTHER"
)

// InformationSeeking reports whether the intent should trigger a knowledge
// store lookup before generation.
func (i Intent) InformationSeeking() bool {
	switch i {
	case IntentAskCashback, IntentAskFees, IntentAskEligibility, IntentAskDocuments, IntentOther:
		return true
	default:
		return false
	}
}

// Result is the transient outcome of classifying one message. It is recorded
// into the session's turn entry but never persisted on its own.
type Result struct {
	Language   Language `json:"language"`
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Merchant   string   `json:"merchant,omitempty"` // extracted merchant entity, "" if none mentioned
}

// rule pairs a predicate with the intent it assigns. Rules are evaluated in
// declaration order; the first match wins.
type rule struct {
	intent     Intent
	confidence float64
	match      func(msg string, words map[string]bool) bool
}

var intentRules = []rule{
	// Policy safety: any off-topic signal wins over everything else.
	{IntentOffTopic, 0.95, func(msg string, words map[string]bool) bool {
		return matchKeywords(msg, words, offTopicKeywords)
	}},
	{IntentGreeting, 1.0, func(msg string, _ map[string]bool) bool {
		return greetings[trimGreeting(msg)]
	}},
	{IntentHesitation, 0.9, func(msg string, words map[string]bool) bool {
		return matchKeywords(msg, words, hesitationKeywords)
	}},
	{IntentAskCashback, 0.9, func(msg string, words map[string]bool) bool {
		return matchKeywords(msg, words, cashbackKeywords)
	}},
	{IntentAskFees, 0.9, func(msg string, words map[string]bool) bool {
		return matchKeywords(msg, words, feesKeywords)
	}},
	{IntentAskEligibility, 0.9, func(msg string, words map[string]bool) bool {
		return matchKeywords(msg, words, eligibilityKeywords)
	}},
	{IntentAskDocuments, 0.9, func(msg string, words map[string]bool) bool {
		return matchKeywords(msg, words, documentKeywords)
	}},
	// A bare question with no card vocabulary at all is almost certainly
	// off-topic trivia ("who is...", "what is the capital...").
	{IntentOffTopic, 0.6, func(msg string, words map[string]bool) bool {
		if !questionWords[firstWord(msg)] {
			return false
		}
		return !matchKeywords(msg, words, cardRelatedKeywords)
	}},
}

// Classify maps raw message text to its language, intent, and extracted
// entities. Identical input always yields an identical Result.
func Classify(text string) Result {
	lang, langConf := detectLanguage(text)

	res := Result{
		Language:   lang,
		Confidence: langConf,
		Merchant:   extractMerchant(text),
	}

	if lang == LangUnsupported {
		res.Intent = IntentOther
		return res
	}

	msg := strings.ToLower(strings.TrimSpace(text))
	words := wordSet(msg)

	for _, r := range intentRules {
		if r.match(msg, words) {
			res.Intent = r.intent
			res.Confidence = r.confidence
			return res
		}
	}

	res.Intent = IntentOther
	res.Confidence = 0.5
	return res
}

// detectLanguage applies the closed language decision from most to least
// specific: Devanagari script, romanized Hindi lexicon, foreign scripts,
// Latin fallback.
func detectLanguage(text string) (Language, float64) {
	hasLatin := false
	hasForeign := false
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Devanagari, r):
			return LangHindi, 1.0
		case r <= unicode.MaxASCII && unicode.IsLetter(r):
			hasLatin = true
		case r > unicode.MaxASCII && unicode.IsLetter(r):
			hasForeign = true
		}
	}

	matches := 0
	words := wordSet(strings.ToLower(text))
	for w := range words {
		if hinglishLexicon[w] {
			matches++
		}
	}
	if matches > 0 {
		return LangHinglish, min(1.0, 0.6+0.1*float64(matches))
	}

	if hasForeign {
		return LangUnsupported, 1.0
	}
	if hasLatin {
		return LangEnglish, 0.9
	}
	// Nothing recognizable (digits, emoji, empty).
	return LangUnsupported, 1.0
}

// extractMerchant returns the first known merchant mentioned in the message.
func extractMerchant(text string) string {
	msg := strings.ToLower(text)
	for _, m := range merchants {
		if strings.Contains(msg, m) {
			return m
		}
	}
	return ""
}

// matchKeywords reports whether any keyword matches the message. Single-word
// keywords match on word boundaries; multi-word phrases match as substrings.
func matchKeywords(msg string, words map[string]bool, keywords []string) bool {
	for _, kw := range keywords {
		if strings.ContainsRune(kw, ' ') {
			if strings.Contains(msg, kw) {
				return true
			}
		} else if words[kw] {
			return true
		}
	}
	return false
}

// wordSet tokenizes a lowercased message into its word set, stripping
// punctuation so "fees?" matches "fees".
func wordSet(msg string) map[string]bool {
	words := make(map[string]bool)
	for _, f := range strings.FieldsFunc(msg, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		words[f] = true
	}
	return words
}

func firstWord(msg string) string {
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], "?!.,")
}

// trimGreeting normalizes a message for the exact-match greeting rule.
func trimGreeting(msg string) string {
	return strings.TrimRight(strings.TrimSpace(msg), "?!., ")
}
