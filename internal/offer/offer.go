// Package offer holds the re-engagement offer shown to hesitant applicants.
//
// Operators can swap the active offer at runtime through the API, so the
// state is a single atomic pointer: readers always see a complete offer,
// never a half-written one.
package offer

import (
	"strings"
	"sync/atomic"

	"github.com/jupiterlabs/reengage/internal/classify"
)

// Offer is one time-bound incentive template.
type Offer struct {
	Title       string `json:"title"`
	Message     string `json:"message"`
	UrgencyText string `json:"urgency_text"`
	CTA         string `json:"cta"`
	Link        string `json:"link"`
	MaxShows    int    `json:"max_shows"`
}

// State is the swappable active offer.
type State struct {
	current atomic.Pointer[Offer]
}

// NewState creates offer state with the given initial offer.
func NewState(initial Offer) *State {
	s := &State{}
	s.current.Store(&initial)
	return s
}

// Active returns a snapshot of the current offer.
func (s *State) Active() Offer {
	return *s.current.Load()
}

// Set atomically replaces the active offer.
func (s *State) Set(o Offer) {
	s.current.Store(&o)
}

// Render formats the offer for appending to a reply. Hindi and Hinglish
// sessions get a note that the conversation can continue in Hindi.
func (o Offer) Render(lang classify.Language) string {
	var b strings.Builder
	if lang == classify.LangHindi || lang == classify.LangHinglish {
		b.WriteString("(Aap Hindi mein bhi baat kar sakte hain)\n\n")
	}
	b.WriteString(o.Title)
	b.WriteString("\n\n")
	b.WriteString(o.Message)
	b.WriteString("\n\n")
	b.WriteString(o.UrgencyText)
	b.WriteString("\n\n")
	b.WriteString(o.CTA)
	if o.Link != "" {
		b.WriteString("\n\n💳 Continue here: ")
		b.WriteString(o.Link)
	}
	return b.String()
}
