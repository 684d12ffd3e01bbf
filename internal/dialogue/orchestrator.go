// Package dialogue decides what the agent says.
//
// The orchestrator owns the turn pipeline: classify, retrieve grounding,
// maybe generate, maybe attach the offer, record both turns. Policy outcomes
// (unsupported language, off-topic, no grounding, backend failure) are fixed
// replies decided here; the model is only called when there is something for
// it to say and context to say it from.
package dialogue

import (
	"context"
	"time"

	"github.com/jupiterlabs/reengage/internal/classify"
	"github.com/jupiterlabs/reengage/internal/knowledge"
	"github.com/jupiterlabs/reengage/internal/log"
	"github.com/jupiterlabs/reengage/internal/offer"
	"github.com/jupiterlabs/reengage/internal/session"
)

// Message is one prior turn passed to the Generator.
type Message struct {
	Role session.Role
	Text string
}

// Request carries everything a Generator needs for one model call.
type Request struct {
	System      string
	History     []Message
	Chunks      []knowledge.Result
	Language    classify.Language
	UserMessage string
}

// Generator produces a model reply. Implemented by the genai backend in
// production and by scripted fakes in tests.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Reply is the orchestrator's outcome for one turn.
type Reply struct {
	Text           string            `json:"text"`
	Intent         classify.Intent   `json:"intent"`
	Language       classify.Language `json:"language"`
	ConversationID string            `json:"conversation_id"`
	Timestamp      time.Time         `json:"timestamp"`
}

// Event is a funnel drop-off notification that opens a conversation.
type Event struct {
	UserID string        `json:"user_id"`
	Name   string        `json:"name"`
	Phone  string        `json:"phone"`
	Stage  session.Stage `json:"drop_off_stage"`
}

// Config wires the orchestrator.
type Config struct {
	Sessions  *session.Store
	Knowledge *knowledge.Store
	Offers    *offer.State
	Generator Generator
	Logger    log.Logger

	TopK          int
	MinScore      float64
	HistoryWindow int
	OfferLink     string

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Orchestrator runs dialogue turns.
type Orchestrator struct {
	sessions  *session.Store
	knowledge *knowledge.Store
	offers    *offer.State
	generator Generator
	logger    log.Logger

	topK          int
	minScore      float64
	historyWindow int
	offerLink     string
	now           func() time.Time
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		sessions:      cfg.Sessions,
		knowledge:     cfg.Knowledge,
		offers:        cfg.Offers,
		generator:     cfg.Generator,
		logger:        cfg.Logger,
		topK:          cfg.TopK,
		minScore:      cfg.MinScore,
		historyWindow: cfg.HistoryWindow,
		offerLink:     cfg.OfferLink,
		now:           now,
	}
}

// StartConversation opens a session from a drop-off event and returns the
// personalized opener. Deterministic: no model call.
func (o *Orchestrator) StartConversation(ctx context.Context, ev Event) (Reply, error) {
	unlock := o.sessions.Lock(ev.UserID)
	defer unlock()

	sess := o.sessions.GetOrCreate(ev.UserID, ev.Name)
	if ev.Stage != "" {
		o.sessions.SetStage(ev.UserID, ev.Stage)
	}

	text := initialMessage(ev.Name, ev.Stage)
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	o.sessions.Append(ev.UserID, session.Turn{
		Role: session.RoleAgent,
		Text: text,
	})

	o.logger.Info("conversation started",
		"user_id", ev.UserID,
		"conversation_id", sess.ConversationID,
		"stage", ev.Stage)

	return Reply{
		Text:           text,
		Intent:         classify.IntentGreeting,
		Language:       classify.LangEnglish,
		ConversationID: sess.ConversationID,
		Timestamp:      o.now(),
	}, nil
}

// Respond runs one full dialogue turn for the user. The per-user lock is held
// for the whole turn, so concurrent messages from the same user serialize and
// the offer cap and turn ordering stay exact. Respond never surfaces backend
// errors to the caller: generation failure becomes the fixed apology reply.
func (o *Orchestrator) Respond(ctx context.Context, userID, text, displayName string) (Reply, error) {
	unlock := o.sessions.Lock(userID)
	defer unlock()

	sess := o.sessions.GetOrCreate(userID, displayName)
	res := classify.Classify(text)

	replyText := o.decide(ctx, sess, res, text)

	// Nothing is recorded if the caller has already gone away; a half-turn
	// in history would corrupt the next prompt.
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}

	o.sessions.Append(userID,
		session.Turn{Role: session.RoleUser, Text: text, Language: res.Language, Intent: res.Intent},
		session.Turn{Role: session.RoleAgent, Text: replyText, Language: res.Language, Intent: res.Intent},
	)

	o.logger.Info("turn completed",
		"user_id", userID,
		"conversation_id", sess.ConversationID,
		"language", res.Language,
		"intent", res.Intent)

	return Reply{
		Text:           replyText,
		Intent:         res.Intent,
		Language:       res.Language,
		ConversationID: sess.ConversationID,
		Timestamp:      o.now(),
	}, nil
}

// decide picks the reply text for one classified message.
func (o *Orchestrator) decide(ctx context.Context, sess session.Session, res classify.Result, text string) string {
	if res.Language == classify.LangUnsupported {
		return unsupportedLanguageReply
	}

	switch res.Intent {
	case classify.IntentOffTopic:
		return offTopicReply(res.Language, sess.DisplayName)

	case classify.IntentHesitation:
		offerText := o.maybeOffer(sess.UserID, res.Language)
		reply := o.generate(ctx, sess, res, text, nil, offerText)
		if offerText != "" {
			reply = reply + "\n\n" + offerText
		}
		return reply

	case classify.IntentGreeting:
		return o.generate(ctx, sess, res, text, nil, "")
	}

	// Information-seeking: ground or refuse.
	if !res.Intent.InformationSeeking() {
		return o.generate(ctx, sess, res, text, nil, "")
	}
	chunks, err := o.retrieve(ctx, res, text)
	if err != nil {
		o.logger.Warn("grounding search failed",
			"user_id", sess.UserID, "error", err)
		return backendFailureReply(res.Language)
	}
	if len(chunks) == 0 {
		// Not an error: the corpus simply has nothing on this, and
		// answering anyway would mean fabricating product facts.
		o.logger.Info("no grounding for query",
			"user_id", sess.UserID, "intent", res.Intent)
		return noGroundingReply(res.Language)
	}

	return o.generate(ctx, sess, res, text, chunks, "")
}

// intentTopics maps the closed question intents to the corpus topics curated
// for them.
var intentTopics = map[classify.Intent][]string{
	classify.IntentAskCashback:    {"cashback", "rewards"},
	classify.IntentAskFees:        {"fees"},
	classify.IntentAskEligibility: {"eligibility"},
	classify.IntentAskDocuments:   {"documents"},
}

// retrieve gathers grounding for an information-seeking turn. A mentioned
// merchant turns the lookup into a cashback query for that merchant. The
// closed question intents take their curated topic chunks directly, which is
// deterministic and skips the embedding call. Everything else falls back to
// semantic search over the raw message.
func (o *Orchestrator) retrieve(ctx context.Context, res classify.Result, text string) ([]knowledge.Result, error) {
	if res.Merchant != "" {
		return o.knowledge.Search(ctx, "cashback for "+res.Merchant, o.topK, o.minScore)
	}

	if topics, ok := intentTopics[res.Intent]; ok {
		var out []knowledge.Result
		for _, topic := range topics {
			for _, c := range o.knowledge.ByTopic(topic) {
				// Curated hits carry no similarity score.
				out = append(out, knowledge.Result{Chunk: c})
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}

	return o.knowledge.Search(ctx, text, o.topK, o.minScore)
}

// maybeOffer consumes one offer slot if the user is still under the cap and
// returns the rendered offer, or "".
func (o *Orchestrator) maybeOffer(userID string, lang classify.Language) string {
	active := o.offers.Active()
	if !o.sessions.TryShowOffer(userID, active.MaxShows) {
		return ""
	}
	if active.Link == "" {
		active.Link = o.offerLink
	}
	o.logger.Info("offer attached", "user_id", userID, "offer", active.Title)
	return active.Render(lang)
}

// generate calls the model, mapping any failure to the fixed apology so the
// user never sees an error.
func (o *Orchestrator) generate(ctx context.Context, sess session.Session, res classify.Result, text string, chunks []knowledge.Result, offerText string) string {
	req := Request{
		System:      buildSystem(res, chunks, sess.DisplayName, offerText),
		History:     o.history(sess),
		Chunks:      chunks,
		Language:    res.Language,
		UserMessage: text,
	}

	reply, err := o.generator.Generate(ctx, req)
	if err != nil {
		o.logger.Error("generation failed",
			"user_id", sess.UserID,
			"conversation_id", sess.ConversationID,
			"error", err)
		return backendFailureReply(res.Language)
	}
	return reply
}

// history returns the last turns inside the window as generator messages.
func (o *Orchestrator) history(sess session.Session) []Message {
	turns := sess.Turns
	if o.historyWindow > 0 && len(turns) > o.historyWindow {
		turns = turns[len(turns)-o.historyWindow:]
	}
	msgs := make([]Message, len(turns))
	for i, t := range turns {
		msgs[i] = Message{Role: t.Role, Text: t.Text}
	}
	return msgs
}
