package dialogue

import (
	"fmt"
	"strings"

	"github.com/jupiterlabs/reengage/internal/classify"
	"github.com/jupiterlabs/reengage/internal/knowledge"
)

// systemPrompt is the grounding contract given to the model on every call.
// The model may only use the supplied product context; everything the
// orchestrator could not ground is refused before the model is ever called,
// and this prompt keeps the model honest about the context it does get.
const systemPrompt = `You are a friendly and knowledgeable assistant from Jupiter Money, helping users complete their Edge+ CSB Bank RuPay Credit Card application.

GROUNDING RULES (MANDATORY):
1. SINGLE SOURCE OF TRUTH: only use information from the PRODUCT CONTEXT section below. Never use training data, assumptions, or industry averages.
2. ZERO FABRICATION: never invent fees, cashback percentages, caps, limits, eligibility criteria, interest rates, or reward rules. If a detail is not in the context, say: "I don't have that specific information in the product documentation."
3. CLARIFY AMBIGUITY: if the question is ambiguous (e.g. "What cashback?"), ask whether they mean shopping, travel, Jupiter Flights, or other spends.
4. NO GENERALIZATIONS: never say "typically", "usually", or "most cards". Speak only about the Edge+ CSB RuPay card.
5. UPI REWARDS: when mentioning UPI rewards, always state they apply only when UPI transactions are made via the Jupiter app.

SCOPE: you only discuss the Jupiter Edge+ card — its features, cashback, fees, eligibility, documents, and application process. Politely redirect anything else.

LANGUAGE: match the user's register. If they write in Hindi or Hinglish, reply in Hinglish; if English, reply in English.

ROLE: the user already started an application and paused. Acknowledge their question, answer it directly with exact numbers from the context, then add a soft nudge to continue the application. Be warm and brief. Never repeat the same message twice.`

// buildSystem assembles the per-call system text: the grounding contract,
// the retrieved product context, and the conversation framing.
func buildSystem(res classify.Result, chunks []knowledge.Result, displayName, offerText string) string {
	var b strings.Builder
	b.WriteString(systemPrompt)

	if displayName != "" {
		fmt.Fprintf(&b, "\n\nUSER NAME: %s", displayName)
	}
	fmt.Fprintf(&b, "\nDETECTED LANGUAGE: %s", res.Language)
	fmt.Fprintf(&b, "\nDETECTED INTENT: %s", res.Intent)
	if res.Merchant != "" {
		fmt.Fprintf(&b, "\nMENTIONED MERCHANT: %s", res.Merchant)
	}

	if len(chunks) > 0 {
		b.WriteString("\n\nPRODUCT CONTEXT:\n")
		for _, c := range chunks {
			b.WriteString("- ")
			b.WriteString(c.Chunk.Text)
			b.WriteString("\n")
		}
	} else {
		b.WriteString("\n\nPRODUCT CONTEXT: none retrieved for this turn. Answer conversationally without product numbers.")
	}

	if offerText != "" {
		b.WriteString("\n\nAn offer will be appended after your reply; do not mention offers or vouchers yourself.")
	}

	return b.String()
}
