package dialogue

import (
	"fmt"
	"strings"

	"github.com/jupiterlabs/reengage/internal/classify"
	"github.com/jupiterlabs/reengage/internal/session"
)

// Fixed replies for the paths that must never reach the model: unsupported
// languages, off-topic questions, ungrounded queries, and backend failures.
// These are policy outcomes, so they are deterministic by construction.

const unsupportedLanguageReply = "I'm sorry, but I can only communicate in English, Hindi, or Hinglish (mix of Hindi-English). Could you please ask your question in one of these languages?\n\n---\n\nमुझे खेद है, लेकिन मैं केवल English, Hindi, या Hinglish में बात कर सकता हूं। कृपया अपना सवाल इन भाषाओं में पूछें।"

func offTopicReply(lang classify.Language, name string) string {
	if hindiRegister(lang) {
		return fmt.Sprintf("%s, main sirf Jupiter Edge+ CSB Bank RuPay Credit Card ke baare mein help kar sakta hoon. Main card ke features, cashback benefits, eligibility, aur application process ke baare mein bata sakta hoon. Kya aap Jupiter Edge+ card ke baare mein kuch jaanna chahte hain?", fallbackName(name, "Ji"))
	}
	return fmt.Sprintf("I appreciate your question, %s, but I can only help with the Jupiter Edge+ CSB Bank RuPay Credit Card. I can answer questions about the card's features, cashback benefits, eligibility, or the application process. Is there anything about the Jupiter Edge+ card I can help you with?", fallbackName(name, "there"))
}

func noGroundingReply(lang classify.Language) string {
	if hindiRegister(lang) {
		return "Mujhe product documentation mein yeh specific information nahi mili. Main card ke cashback, fees, eligibility, ya application process ke baare mein zaroor help kar sakta hoon — kya aap inmein se kuch poochna chahenge?"
	}
	return "I don't have that specific information in the product documentation, so I'd rather not guess. I can help with the card's cashback, fees, eligibility, or the application process — would you like to ask about one of those?"
}

func backendFailureReply(lang classify.Language) string {
	if hindiRegister(lang) {
		return "Maaf kijiye, abhi mujhe jawab dene mein dikkat ho rahi hai. Thodi der baad dobara try kijiye."
	}
	return "Sorry, I'm having trouble responding right now. Please try again in a moment."
}

func hindiRegister(lang classify.Language) bool {
	return lang == classify.LangHindi || lang == classify.LangHinglish
}

func fallbackName(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}

// initialMessage is the re-engagement opener sent when a drop-off event
// arrives, personalized by funnel stage.
func initialMessage(name string, stage session.Stage) string {
	name = fallbackName(name, "there")
	opener := fmt.Sprintf("Hi %s! 👋 This is Jupiter Money. You were so close to getting your Jupiter Edge+ Credit Card", name)

	var hook string
	switch stage {
	case session.StagePANConfirmation:
		hook = "you paused at the PAN confirmation step. Good news: you only need your 10-digit PAN number, not the physical card."
	case session.StageEligibilityCheck:
		hook = "you paused at the eligibility check. It's instant and has zero impact on your credit score."
	case session.StageCardCVP:
		hook = "you were reviewing the card benefits — 10% cashback on shopping, 5% on travel, and it's lifetime free."
	case session.StagePersonalDetails:
		hook = "you paused at the personal details form. It takes just a couple of minutes to finish."
	case session.StageApprovalLimit:
		hook = "your card was approved with a credit limit! Just a few steps left to activate it."
	case session.StageEKYC:
		hook = "you paused at the eKYC step. It's fully digital — only your Aadhaar number is needed."
	case session.StageVKYC:
		hook = "you paused at the video KYC step. It's a short call; just keep your PAN card handy."
	case session.StageOTPScreen:
		hook = "you were one OTP away from finishing your application!"
	default:
		hook = "your application is saved, so you can pick up right where you left off."
	}

	return fmt.Sprintf("%s — %s Is there anything you'd like to know about the card, or shall I help you continue?", opener, hook)
}
