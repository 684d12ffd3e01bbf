// Package session keeps per-user conversation state in memory.
//
// One session per user id. A map-level RWMutex guards only the session map;
// each session carries its own locks, so concurrent turns for different users
// never serialize against each other. All read accessors return defensive
// copies: callers can never mutate store state through a snapshot.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jupiterlabs/reengage/internal/classify"
)

// ErrSessionNotFound indicates no session exists for the user id.
var ErrSessionNotFound = errors.New("session not found")

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Stage is the funnel step where the applicant dropped off.
type Stage string

const (
	StagePANConfirmation  Stage = "pan_card_confirmation"
	StageEligibilityCheck Stage = "eligibility_check"
	StageCardCVP          Stage = "card_cvp"
	StagePersonalDetails  Stage = "personal_details_form"
	StageApprovalLimit    Stage = "card_approval_limit"
	StageEKYC             Stage = "ekyc_process"
	StageVKYC             Stage = "vkyc_process"
	StageOTPScreen        Stage = "otp_screen"
)

// Turn is one message in a conversation.
type Turn struct {
	Role      Role              `json:"role"`
	Text      string            `json:"text"`
	Language  classify.Language `json:"language,omitempty"`
	Intent    classify.Intent   `json:"intent,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Session is a snapshot of one user's conversation state.
type Session struct {
	UserID         string    `json:"user_id"`
	DisplayName    string    `json:"display_name"`
	ConversationID string    `json:"conversation_id"`
	Stage          Stage     `json:"stage,omitempty"`
	Turns          []Turn    `json:"turns"`
	OfferShows     int       `json:"offer_shows"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Stats summarizes the store for the operator endpoint.
type Stats struct {
	ActiveSessions int `json:"active_sessions"`
	TotalTurns     int `json:"total_turns"`
}

// newConversationID returns a "conv_" id with 12 hex characters, short enough
// to grep in logs.
func newConversationID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "conv_" + raw[:12]
}
