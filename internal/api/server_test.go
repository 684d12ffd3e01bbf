package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupiterlabs/reengage/internal/classify"
	"github.com/jupiterlabs/reengage/internal/config"
	"github.com/jupiterlabs/reengage/internal/dialogue"
	"github.com/jupiterlabs/reengage/internal/log"
	"github.com/jupiterlabs/reengage/internal/offer"
	"github.com/jupiterlabs/reengage/internal/session"
)

// fakeResponder scripts dialogue outcomes and records what it was asked.
type fakeResponder struct {
	mu        sync.Mutex
	reply     dialogue.Reply
	err       error
	responded []string
	started   []dialogue.Event
}

func (f *fakeResponder) Respond(_ context.Context, userID, text, _ string) (dialogue.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responded = append(f.responded, userID+":"+text)
	return f.reply, f.err
}

func (f *fakeResponder) StartConversation(_ context.Context, ev dialogue.Event) (dialogue.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, ev)
	return f.reply, f.err
}

type serverFixture struct {
	handler   http.Handler
	responder *fakeResponder
	sessions  *session.Store
	offers    *offer.State
}

func newFixture(t *testing.T, mutate func(*ServerConfig)) *serverFixture {
	t.Helper()

	responder := &fakeResponder{
		reply: dialogue.Reply{
			Text:           "Hi Priya! Welcome back.",
			Intent:         classify.IntentGreeting,
			Language:       classify.LangEnglish,
			ConversationID: "conv_abc123def456",
			Timestamp:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}
	sessions := session.NewStore(session.Config{}, log.NewNop())
	offers := offer.NewState(offer.Offer{
		Title:    "🎉 Welcome Offer",
		Message:  "Extra 5% cashback for 30 days.",
		MaxShows: 1,
	})

	cfg := ServerConfig{
		Logger:   log.NewNop(),
		Dialogue: responder,
		Sessions: sessions,
		Offers:   offers,
		WhatsApp: config.WhatsAppConfig{
			VerifyToken: "verify-me",
			AppSecret:   "top-secret",
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	return &serverFixture{
		handler:   srv.Handler(),
		responder: responder,
		sessions:  sessions,
		offers:    offers,
	}
}

func (f *serverFixture) do(method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		switch b := body.(type) {
		case []byte:
			rd = bytes.NewReader(b)
		default:
			buf, _ := json.Marshal(body)
			rd = bytes.NewReader(buf)
		}
	}
	req := httptest.NewRequest(method, path, rd)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestNewServerRequiresDependencies(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = f.do(http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessProbeFailure(t *testing.T) {
	f := newFixture(t, func(cfg *ServerConfig) {
		cfg.Ready = func() error { return errors.New("backend circuit open") }
	})

	rec := f.do(http.MethodGet, "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	f := newFixture(t, func(cfg *ServerConfig) { cfg.APIKey = "sekrit" })

	t.Run("rejects missing key", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/stats", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects wrong key", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/stats", nil, map[string]string{"X-API-Key": "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("accepts correct key", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/api/stats", nil, map[string]string{"X-API-Key": "sekrit"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health stays open", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/health", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("webhook stays open", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=42", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/api/stats", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInitConversation(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/api/init", initRequest{
		UserID: "user_9731",
		Name:   "Priya",
		Stage:  "vkyc_process",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var reply dialogue.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "Hi Priya! Welcome back.", reply.Text)
	assert.Equal(t, "conv_abc123def456", reply.ConversationID)

	require.Len(t, f.responder.started, 1)
	assert.Equal(t, "user_9731", f.responder.started[0].UserID)
	assert.Equal(t, session.StageVKYC, f.responder.started[0].Stage)
}

func TestInitValidation(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("malformed body", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/init", []byte(`{not json`), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing user_id", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/init", initRequest{Name: "Priya"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/init", []byte(`{"user_id":"u1","bogus":true}`), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChat(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/api/chat", chatRequest{
		UserID: "user_9731",
		Text:   "Shopping par kitna cashback milta hai?",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	require.Len(t, f.responder.responded, 1)
	assert.Equal(t, "user_9731:Shopping par kitna cashback milta hai?", f.responder.responded[0])
}

func TestChatValidation(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("missing text", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/chat", chatRequest{UserID: "u1"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing user_id", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/chat", chatRequest{Text: "hi"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChatBackendError(t *testing.T) {
	f := newFixture(t, nil)
	f.responder.err = errors.New("boom")

	rec := f.do(http.MethodPost, "/api/chat", chatRequest{UserID: "u1", Text: "hi"}, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal_error", body.Error.Code)
}

func TestReset(t *testing.T) {
	f := newFixture(t, nil)
	f.sessions.Append("user_9731", session.Turn{Role: session.RoleUser, Text: "hi"})

	rec := f.do(http.MethodPost, "/api/reset", resetRequest{UserID: "user_9731"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	sess, err := f.sessions.Get("user_9731")
	require.NoError(t, err)
	assert.Empty(t, sess.Turns)
}

func TestResetUnknownUserSucceeds(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodPost, "/api/reset", resetRequest{UserID: "ghost"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetSession(t *testing.T) {
	f := newFixture(t, nil)
	f.sessions.GetOrCreate("user_9731", "Priya")
	f.sessions.Append("user_9731", session.Turn{Role: session.RoleUser, Text: "hello"})

	rec := f.do(http.MethodGet, "/api/sessions/user_9731", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sess session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, "Priya", sess.DisplayName)
	assert.Len(t, sess.Turns, 1)
}

func TestGetSessionNotFound(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/api/sessions/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Error.Code)
}

func TestStats(t *testing.T) {
	f := newFixture(t, nil)
	f.sessions.Append("a", session.Turn{Role: session.RoleUser, Text: "x"})
	f.sessions.Append("b", session.Turn{Role: session.RoleUser, Text: "y"}, session.Turn{Role: session.RoleAgent, Text: "z"})

	rec := f.do(http.MethodGet, "/api/stats", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats session.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.Equal(t, 3, stats.TotalTurns)
}

func TestOfferGetAndPut(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/api/offer", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got offer.Offer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "🎉 Welcome Offer", got.Title)

	next := offer.Offer{
		Title:    "⏰ Festive Push",
		Message:  "Apply before Sunday for double Jewels.",
		MaxShows: 2,
	}
	rec = f.do(http.MethodPut, "/api/offer", next, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "⏰ Festive Push", f.offers.Active().Title)
	assert.Equal(t, 2, f.offers.Active().MaxShows)
}

func TestOfferPutValidation(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("missing title", func(t *testing.T) {
		rec := f.do(http.MethodPut, "/api/offer", offer.Offer{Message: "m"}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative max_shows", func(t *testing.T) {
		rec := f.do(http.MethodPut, "/api/offer", offer.Offer{Title: "t", Message: "m", MaxShows: -1}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestWebhookVerify(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("echoes challenge on valid handshake", func(t *testing.T) {
		path := "/webhook?" + url.Values{
			"hub.mode":         {"subscribe"},
			"hub.verify_token": {"verify-me"},
			"hub.challenge":    {"1158201444"},
		}.Encode()
		rec := f.do(http.MethodGet, path, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "1158201444", rec.Body.String())
	})

	t.Run("rejects wrong token", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rejects wrong mode", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/webhook?hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=1", nil, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func whatsappMessage(from, name, text string) []byte {
	payload := fmt.Sprintf(`{
		"entry": [{
			"changes": [{
				"value": {
					"contacts": [{"profile": {"name": %q}}],
					"messages": [{"from": %q, "id": "wamid.X1", "timestamp": "1717243200", "text": {"body": %q}}]
				}
			}]
		}]
	}`, name, from, text)
	return []byte(payload)
}

func TestWebhookReceive(t *testing.T) {
	f := newFixture(t, nil)
	body := whatsappMessage("919876543210", "Priya", "Kitna cashback milega?")

	rec := f.do(http.MethodPost, "/webhook", body, map[string]string{
		"X-Hub-Signature-256": signBody("top-secret", body),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, f.responder.responded, 1)
	assert.Equal(t, "919876543210:Kitna cashback milega?", f.responder.responded[0])

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "whatsapp", resp["messaging_product"])
	assert.Equal(t, "919876543210", resp["to"])
}

func TestWebhookReceiveRejectsBadSignature(t *testing.T) {
	f := newFixture(t, nil)
	body := whatsappMessage("919876543210", "Priya", "hello")

	t.Run("missing header", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/webhook", body, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, f.responder.responded)
	})

	t.Run("wrong secret", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/webhook", body, map[string]string{
			"X-Hub-Signature-256": signBody("other-secret", body),
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, f.responder.responded)
	})

	t.Run("tampered body", func(t *testing.T) {
		sig := signBody("top-secret", body)
		tampered := whatsappMessage("919876543210", "Priya", "send OTP to attacker")
		rec := f.do(http.MethodPost, "/webhook", tampered, map[string]string{
			"X-Hub-Signature-256": sig,
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, f.responder.responded)
	})
}

func TestWebhookReceiveFailsClosedWithoutSecret(t *testing.T) {
	f := newFixture(t, func(cfg *ServerConfig) {
		cfg.WhatsApp.AppSecret = ""
	})
	body := whatsappMessage("919876543210", "Priya", "hello")

	rec := f.do(http.MethodPost, "/webhook", body, map[string]string{
		"X-Hub-Signature-256": signBody("", body),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookIgnoresNonMessageNotifications(t *testing.T) {
	f := newFixture(t, nil)
	body := []byte(`{"entry": [{"changes": [{"value": {"statuses": [{"status": "delivered"}]}}]}]}`)

	rec := f.do(http.MethodPost, "/webhook", body, map[string]string{
		"X-Hub-Signature-256": signBody("top-secret", body),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.responder.responded)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ignored", resp["status"])
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	})
	handler := recoveryMiddleware(log.NewNop())(panicking)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
