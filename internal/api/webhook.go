package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/jupiterlabs/reengage/internal/log"
)

// maxWebhookBody caps the webhook payload size. WhatsApp notifications are
// small; anything larger is not a legitimate delivery.
const maxWebhookBody = 1 << 20

// webhookHandler serves the WhatsApp Business webhook: the one-time
// subscription handshake and signed message deliveries.
type webhookHandler struct {
	dialogue    Responder
	verifyToken string
	appSecret   string
	logger      log.Logger
}

// webhookPayload mirrors the WhatsApp Business notification envelope, down to
// the one message path we consume.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// verify handles GET /webhook: the subscription handshake. WhatsApp sends
// hub.mode=subscribe with the configured verify token and expects the
// challenge echoed back verbatim.
func (h *webhookHandler) verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || h.verifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		h.logger.Warn("webhook verification rejected", "mode", mode, "ip", r.RemoteAddr)
		writeError(w, http.StatusForbidden, "forbidden", "verification failed", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, challenge); err != nil {
		h.logger.Debug("failed to write challenge", "error", err)
	}
}

// receive handles POST /webhook: an inbound WhatsApp message. The signature
// is checked over the raw body before the payload is even parsed; an
// unsigned or mis-signed delivery never reaches a session.
func (h *webhookHandler) receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to read body", h.logger)
		return
	}

	if !h.validSignature(body, r.Header.Get("X-Hub-Signature-256")) {
		h.logger.Warn("webhook signature rejected", "ip", r.RemoteAddr)
		writeError(w, http.StatusForbidden, "forbidden", "invalid signature", h.logger)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}

	from, name, text, ok := extractMessage(payload)
	if !ok {
		// Status updates and other non-message notifications still get a 200,
		// or WhatsApp keeps redelivering them.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"}, h.logger)
		return
	}

	reply, err := h.dialogue.Respond(r.Context(), from, text, name)
	if err != nil {
		h.logger.Error("webhook respond failed", "user_id", from, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to process message", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messaging_product": "whatsapp",
		"to":                from,
		"type":              "text",
		"text":              map[string]string{"body": reply.Text},
	}, h.logger)
}

// validSignature checks the X-Hub-Signature-256 header against the HMAC-SHA256
// of the raw body. Without a configured app secret every delivery is rejected:
// failing closed beats accepting forged messages.
func (h *webhookHandler) validSignature(body []byte, header string) bool {
	if h.appSecret == "" {
		return false
	}
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.appSecret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(sig), []byte(want))
}

// extractMessage pulls the first text message out of the notification
// envelope, if there is one.
func extractMessage(p webhookPayload) (from, name, text string, ok bool) {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		return "", "", "", false
	}
	value := p.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return "", "", "", false
	}
	msg := value.Messages[0]
	if msg.From == "" || msg.Text.Body == "" {
		return "", "", "", false
	}
	if len(value.Contacts) > 0 {
		name = value.Contacts[0].Profile.Name
	}
	return msg.From, name, msg.Text.Body, true
}
