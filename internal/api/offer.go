package api

import (
	"net/http"
	"strings"

	"github.com/jupiterlabs/reengage/internal/log"
	"github.com/jupiterlabs/reengage/internal/offer"
)

// offerHandler serves the operator endpoints for the active offer.
type offerHandler struct {
	offers *offer.State
	logger log.Logger
}

// get handles GET /api/offer.
func (h *offerHandler) get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.offers.Active(), h.logger)
}

// put handles PUT /api/offer: atomically replaces the active offer. Sessions
// that already consumed their offer slot are unaffected; the new offer applies
// from the next hesitation onward.
func (h *offerHandler) put(w http.ResponseWriter, r *http.Request) {
	var o offer.Offer
	if err := decodeJSON(r, &o); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}
	if strings.TrimSpace(o.Title) == "" || strings.TrimSpace(o.Message) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "title and message are required", h.logger)
		return
	}
	if o.MaxShows < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "max_shows must not be negative", h.logger)
		return
	}

	h.offers.Set(o)
	h.logger.Info("active offer replaced", "title", o.Title, "max_shows", o.MaxShows)
	writeJSON(w, http.StatusOK, o, h.logger)
}
