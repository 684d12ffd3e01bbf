package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/jupiterlabs/reengage/internal/log"
)

// errorBody is the uniform error envelope for all API errors.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
// Uses buffer-first strategy to ensure headers are only sent after successful
// encoding, so an encode failure can still return a proper 500.
func writeJSON(w http.ResponseWriter, status int, data any, logger log.Logger) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected
		logger.Debug("failed to write response body", "error", err)
	}
}

// writeError writes the uniform error envelope.
func writeError(w http.ResponseWriter, status int, code, message string, logger log.Logger) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body, logger)
}

// decodeJSON decodes a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
