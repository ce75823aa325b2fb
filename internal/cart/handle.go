package cart

import (
	"encoding/json"
	"strings"
	"time"
)

type persistedHandle struct {
	SessionID   string    `json:"session_id"`
	CheckoutURL string    `json:"checkout_url,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

// EncodeHandle serializes the session handle for durable storage.
func EncodeHandle(h SessionHandle, now time.Time) (string, error) {
	raw, err := json.Marshal(persistedHandle{SessionID: h.ID, CheckoutURL: h.CheckoutURL, SavedAt: now.UTC()})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeHandle parses a stored handle. Unparsable or empty values are absent.
func DecodeHandle(raw string) (SessionHandle, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SessionHandle{}, false
	}
	var p persistedHandle
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return SessionHandle{}, false
	}
	id := strings.TrimSpace(p.SessionID)
	if id == "" {
		return SessionHandle{}, false
	}
	return SessionHandle{ID: id, CheckoutURL: p.CheckoutURL}, true
}
