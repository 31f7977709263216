package attendance

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

// Payload is the content of an activity QR code.
type Payload struct {
	ActivityID string `json:"hd"`
	Token      string `json:"token,omitempty"`
}

// Encode renders p in the wire format scanners read back.
func (p Payload) Encode() string {
	b, _ := json.Marshal(p)
	return string(b)
}

// wirePayload accepts "hd" as either a JSON string or number.
type wirePayload struct {
	HD    json.RawMessage `json:"hd"`
	Token string          `json:"token"`
}

// DecodePayload parses a scanned QR string. The JSON may arrive as-is or
// percent-encoded.
func DecodePayload(raw string) (Payload, bool) {
	if p, ok := decodeJSON(raw); ok {
		return p, true
	}
	unescaped, err := url.PathUnescape(raw)
	if err != nil {
		return Payload{}, false
	}
	return decodeJSON(unescaped)
}

func decodeJSON(s string) (Payload, bool) {
	var w wirePayload
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return Payload{}, false
	}
	id, ok := activityID(w.HD)
	if !ok {
		return Payload{}, false
	}
	return Payload{ActivityID: id, Token: w.Token}, true
}

func activityID(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}
