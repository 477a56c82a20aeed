package contracts

import (
	"encoding/json"
	"strconv"
)

// Payload carries the small set of per-kind flags attached to a queued item,
// e.g. "new_upload" or "force".
type Payload map[string]string

func (p Payload) String(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Bool reports whether key holds a truthy value. Missing or unparsable values are false.
func (p Payload) Bool(key string) bool {
	v, err := strconv.ParseBool(p.String(key))
	return err == nil && v
}

// With returns a copy of the payload with key set to value.
func (p Payload) With(key, value string) Payload {
	out := make(Payload, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[key] = value
	return out
}

func (p Payload) Encode() (string, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func DecodePayload(raw string) (Payload, error) {
	p := Payload{}
	if raw == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return p, nil
}

// QueueItem is one unit of work waiting in a named queue.
type QueueItem struct {
	ID        string
	Queue     string
	SubjectID string
	Attempts  int
	Payload   Payload
}
