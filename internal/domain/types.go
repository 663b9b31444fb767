package domain

import (
	"encoding/json"
	"time"
)

// GeneralTag is attached to entries whose content matched no classifier trigger
const GeneralTag = "general"

// Entry represents one ingested unit of data held by the store.
// Payload is a string, a []byte, or the JSON encoding of a structured value.
type Entry struct {
	ID         string    `json:"id"`
	Payload    any       `json:"payload"`
	Tags       []string  `json:"tags"`
	Origin     string    `json:"origin,omitempty"`
	InsertedAt time.Time `json:"inserted_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Clone returns a copy whose tag slice and byte payloads do not alias the
// receiver's
func (e Entry) Clone() Entry {
	c := e
	c.Tags = append([]string(nil), e.Tags...)
	switch p := e.Payload.(type) {
	case json.RawMessage:
		c.Payload = append(json.RawMessage(nil), p...)
	case []byte:
		c.Payload = append([]byte(nil), p...)
	}
	return c
}

// AuditKind is the lifecycle transition an audit event records
type AuditKind string

const (
	Ingested AuditKind = "ingested"
	Purged   AuditKind = "purged"
	Rejected AuditKind = "rejected"
)

// AuditEvent is an append-only record of a lifecycle transition
type AuditEvent struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Kind      AuditKind `json:"kind"`
	EntryID   string    `json:"entry_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}
