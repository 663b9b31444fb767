// Package store holds tagged ephemeral entries in memory until their
// retention expires.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pbaille/tagvault/internal/audit"
	"github.com/pbaille/tagvault/internal/classifier"
	"github.com/pbaille/tagvault/internal/clock"
	"github.com/pbaille/tagvault/internal/domain"
	"github.com/pbaille/tagvault/internal/retention"
)

// ErrInvalidPayload is returned by Insert when the payload cannot be stored.
var ErrInvalidPayload = errors.New("invalid payload")

// Store is a process-local map of entries guarded by a single RWMutex.
// Insert, Delete and Sweep take the exclusive lock; Get, List and Len share it.
// Audit events are recorded while the exclusive lock is held, so events for a
// given id always reach the sink as Ingested before Purged.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*record
	seq     uint64

	classifier classifier.Classifier
	policy     *retention.Policy
	sink       audit.Sink
	clock      clock.Clock
	logger     *zap.Logger
	newID      func() string
}

type record struct {
	entry domain.Entry
	ttl   time.Duration
	seq   uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClassifier sets the classifier. Defaults to classifier.Default().
func WithClassifier(c classifier.Classifier) Option {
	return func(s *Store) { s.classifier = c }
}

// WithPolicy sets the retention policy. Defaults to retention.Default().
func WithPolicy(p *retention.Policy) Option {
	return func(s *Store) { s.policy = p }
}

// WithSink sets the audit sink. Defaults to an in-memory audit.Log.
func WithSink(sink audit.Sink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithClock sets the time source used for insertion timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithIDGenerator overrides uuid-based ids.
func WithIDGenerator(f func() string) Option {
	return func(s *Store) { s.newID = f }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries:    make(map[string]*record),
		classifier: classifier.Default(),
		policy:     retention.Default(),
		clock:      clock.Real(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sink == nil {
		s.sink = audit.NewLog()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Sink returns the audit sink the store records into.
func (s *Store) Sink() audit.Sink {
	return s.sink
}

// Policy returns the retention policy.
func (s *Store) Policy() *retention.Policy {
	return s.policy
}

// Insert classifies payload, stores it under a fresh id and records an
// Ingested event. A payload that cannot be JSON encoded is rejected with
// ErrInvalidPayload and leaves no trace in the store or the audit sink.
func (s *Store) Insert(payload any, origin string) (domain.Entry, error) {
	stored, text, err := snapshot(payload)
	if err != nil {
		return domain.Entry{}, err
	}

	tags := normalizeTags(s.classifier.Classify(text))
	ttl := s.policy.EffectiveTTL(tags)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	id := s.newID()
	for _, taken := s.entries[id]; taken; _, taken = s.entries[id] {
		id = s.newID()
	}
	s.seq++
	rec := &record{
		entry: domain.Entry{
			ID:         id,
			Payload:    stored,
			Tags:       tags,
			Origin:     origin,
			InsertedAt: now,
			ExpiresAt:  now.Add(ttl),
		},
		ttl: ttl,
		seq: s.seq,
	}
	s.entries[id] = rec

	s.record(domain.AuditEvent{
		Timestamp: now,
		Kind:      domain.Ingested,
		EntryID:   id,
		Detail:    fmt.Sprintf("tags=%v origin=%q ttl=%s", tags, origin, ttl),
	})
	s.logger.Debug("entry ingested",
		zap.String("id", id),
		zap.Strings("tags", tags),
		zap.Duration("ttl", ttl))

	return rec.entry.Clone(), nil
}

// Get returns the entry with id, or false if it is absent or already purged.
func (s *Store) Get(id string) (domain.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.entries[id]
	if !ok {
		return domain.Entry{}, false
	}
	return rec.entry.Clone(), true
}

// Delete removes the entry with id. It reports whether an entry was removed;
// a Purged event is recorded only in that case.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	s.record(domain.AuditEvent{
		Timestamp: s.clock.Now(),
		Kind:      domain.Purged,
		EntryID:   id,
		Detail:    "deleted",
	})
	s.logger.Debug("entry deleted", zap.String("id", id))
	return true
}

// Sweep purges every entry whose age at now has reached its effective TTL
// and returns the purged ids in insertion order.
func (s *Store) Sweep(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []*record
	for _, rec := range s.entries {
		if now.Sub(rec.entry.InsertedAt) >= rec.ttl {
			expired = append(expired, rec)
		}
	}
	if len(expired) == 0 {
		return nil
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].seq < expired[j].seq })

	ids := make([]string, len(expired))
	for i, rec := range expired {
		delete(s.entries, rec.entry.ID)
		ids[i] = rec.entry.ID
		s.record(domain.AuditEvent{
			Timestamp: now,
			Kind:      domain.Purged,
			EntryID:   rec.entry.ID,
			Detail:    fmt.Sprintf("expired ttl=%s", rec.ttl),
		})
	}
	s.logger.Debug("sweep purged entries", zap.Int("count", len(ids)))
	return ids
}

// SweepNow sweeps as of the store clock's current time.
func (s *Store) SweepNow() []string {
	return s.Sweep(s.clock.Now())
}

// List returns a snapshot of all entries in insertion order.
func (s *Store) List() []domain.Entry {
	s.mu.RLock()
	recs := make([]*record, 0, len(s.entries))
	for _, rec := range s.entries {
		recs = append(recs, rec)
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	entries := make([]domain.Entry, len(recs))
	for i, rec := range recs {
		entries[i] = rec.entry.Clone()
	}
	return entries
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// record must be called with s.mu held for writing.
func (s *Store) record(event domain.AuditEvent) {
	if err := s.sink.Record(event); err != nil {
		s.logger.Error("audit record failed",
			zap.String("kind", string(event.Kind)),
			zap.String("id", event.EntryID),
			zap.Error(err))
	}
}

// ContentOf returns the text a payload is classified by: the value itself
// for strings and byte slices, its JSON encoding otherwise.
func ContentOf(payload any) (string, error) {
	switch p := payload.(type) {
	case nil:
		return "", nil
	case string:
		return p, nil
	case []byte:
		return string(p), nil
	case json.RawMessage:
		if !json.Valid(p) {
			return "", fmt.Errorf("%w: malformed json", ErrInvalidPayload)
		}
		return string(p), nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return string(b), nil
}

// snapshot returns a private copy of payload for the store to keep, together
// with its classification text. Structured payloads are kept as their JSON
// encoding so later changes to the caller's value cannot reach the entry.
func snapshot(payload any) (any, string, error) {
	text, err := ContentOf(payload)
	if err != nil {
		return nil, "", err
	}
	switch p := payload.(type) {
	case nil:
		return nil, text, nil
	case string:
		return p, text, nil
	case []byte:
		return append([]byte(nil), p...), text, nil
	}
	return json.RawMessage(text), text, nil
}

// normalizeTags returns a sorted, de-duplicated copy of tags, or the general
// tag when tags is empty.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{domain.GeneralTag}
	}
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	out := sorted[:0]
	for _, t := range sorted {
		if t == "" || (len(out) > 0 && out[len(out)-1] == t) {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return []string{domain.GeneralTag}
	}
	return out
}
