// Package audit records the lifecycle of store entries.
//
// Sinks are append-only: there is no API to remove an event once recorded.
package audit

import (
	"errors"
	"sync"

	"github.com/pbaille/tagvault/internal/domain"
)

// Sink receives audit events.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Record appends an event. The sink assigns Seq.
	Record(event domain.AuditEvent) error
	// Recent returns up to n most recent events, oldest first.
	Recent(n int) ([]domain.AuditEvent, error)
}

var (
	_ Sink = (*Log)(nil)
	_ Sink = (*Journal)(nil)
	_ Sink = Multi(nil)
)

// Log is an in-memory Sink.
type Log struct {
	mu     sync.RWMutex
	events []domain.AuditEvent
}

// NewLog creates an empty Log
func NewLog() *Log {
	return &Log{}
}

func (l *Log) Record(event domain.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	event.Seq = int64(len(l.events)) + 1
	l.events = append(l.events, event)
	return nil
}

func (l *Log) Recent(n int) ([]domain.AuditEvent, error) {
	if n <= 0 {
		return nil, nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	start := len(l.events) - n
	if start < 0 {
		start = 0
	}
	return append([]domain.AuditEvent(nil), l.events[start:]...), nil
}

// Len returns the number of recorded events
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// Multi fans events out to several sinks. Recent is served by the first one.
type Multi []Sink

func (m Multi) Record(event domain.AuditEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Recent(n int) ([]domain.AuditEvent, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return m[0].Recent(n)
}
