package audit

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pbaille/tagvault/internal/domain"
)

//go:embed schema.sql
var schema string

const (
	journalQueueSize = 8192
	journalBatchSize = 512
)

// ErrJournalClosed is returned by Record after Close
var ErrJournalClosed = errors.New("audit journal closed")

// Journal is a Sink persisted in SQLite.
//
// Record only enqueues; a single writer goroutine drains the queue in call
// order and commits each batch in one transaction, so callers holding locks
// never wait on disk. Recent and ForEntry flush the queue before reading.
type Journal struct {
	db     *sql.DB
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan journalOp
	done   chan struct{}
}

type journalOp struct {
	event   domain.AuditEvent
	flushed chan struct{} // set for flush markers, which carry no event
}

// JournalOption configures a Journal
type JournalOption func(*Journal)

// WithJournalLogger sets the logger write failures are reported to
func WithJournalLogger(l *zap.Logger) JournalOption {
	return func(j *Journal) { j.logger = l }
}

// OpenJournal opens (and if needed creates) the journal at dbPath
func OpenJournal(dbPath string, opts ...JournalOption) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	j := &Journal{
		db:    db,
		queue: make(chan journalOp, journalQueueSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = zap.NewNop()
	}
	go j.writeLoop()
	return j, nil
}

// Close writes every queued event and closes the database connection
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	<-j.done
	return j.db.Close()
}

// Record queues an event for the writer
func (j *Journal) Record(event domain.AuditEvent) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrJournalClosed
	}
	j.queue <- journalOp{event: event}
	return nil
}

// Flush blocks until every event recorded before the call is committed
func (j *Journal) Flush() {
	flushed := make(chan struct{})
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return
	}
	j.queue <- journalOp{flushed: flushed}
	j.mu.RUnlock()
	<-flushed
}

func (j *Journal) writeLoop() {
	defer close(j.done)

	batch := make([]journalOp, 0, journalBatchSize)
	for op := range j.queue {
		batch = append(batch[:0], op)
	drain:
		for len(batch) < journalBatchSize {
			select {
			case next, ok := <-j.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}

		if err := j.writeBatch(batch); err != nil {
			j.logger.Error("audit journal write failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		for _, op := range batch {
			if op.flushed != nil {
				close(op.flushed)
			}
		}
	}
}

func (j *Journal) writeBatch(batch []journalOp) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO audit_events (timestamp, kind, entry_id, detail) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, op := range batch {
		if op.flushed != nil {
			continue
		}
		e := op.event
		if _, err := stmt.Exec(e.Timestamp.UnixNano(), string(e.Kind), e.EntryID, e.Detail); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert audit event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Recent returns up to n most recent events, oldest first
func (j *Journal) Recent(n int) ([]domain.AuditEvent, error) {
	if n <= 0 {
		return nil, nil
	}
	j.Flush()
	rows, err := j.db.Query(
		"SELECT seq, timestamp, kind, entry_id, detail FROM audit_events ORDER BY seq DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	for i, k := 0, len(events)-1; i < k; i, k = i+1, k-1 {
		events[i], events[k] = events[k], events[i]
	}
	return events, nil
}

// ForEntry returns every event recorded for an entry, oldest first
func (j *Journal) ForEntry(entryID string) ([]domain.AuditEvent, error) {
	j.Flush()
	rows, err := j.db.Query(
		"SELECT seq, timestamp, kind, entry_id, detail FROM audit_events WHERE entry_id = ? ORDER BY seq",
		entryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list entry events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]domain.AuditEvent, error) {
	var events []domain.AuditEvent
	for rows.Next() {
		var (
			e    domain.AuditEvent
			ts   int64
			kind string
		)
		if err := rows.Scan(&e.Seq, &ts, &kind, &e.EntryID, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.Kind = domain.AuditKind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
