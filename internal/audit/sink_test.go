package audit

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/tagvault/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func event(kind domain.AuditKind, id string, offset time.Duration) domain.AuditEvent {
	return domain.AuditEvent{Timestamp: t0.Add(offset), Kind: kind, EntryID: id}
}

func testSink(t *testing.T, s Sink) {
	t.Helper()

	got, err := s.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, s.Record(event(domain.Ingested, "a", 0)))
	require.NoError(t, s.Record(event(domain.Ingested, "b", time.Second)))
	require.NoError(t, s.Record(event(domain.Purged, "a", 2*time.Second)))

	got, err = s.Recent(2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].EntryID)
	assert.Equal(t, domain.Ingested, got[0].Kind)
	assert.Equal(t, "a", got[1].EntryID)
	assert.Equal(t, domain.Purged, got[1].Kind)
	assert.Less(t, got[0].Seq, got[1].Seq)
	assert.True(t, got[1].Timestamp.Equal(t0.Add(2*time.Second)))

	got, err = s.Recent(100)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = s.Recent(0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLog(t *testing.T) {
	l := NewLog()
	testSink(t, l)
	assert.Equal(t, 3, l.Len())
}

func TestJournal(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer j.Close()

	testSink(t, j)

	events, err := j.ForEntry("a")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.Ingested, events[0].Kind)
	assert.Equal(t, domain.Purged, events[1].Kind)
}

func TestJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	j, err := OpenJournal(path)
	require.NoError(t, err)
	require.NoError(t, j.Record(event(domain.Rejected, "", 0)))
	require.NoError(t, j.Close())

	j, err = OpenJournal(path)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.Recent(5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Rejected, got[0].Kind)
}

func TestJournalCloseDrainsQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	j, err := OpenJournal(path)
	require.NoError(t, err)

	const n = 3000
	for i := 0; i < n; i++ {
		require.NoError(t, j.Record(event(domain.Ingested, fmt.Sprintf("e%d", i), time.Duration(i))))
	}
	require.NoError(t, j.Close())
	assert.ErrorIs(t, j.Record(event(domain.Purged, "late", 0)), ErrJournalClosed)
	require.NoError(t, j.Close())

	j, err = OpenJournal(path)
	require.NoError(t, err)
	defer j.Close()

	got, err := j.Recent(n + 10)
	require.NoError(t, err)
	require.Len(t, got, n)
	for i, e := range got {
		assert.Equal(t, fmt.Sprintf("e%d", i), e.EntryID)
	}
}

func TestJournalKeepsRecordOrderAcrossWriters(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer j.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("w%d", w)
			for i := 0; i < 50; i++ {
				assert.NoError(t, j.Record(domain.AuditEvent{Kind: domain.Ingested, EntryID: id, Detail: fmt.Sprint(i)}))
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < 8; w++ {
		events, err := j.ForEntry(fmt.Sprintf("w%d", w))
		require.NoError(t, err)
		require.Len(t, events, 50)
		for i, e := range events {
			assert.Equal(t, fmt.Sprint(i), e.Detail)
		}
	}
}

type failingSink struct{ Log }

func (f *failingSink) Record(domain.AuditEvent) error { return errors.New("disk full") }

func TestMulti(t *testing.T) {
	first, second := NewLog(), NewLog()
	m := Multi{first, second}

	require.NoError(t, m.Record(event(domain.Ingested, "a", 0)))
	assert.Equal(t, 1, first.Len())
	assert.Equal(t, 1, second.Len())

	got, err := m.Recent(1)
	require.NoError(t, err)
	require.Len(t, got, 1)

	bad := Multi{&failingSink{}, first}
	err = bad.Record(event(domain.Purged, "a", time.Second))
	require.Error(t, err)
	assert.Equal(t, 2, first.Len(), "later sinks still receive the event")

	got, err = Multi{}.Recent(5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
