package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/tagvault/internal/audit"
	"github.com/pbaille/tagvault/internal/clock"
	"github.com/pbaille/tagvault/internal/domain"
	"github.com/pbaille/tagvault/internal/store"
)

var t0 = time.Date(2026, 9, 9, 9, 0, 0, 0, time.UTC)

func setup(opts ...Option) (*Pipeline, *store.Store, *audit.Log) {
	clk := clock.NewFake(t0)
	sink := audit.NewLog()
	st := store.New(store.WithClock(clk), store.WithSink(sink))
	return New(st, sink, append([]Option{WithClock(clk)}, opts...)...), st, sink
}

func TestSubmit(t *testing.T) {
	p, st, sink := setup()

	e, err := p.Submit(context.Background(), "telemetry beacon", "agent-7")
	require.NoError(t, err)
	assert.Equal(t, []string{"telemetry"}, e.Tags)
	assert.Equal(t, 1, st.Len())
	assert.Equal(t, 1, sink.Len())
}

func TestSubmitRejectsInvalidPayload(t *testing.T) {
	p, st, sink := setup()

	_, err := p.Submit(context.Background(), func() {}, "ui")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrInvalidPayload))
	assert.Equal(t, 0, st.Len())

	events, err := sink.Recent(5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.Rejected, events[0].Kind)
	assert.Empty(t, events[0].EntryID)
	assert.Contains(t, events[0].Detail, `origin="ui"`)
	assert.Equal(t, t0, events[0].Timestamp)

	// the pipeline keeps accepting after a rejection
	_, err = p.Submit(context.Background(), "hello", "ui")
	require.NoError(t, err)
}

func TestSubmitEnforcesSizeLimit(t *testing.T) {
	p, st, sink := setup(WithMaxPayloadBytes(8))

	_, err := p.Submit(context.Background(), strings.Repeat("x", 9), "")
	require.True(t, errors.Is(err, store.ErrInvalidPayload))
	assert.Equal(t, 0, st.Len())
	assert.Equal(t, 1, sink.Len())

	_, err = p.Submit(context.Background(), "12345678", "")
	require.NoError(t, err)
}

func TestSubmitHonorsCancelledContext(t *testing.T) {
	p, st, _ := setup()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Submit(ctx, "hello", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, st.Len())
}

type stubFetcher struct {
	text string
	err  error
}

func (s stubFetcher) Fetch(context.Context, string) (string, error) {
	return s.text, s.err
}

func TestSubmitURL(t *testing.T) {
	p, _, _ := setup(WithFetcher(stubFetcher{text: "rootkit analysis"}))

	e, err := p.SubmitURL(context.Background(), "https://example.com/post", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"backdoor"}, e.Tags)
	assert.Equal(t, "https://example.com/post", e.Origin)

	e, err = p.SubmitURL(context.Background(), "https://example.com/post", "crawler")
	require.NoError(t, err)
	assert.Equal(t, "crawler", e.Origin)
}

func TestSubmitURLErrors(t *testing.T) {
	p, _, _ := setup()
	_, err := p.SubmitURL(context.Background(), "https://example.com", "")
	require.Error(t, err)

	p, st, _ := setup(WithFetcher(stubFetcher{err: errors.New("boom")}))
	_, err = p.SubmitURL(context.Background(), "https://example.com", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 0, st.Len())
}
