// Package ingest is the entry point ingestion sources use to feed the store.
// Rejected payloads are logged, audited and skipped; they never stop the
// pipeline.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pbaille/tagvault/internal/audit"
	"github.com/pbaille/tagvault/internal/clock"
	"github.com/pbaille/tagvault/internal/domain"
	"github.com/pbaille/tagvault/internal/store"
)

// Inserter is the store capability the pipeline needs.
type Inserter interface {
	Insert(payload any, origin string) (domain.Entry, error)
}

// URLFetcher retrieves readable text from a URL.
type URLFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Pipeline validates payloads and hands them to the store.
type Pipeline struct {
	store    Inserter
	sink     audit.Sink
	fetcher  URLFetcher
	clock    clock.Clock
	logger   *zap.Logger
	maxBytes int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFetcher enables SubmitURL.
func WithFetcher(f URLFetcher) Option {
	return func(p *Pipeline) { p.fetcher = f }
}

// WithMaxPayloadBytes rejects payloads whose content exceeds n bytes. Zero disables the limit.
func WithMaxPayloadBytes(n int) Option {
	return func(p *Pipeline) { p.maxBytes = n }
}

// WithClock sets the timestamp source for Rejected events.
func WithClock(c clock.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a Pipeline feeding st and recording rejections into sink.
func New(st Inserter, sink audit.Sink, opts ...Option) *Pipeline {
	p := &Pipeline{store: st, sink: sink, clock: clock.Real()}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Submit inserts payload. An invalid or oversized payload is recorded as a
// Rejected audit event and returned as an error wrapping store.ErrInvalidPayload.
func (p *Pipeline) Submit(ctx context.Context, payload any, origin string) (domain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return domain.Entry{}, err
	}

	if p.maxBytes > 0 {
		content, err := store.ContentOf(payload)
		if err != nil {
			return domain.Entry{}, p.reject(origin, err)
		}
		if len(content) > p.maxBytes {
			return domain.Entry{}, p.reject(origin,
				fmt.Errorf("%w: %d bytes exceeds limit of %d", store.ErrInvalidPayload, len(content), p.maxBytes))
		}
	}

	entry, err := p.store.Insert(payload, origin)
	if err != nil {
		if errors.Is(err, store.ErrInvalidPayload) {
			return domain.Entry{}, p.reject(origin, err)
		}
		return domain.Entry{}, err
	}
	return entry, nil
}

// SubmitURL fetches the readable text at rawURL and submits it. The origin
// defaults to the URL itself.
func (p *Pipeline) SubmitURL(ctx context.Context, rawURL, origin string) (domain.Entry, error) {
	if p.fetcher == nil {
		return domain.Entry{}, errors.New("url ingestion is not configured")
	}
	text, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		p.logger.Warn("fetch failed", zap.String("url", rawURL), zap.Error(err))
		return domain.Entry{}, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if origin == "" {
		origin = rawURL
	}
	return p.Submit(ctx, text, origin)
}

func (p *Pipeline) reject(origin string, err error) error {
	p.logger.Warn("payload rejected", zap.String("origin", origin), zap.Error(err))
	if recErr := p.sink.Record(domain.AuditEvent{
		Timestamp: p.clock.Now(),
		Kind:      domain.Rejected,
		Detail:    fmt.Sprintf("origin=%q: %v", origin, err),
	}); recErr != nil {
		p.logger.Error("audit record failed", zap.Error(recErr))
	}
	return err
}
