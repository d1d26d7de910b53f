package scanner

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/runeboard/runeboardx/pkg/midgard"
	"go.uber.org/zap"
)

// Decision is a delegate's verdict after a page has been handled.
type Decision struct {
	kind   int
	offset int
}

const (
	decisionContinue = iota
	decisionStop
	decisionRewind
)

// Continue advances to the next page.
func Continue() Decision { return Decision{kind: decisionContinue} }

// Stop ends the current run.
func Stop() Decision { return Decision{kind: decisionStop} }

// RewindTo moves the crawl to the given offset before the next fetch.
func RewindTo(offset int) Decision { return Decision{kind: decisionRewind, offset: offset} }

// Delegate observes and steers a scan run.
type Delegate interface {
	// OnScanStart is called once before the first page of a run.
	OnScanStart(ctx context.Context) error
	// OnPage receives each parsed page and decides how the run proceeds.
	OnPage(ctx context.Context, page midgard.ParseResult) (Decision, error)
}

// Source produces parsed pages of the remote feed.
type Source interface {
	FetchPage(ctx context.Context, offset, limit int) (midgard.ParseResult, error)
}

// Scanner walks the remote feed page by page from its current offset,
// handing each parsed page to the delegate. The offset survives across
// runs, so a cron-triggered run resumes where the previous one stopped
// (or where the delegate rewound it).
type Scanner struct {
	source   Source
	delegate Delegate
	logger   *zap.Logger

	offset     atomic.Int64
	batchSize  int
	maxRetries int
	retryDelay time.Duration
	graceDelay time.Duration

	working atomic.Bool
}

// Opts configures a Scanner.
type Opts struct {
	Source     Source
	Delegate   Delegate
	Logger     *zap.Logger
	Offset     int           // starting offset, usually the local row count
	BatchSize  int           // page size, default 50
	MaxRetries int           // fetch retry budget per run, default 5
	RetryDelay time.Duration // fixed sleep between fetch retries, default 15s
	GraceDelay time.Duration // sleep before re-checking an empty page, default 10s
}

func New(o Opts) *Scanner {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 5
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 15 * time.Second
	}
	if o.GraceDelay <= 0 {
		o.GraceDelay = 10 * time.Second
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scanner{
		source:     o.Source,
		delegate:   o.Delegate,
		logger:     logger,
		batchSize:  o.BatchSize,
		maxRetries: o.MaxRetries,
		retryDelay: o.RetryDelay,
		graceDelay: o.GraceDelay,
	}
	s.offset.Store(int64(o.Offset))
	return s
}

// Offset returns the current crawl offset.
func (s *Scanner) Offset() int {
	return int(s.offset.Load())
}

// SetOffset moves the crawl position. Takes effect at the top of the next
// iteration.
func (s *Scanner) SetOffset(offset int) {
	if offset < 0 {
		offset = 0
	}
	s.offset.Store(int64(offset))
}

// Run crawls the feed until the delegate stops it, the feed runs dry, the
// retry budget is exhausted, or ctx is cancelled. Concurrent runs are
// rejected: a second Run while one is in flight logs a warning and returns
// immediately.
func (s *Scanner) Run(ctx context.Context) error {
	if !s.working.CompareAndSwap(false, true) {
		s.logger.Warn("Scan already in progress, skipping run")
		return nil
	}
	defer s.working.Store(false)

	if err := s.delegate.OnScanStart(ctx); err != nil {
		return err
	}

	s.logger.Info("Scan started",
		zap.Int("offset", s.Offset()),
		zap.Int("batchSize", s.batchSize))

	retries := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		offset := s.Offset()
		page, err := s.source.FetchPage(ctx, offset, s.batchSize)
		if err != nil {
			retries++
			if retries > s.maxRetries {
				s.logger.Error("Fetch retry budget exhausted, stopping scan",
					zap.Int("offset", offset),
					zap.Int("retries", retries-1),
					zap.Error(err))
				return err
			}
			s.logger.Warn("Page fetch failed, retrying",
				zap.Int("offset", offset),
				zap.Int("attempt", retries),
				zap.Error(err))
			if err := s.sleep(ctx, s.retryDelay); err != nil {
				return err
			}
			continue
		}

		if page.RawCount == 0 {
			// The feed occasionally serves a stray empty page mid-history.
			// Re-check once after a grace period before declaring the
			// crawl caught up.
			s.logger.Info("Empty page, re-checking before stopping",
				zap.Int("offset", offset))
			if err := s.sleep(ctx, s.graceDelay); err != nil {
				return err
			}
			page, err = s.source.FetchPage(ctx, offset, s.batchSize)
			if err != nil || page.RawCount == 0 {
				s.logger.Info("Feed exhausted, scan complete",
					zap.Int("offset", offset))
				return nil
			}
		}
		retries = 0

		decision, err := s.delegate.OnPage(ctx, page)
		if err != nil {
			return err
		}
		switch decision.kind {
		case decisionStop:
			s.logger.Info("Delegate stopped scan", zap.Int("offset", offset))
			return nil
		case decisionRewind:
			s.logger.Info("Delegate rewound scan",
				zap.Int("from", offset),
				zap.Int("to", decision.offset))
			s.SetOffset(decision.offset)
		default:
			s.SetOffset(offset + s.batchSize)
		}
	}
}

func (s *Scanner) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
