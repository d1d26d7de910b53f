package scanner

import (
	"context"
	"math/rand"

	"github.com/runeboard/runeboardx/pkg/db"
	"github.com/runeboard/runeboardx/pkg/midgard"
	"go.uber.org/zap"
)

// RecoveryStrategy picks the offset a stalled scan jumps to.
type RecoveryStrategy int

const (
	// RecoverNearFrontier rewinds to just before the local row count, so
	// the scan resumes where the local copy actually ends. Deterministic.
	RecoverNearFrontier RecoveryStrategy = iota
	// RecoverRandom jumps to a uniformly random offset within the remote
	// total, useful when gaps are scattered through history.
	RecoverRandom
)

// SyncPolicy is the storage-backed scan delegate. It persists every page
// through SaveUnique and watches for overscan: a stretch of pages that
// produce no new rows means the crawl is re-reading history it already
// holds, usually after the remote renumbered its pagination. One recovery
// jump is attempted per run; if the scan stalls again it stops.
type SyncPolicy struct {
	store     db.TxStore
	network   string
	batchSize int
	logger    *zap.Logger

	// FullScan disables overscan detection so a run walks the entire
	// remote history regardless of how much is already local.
	fullScan      bool
	overscanPages int
	strategy      RecoveryStrategy

	lastPageCounter int
	jumpAttempted   bool
	remoteTotal     int
}

// PolicyOpts configures a SyncPolicy.
type PolicyOpts struct {
	Store         db.TxStore
	Network       string
	BatchSize     int
	Logger        *zap.Logger
	FullScan      bool
	OverscanPages int // default 10
	Strategy      RecoveryStrategy
}

func NewSyncPolicy(o PolicyOpts) *SyncPolicy {
	if o.OverscanPages <= 0 {
		o.OverscanPages = 10
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncPolicy{
		store:         o.Store,
		network:       o.Network,
		batchSize:     o.BatchSize,
		logger:        logger,
		fullScan:      o.FullScan,
		overscanPages: o.OverscanPages,
		strategy:      o.Strategy,
	}
}

// OnScanStart resets the per-run overscan state.
func (p *SyncPolicy) OnScanStart(ctx context.Context) error {
	p.lastPageCounter = 0
	p.jumpAttempted = false
	return nil
}

// OnPage saves the page's transactions and decides whether the run keeps
// going, jumps, or stops.
func (p *SyncPolicy) OnPage(ctx context.Context, page midgard.ParseResult) (Decision, error) {
	if page.TotalCount > 0 {
		p.remoteTotal = page.TotalCount
	}

	saved := 0
	for _, tx := range page.Txs {
		isNew, err := p.store.SaveUnique(ctx, tx)
		if err != nil {
			return Stop(), err
		}
		if isNew {
			saved++
		}
	}
	p.logger.Debug("Page stored",
		zap.Int("parsed", page.TxCount()),
		zap.Int("new", saved))

	if p.fullScan {
		return Continue(), nil
	}

	if saved > 0 {
		p.lastPageCounter = 0
		return Continue(), nil
	}

	p.lastPageCounter++
	if p.lastPageCounter <= p.overscanPages {
		return Continue(), nil
	}

	if p.jumpAttempted {
		p.logger.Info("Scan stalled again after recovery jump, stopping")
		return Stop(), nil
	}
	p.jumpAttempted = true
	p.lastPageCounter = 0

	target, err := p.recoveryOffset(ctx)
	if err != nil {
		return Stop(), err
	}
	p.logger.Info("Overscan detected, jumping",
		zap.Int("pages", p.overscanPages),
		zap.Int("target", target))
	return RewindTo(target), nil
}

func (p *SyncPolicy) recoveryOffset(ctx context.Context) (int, error) {
	if p.strategy == RecoverRandom && p.remoteTotal > 0 {
		return rand.Intn(p.remoteTotal), nil
	}
	local, err := p.store.TxCount(ctx, p.network)
	if err != nil {
		return 0, err
	}
	target := int(local) - p.batchSize
	if target < 0 {
		target = 0
	}
	return target, nil
}

// Progress reports how much of the remote history is held locally, against
// the latest remote-reported total.
func (p *SyncPolicy) Progress(ctx context.Context) (local uint64, remote int, percent float64, err error) {
	local, err = p.store.TxCount(ctx, p.network)
	if err != nil {
		return 0, 0, 0, err
	}
	remote = p.remoteTotal
	if remote > 0 {
		percent = float64(local) / float64(remote) * 100
	}
	return local, remote, percent, nil
}
