package filler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/runeboard/runeboardx/pkg/db"
	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	"github.com/runeboard/runeboardx/pkg/pricing"
	"github.com/runeboard/runeboardx/pkg/redis"
	"go.uber.org/zap"
)

// PoolSource resolves the pool snapshot set for a block.
type PoolSource interface {
	PoolsAt(ctx context.Context, height uint64) ([]*ledger.PoolSnapshot, error)
}

// Notifier publishes progress updates to live subscribers. Satisfied by
// redis.Client.
type Notifier interface {
	Publish(ctx context.Context, channel string, message interface{})
}

// Filler is the valuation backfill engine. A pool of long-lived workers
// repeatedly claims a random unenriched transaction, prices it against the
// pool reserves at its block, and persists the result. Transactions whose
// pools cannot price them accumulate a fail count until they are excluded
// as permanently stuck.
type Filler struct {
	store    db.TxStore
	source   PoolSource
	resolver *pricing.Resolver
	notifier Notifier
	logger   *zap.Logger

	network       string
	workers       int
	maxFails      int
	idleDelay     time.Duration
	progressEvery int64
}

// Opts configures a Filler.
type Opts struct {
	Store         db.TxStore
	Source        PoolSource
	Resolver      *pricing.Resolver
	Notifier      Notifier // optional
	Logger        *zap.Logger
	Network       string
	Workers       int           // default 4
	MaxFails      int           // permanent-failure threshold, default 5
	IdleDelay     time.Duration // sleep when nothing is claimable, default 30s
	ProgressEvery int64         // log progress every N fills, default 100
}

func New(o Opts) *Filler {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxFails <= 0 {
		o.MaxFails = 5
	}
	if o.IdleDelay <= 0 {
		o.IdleDelay = 30 * time.Second
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = 100
	}
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filler{
		store:         o.Store,
		source:        o.Source,
		resolver:      o.Resolver,
		notifier:      o.Notifier,
		logger:        logger,
		network:       o.Network,
		workers:       o.Workers,
		maxFails:      o.MaxFails,
		idleDelay:     o.IdleDelay,
		progressEvery: o.ProgressEvery,
	}
}

// Run starts the worker pool and blocks until ctx is cancelled and all
// workers have drained.
func (f *Filler) Run(ctx context.Context) {
	pool := pond.NewPool(f.workers)
	for i := 0; i < f.workers; i++ {
		pool.Submit(func() {
			f.workerLoop(ctx, i)
		})
	}
	<-ctx.Done()
	pool.StopAndWait()
}

func (f *Filler) workerLoop(ctx context.Context, worker int) {
	logger := f.logger.With(zap.Int("worker", worker))
	var processed int64
	start := time.Now()

	for {
		if ctx.Err() != nil {
			return
		}

		filled, err := f.fillOne(ctx)
		if err != nil {
			logger.Warn("Fill attempt failed", zap.Error(err))
			f.sleep(ctx, f.idleDelay)
			continue
		}
		if !filled {
			logger.Debug("Nothing to fill, idling")
			f.sleep(ctx, f.idleDelay)
			continue
		}

		processed++
		if processed%f.progressEvery == 0 {
			f.reportProgress(ctx, logger, processed, start)
		}
	}
}

// fillOne claims and enriches a single transaction. Returns false when no
// transaction was claimable.
func (f *Filler) fillOne(ctx context.Context) (bool, error) {
	tx, err := f.store.SelectRandomUnfilled(ctx, f.network, f.maxFails)
	if err != nil {
		return false, err
	}
	if tx == nil {
		return false, nil
	}

	if err := f.enrich(ctx, tx); err != nil {
		tx.IncreaseFailCount()
		f.logger.Debug("Valuation failed",
			zap.String("tx", tx.String()),
			zap.Int("fails", tx.FailCount()),
			zap.Error(err))
		if uerr := f.store.UpdateTx(ctx, tx); uerr != nil {
			return false, uerr
		}
		return true, nil
	}

	if err := f.store.UpdateTx(ctx, tx); err != nil {
		return false, err
	}
	return true, nil
}

func (f *Filler) enrich(ctx context.Context, tx *ledger.Tx) error {
	pools, err := f.source.PoolsAt(ctx, tx.BlockHeight)
	if err != nil {
		return err
	}
	usdPerRune, err := f.resolver.UsdPerRuneAt(ctx, pools, tx.Date)
	if err != nil && !errors.Is(err, pricing.ErrUnpriceable) {
		return err
	}
	if errors.Is(err, pricing.ErrUnpriceable) {
		// Without a USD rate the native-unit volume is still derivable;
		// a zero rate leaves the USD columns empty rather than wrong.
		usdPerRune = 0
	}
	return tx.FillVolumes(ledger.PoolMap(pools), usdPerRune)
}

// Progress reports enrichment completion for the network from store counts.
func (f *Filler) Progress(ctx context.Context) (ledger.FillProgress, error) {
	total, err := f.store.TxCount(ctx, f.network)
	if err != nil {
		return ledger.FillProgress{}, err
	}
	unfilled, err := f.store.UnfilledCount(ctx, f.network, f.maxFails)
	if err != nil {
		return ledger.FillProgress{}, err
	}
	stuck, err := f.store.StuckCount(ctx, f.network, f.maxFails)
	if err != nil {
		return ledger.FillProgress{}, err
	}

	progress := ledger.FillProgress{
		Total: total,
		Stuck: stuck,
	}
	if done := total - unfilled - stuck; done <= total {
		progress.Done = done
	}
	if total > 0 {
		progress.Percent = float64(progress.Done) / float64(total) * 100
	}
	return progress, nil
}

func (f *Filler) reportProgress(ctx context.Context, logger *zap.Logger, processed int64, start time.Time) {
	progress, err := f.Progress(ctx)
	if err != nil {
		logger.Warn("Progress lookup failed", zap.Error(err))
		return
	}

	elapsed := time.Since(start)
	rate := float64(processed) / elapsed.Seconds()
	remaining := progress.Total - progress.Done - progress.Stuck
	var eta time.Duration
	if rate > 0 {
		eta = time.Duration(float64(remaining)/rate) * time.Second
	}

	logger.Info("Fill progress",
		zap.Uint64("done", progress.Done),
		zap.Uint64("total", progress.Total),
		zap.Uint64("stuck", progress.Stuck),
		zap.Float64("percent", progress.Percent),
		zap.Duration("eta", eta))

	if f.notifier != nil {
		if payload, err := json.Marshal(progress); err == nil {
			f.notifier.Publish(ctx, redis.ChannelFillProgress, payload)
		}
	}
}

func (f *Filler) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
