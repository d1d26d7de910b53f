package db

import (
	"context"
	"fmt"

	"github.com/runeboard/runeboardx/pkg/db/clickhouse"
	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	"github.com/runeboard/runeboardx/pkg/utils"
	"go.uber.org/zap"
)

// DB is the ledger database: canonical transactions plus the historical
// pool-snapshot cache backing the valuation backfill. It implements Store.
type DB struct {
	clickhouse.Client
	Name string
}

// New connects to ClickHouse, creates the ledger database and its tables.
func New(ctx context.Context, logger *zap.Logger) (*DB, error) {
	dbName := clickhouse.SanitizeName(utils.Env("LEDGER_DB", "runeboard"))

	client, err := clickhouse.New(ctx, logger.With(
		zap.String("db", dbName),
		zap.String("component", "ledger_db"),
	), dbName)
	if err != nil {
		return nil, err
	}

	ledgerDb := &DB{
		Client: client,
		Name:   dbName,
	}

	if err := ledgerDb.InitializeDB(ctx); err != nil {
		return nil, err
	}

	return ledgerDb, nil
}

// DatabaseName returns the underlying database name.
func (db *DB) DatabaseName() string { return db.Name }

// InitializeDB creates the database and all tables if they do not exist.
func (db *DB) InitializeDB(ctx context.Context) error {
	if err := db.Exec(ctx, fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS "%s"`, db.Name)); err != nil {
		return fmt.Errorf("create database %s: %w", db.Name, err)
	}

	if err := db.initTxs(ctx); err != nil {
		return err
	}
	if err := db.initPoolSnapshots(ctx); err != nil {
		return err
	}

	db.Logger.Info("Ledger database initialized", zap.String("db", db.Name))
	return nil
}

// initTxs creates the canonical transactions table.
// ReplacingMergeTree keyed by (network, hash) with updated_at as the version
// column: enrichment re-inserts the row and FINAL reads resolve the winner,
// which also makes duplicate ingests harmless.
func (db *DB) initTxs(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			hash String,
			network LowCardinality(String),
			type LowCardinality(String),
			block_height UInt64,
			date Int64,
			user_address String,
			asset1 String,
			amount1 Float64,
			usd_price1 Float64,
			asset2 String,
			amount2 Float64,
			usd_price2 Float64,
			rune_volume Float64,
			usd_volume Float64,
			fee Float64,
			slip Float64,
			liq_units Float64,
			process_flags Int32,
			updated_at DateTime64(6)
		) ENGINE = ReplacingMergeTree(updated_at)
		ORDER BY (network, hash)
	`, db.Name, ledger.TxsTableName)

	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", ledger.TxsTableName, err)
	}
	return nil
}

// initPoolSnapshots creates the historical pool reserves table.
// Snapshots are immutable facts; the ReplacingMergeTree only collapses the
// benign duplicate writes produced by racing backfill workers.
func (db *DB) initPoolSnapshots(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s"."%s" (
			network LowCardinality(String),
			block_height UInt64,
			pool LowCardinality(String),
			balance_asset UInt64,
			balance_rune UInt64,
			pool_units UInt64,
			status LowCardinality(String)
		) ENGINE = ReplacingMergeTree
		ORDER BY (network, block_height, pool)
	`, db.Name, ledger.PoolSnapshotsTableName)

	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", ledger.PoolSnapshotsTableName, err)
	}
	return nil
}
