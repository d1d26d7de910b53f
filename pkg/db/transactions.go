package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
)

const txColumns = `hash, network, type, block_height, date, user_address,
	asset1, amount1, usd_price1, asset2, amount2, usd_price2,
	rune_volume, usd_volume, fee, slip, liq_units, process_flags, updated_at`

func (db *DB) insertTxs(ctx context.Context, txs []*ledger.Tx) error {
	if len(txs) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (%s) VALUES`,
		db.Name, ledger.TxsTableName, txColumns)

	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	now := time.Now().UTC()
	for _, tx := range txs {
		err = batch.Append(
			tx.Hash,
			tx.Network,
			tx.Type,
			tx.BlockHeight,
			tx.Date,
			tx.UserAddress,
			tx.Asset1,
			tx.Amount1,
			tx.UsdPrice1,
			tx.Asset2,
			tx.Amount2,
			tx.UsdPrice2,
			tx.RuneVolume,
			tx.UsdVolume,
			tx.Fee,
			tx.Slip,
			tx.LiqUnits,
			tx.ProcessFlags,
			now,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

// SaveUnique inserts the transaction unless its hash already exists for the
// network. The existence probe plus the ReplacingMergeTree key make ingestion
// idempotent: a racing duplicate insert collapses to one row at merge time.
func (db *DB) SaveUnique(ctx context.Context, tx *ledger.Tx) (bool, error) {
	var count uint64
	query := fmt.Sprintf(
		`SELECT count() FROM "%s"."%s" WHERE network = ? AND hash = ?`,
		db.Name, ledger.TxsTableName)
	if err := db.QueryRow(ctx, query, tx.Network, tx.Hash).Scan(&count); err != nil {
		return false, fmt.Errorf("probe tx %s: %w", tx.Hash, err)
	}
	if count > 0 {
		return false, nil
	}

	if err := db.insertTxs(ctx, []*ledger.Tx{tx}); err != nil {
		return false, fmt.Errorf("insert tx %s: %w", tx.Hash, err)
	}
	return true, nil
}

// UpdateTx re-inserts the row with a newer version timestamp; FINAL reads
// resolve to it.
func (db *DB) UpdateTx(ctx context.Context, tx *ledger.Tx) error {
	if err := db.insertTxs(ctx, []*ledger.Tx{tx}); err != nil {
		return fmt.Errorf("update tx %s: %w", tx.Hash, err)
	}
	return nil
}

// SelectRandomUnfilled claims one unenriched, not permanently failed
// transaction. Randomized selection keeps concurrent backfill workers from
// racing on the same row. Returns nil when nothing is claimable.
func (db *DB) SelectRandomUnfilled(ctx context.Context, network string, maxFails int) (*ledger.Tx, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM "%s"."%s" FINAL
		WHERE network = ? AND process_flags <= 0 AND process_flags > ?
		ORDER BY rand()
		LIMIT 1
	`, txColumns, db.Name, ledger.TxsTableName)

	rows, err := db.Query(ctx, query, network, int32(-maxFails))
	if err != nil {
		return nil, fmt.Errorf("select unfilled: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, nil
	}

	tx, err := scanTx(rows)
	if err != nil {
		return nil, fmt.Errorf("scan unfilled tx: %w", err)
	}
	return tx, nil
}

func scanTx(rows driver.Rows) (*ledger.Tx, error) {
	var tx ledger.Tx
	var updatedAt time.Time
	err := rows.Scan(
		&tx.Hash,
		&tx.Network,
		&tx.Type,
		&tx.BlockHeight,
		&tx.Date,
		&tx.UserAddress,
		&tx.Asset1,
		&tx.Amount1,
		&tx.UsdPrice1,
		&tx.Asset2,
		&tx.Amount2,
		&tx.UsdPrice2,
		&tx.RuneVolume,
		&tx.UsdVolume,
		&tx.Fee,
		&tx.Slip,
		&tx.LiqUnits,
		&tx.ProcessFlags,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// TxCount returns the number of ingested transactions for a network.
func (db *DB) TxCount(ctx context.Context, network string) (uint64, error) {
	var count uint64
	query := fmt.Sprintf(
		`SELECT count() FROM "%s"."%s" FINAL WHERE network = ?`,
		db.Name, ledger.TxsTableName)
	if err := db.QueryRow(ctx, query, network).Scan(&count); err != nil {
		return 0, fmt.Errorf("count txs: %w", err)
	}
	return count, nil
}

// UnfilledCount returns the number of rows still eligible for enrichment.
func (db *DB) UnfilledCount(ctx context.Context, network string, maxFails int) (uint64, error) {
	var count uint64
	query := fmt.Sprintf(
		`SELECT count() FROM "%s"."%s" FINAL WHERE network = ? AND process_flags <= 0 AND process_flags > ?`,
		db.Name, ledger.TxsTableName)
	if err := db.QueryRow(ctx, query, network, int32(-maxFails)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unfilled txs: %w", err)
	}
	return count, nil
}

// StuckCount returns the rows excluded by the max-fail threshold. Surfaced in
// progress reporting for operator attention.
func (db *DB) StuckCount(ctx context.Context, network string, maxFails int) (uint64, error) {
	var count uint64
	query := fmt.Sprintf(
		`SELECT count() FROM "%s"."%s" FINAL WHERE network = ? AND process_flags <= ?`,
		db.Name, ledger.TxsTableName)
	if err := db.QueryRow(ctx, query, network, int32(-maxFails)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count stuck txs: %w", err)
	}
	return count, nil
}

// ClearVolumes resets enrichment state for a whole network. Administrative;
// the backfill engine re-derives every valuation afterwards.
func (db *DB) ClearVolumes(ctx context.Context, network string) error {
	query := fmt.Sprintf(`
		ALTER TABLE "%s"."%s"
		UPDATE rune_volume = 0, usd_volume = 0, usd_price1 = 0, usd_price2 = 0, process_flags = 0
		WHERE network = ?
	`, db.Name, ledger.TxsTableName)
	if err := db.Exec(ctx, query, network); err != nil {
		return fmt.Errorf("clear volumes for %s: %w", network, err)
	}
	return nil
}
