package db

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
)

// FindPools returns the cached pool snapshots at a given height, or an empty
// slice when that height has not been fetched yet.
func (db *DB) FindPools(ctx context.Context, network string, height uint64) ([]*ledger.PoolSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT network, block_height, pool, balance_asset, balance_rune, pool_units, status
		FROM "%s"."%s"
		WHERE network = ? AND block_height = ?
	`, db.Name, ledger.PoolSnapshotsTableName)

	rows, err := db.Query(ctx, query, network, height)
	if err != nil {
		return nil, fmt.Errorf("find pools at %d: %w", height, err)
	}
	defer rows.Close()

	var pools []*ledger.PoolSnapshot
	for rows.Next() {
		var p ledger.PoolSnapshot
		if err := rows.Scan(&p.Network, &p.BlockHeight, &p.Pool,
			&p.BalanceAsset, &p.BalanceRune, &p.PoolUnits, &p.Status); err != nil {
			return nil, fmt.Errorf("scan pool snapshot: %w", err)
		}
		pools = append(pools, &p)
	}
	return pools, rows.Err()
}

// InsertPools persists freshly fetched reserves. Duplicate writes from racing
// workers carry identical values and collapse at merge time.
func (db *DB) InsertPools(ctx context.Context, pools []*ledger.PoolSnapshot) error {
	if len(pools) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO "%s"."%s" (
		network, block_height, pool, balance_asset, balance_rune, pool_units, status
	) VALUES`, db.Name, ledger.PoolSnapshotsTableName)

	batch, err := db.PrepareBatch(ctx, query)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, p := range pools {
		err = batch.Append(
			p.Network,
			p.BlockHeight,
			p.Pool,
			p.BalanceAsset,
			p.BalanceRune,
			p.PoolUnits,
			p.Status,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}
