package db

import (
	"context"
	"fmt"
	"math"

	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
)

// volumeColumn maps the requested currency to a column name. Never
// interpolate user input into SQL without going through this.
func volumeColumn(currency string) string {
	if currency == "usd" {
		return "usd_volume"
	}
	return "rune_volume"
}

func normalizeRange(q *LeaderboardQuery) {
	if q.ToDate <= 0 {
		q.ToDate = math.MaxInt64
	}
}

// Leaderboard aggregates swap volume per user address over a date range.
// Unenriched rows (process_flags <= 0) carry no volume yet and are excluded.
func (db *DB) Leaderboard(ctx context.Context, q LeaderboardQuery) ([]ledger.LeaderboardRow, error) {
	normalizeRange(&q)

	query := fmt.Sprintf(`
		SELECT user_address, sum(%s) AS total_volume, max(date) AS date, count() AS n
		FROM "%s"."%s" FINAL
		WHERE network = ? AND type = ? AND process_flags > 0
		  AND date >= ? AND date <= ?
		GROUP BY user_address
		ORDER BY total_volume DESC
		LIMIT ? OFFSET ?
	`, volumeColumn(q.Currency), db.Name, ledger.TxsTableName)

	rows, err := db.Query(ctx, query,
		q.Network, ledger.TypeSwap, q.FromDate, q.ToDate, q.Limit, q.Offset)
	if err != nil {
		return nil, fmt.Errorf("leaderboard query: %w", err)
	}
	defer rows.Close()

	out := make([]ledger.LeaderboardRow, 0, q.Limit)
	for rows.Next() {
		var r ledger.LeaderboardRow
		if err := rows.Scan(&r.UserAddress, &r.TotalVolume, &r.Date, &r.Count); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TotalVolume sums enriched swap volume over a date range.
func (db *DB) TotalVolume(ctx context.Context, q LeaderboardQuery) (float64, error) {
	normalizeRange(&q)

	query := fmt.Sprintf(`
		SELECT sum(%s) FROM "%s"."%s" FINAL
		WHERE network = ? AND type = ? AND process_flags > 0
		  AND date >= ? AND date <= ?
	`, volumeColumn(q.Currency), db.Name, ledger.TxsTableName)

	var total float64
	if err := db.QueryRow(ctx, query,
		q.Network, ledger.TypeSwap, q.FromDate, q.ToDate).Scan(&total); err != nil {
		return 0, fmt.Errorf("total volume query: %w", err)
	}
	return total, nil
}

// Participants counts distinct swappers over a date range.
func (db *DB) Participants(ctx context.Context, q LeaderboardQuery) (uint64, error) {
	normalizeRange(&q)

	query := fmt.Sprintf(`
		SELECT uniqExact(user_address) FROM "%s"."%s" FINAL
		WHERE network = ? AND type = ? AND date >= ? AND date <= ?
	`, db.Name, ledger.TxsTableName)

	var n uint64
	if err := db.QueryRow(ctx, query,
		q.Network, ledger.TypeSwap, q.FromDate, q.ToDate).Scan(&n); err != nil {
		return 0, fmt.Errorf("participants query: %w", err)
	}
	return n, nil
}
