package ledger

// LeaderboardRow is one aggregated entry of the swap leaderboard.
type LeaderboardRow struct {
	UserAddress string  `ch:"user_address" json:"user_address"`
	TotalVolume float64 `ch:"total_volume" json:"total_volume"`
	Date        int64   `ch:"date" json:"date"` // most recent swap, unix seconds
	Count       uint64  `ch:"n" json:"n"`
}

// FillProgress reports how far the valuation backfill has come,
// derived from store-side counts so it survives restarts.
type FillProgress struct {
	Done    uint64  `json:"done"`
	Total   uint64  `json:"total"`
	Stuck   uint64  `json:"stuck"` // permanently failed rows needing operator attention
	Percent float64 `json:"percent"`
}
