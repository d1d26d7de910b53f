package controller

import (
	"net/http"
	"strconv"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/runeboard/runeboardx/pkg/db"
	"go.uber.org/zap"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func int64Param(r *http.Request, name string, def int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}

// leaderboardQuery builds the bounded store query from request parameters.
func (c *Controller) leaderboardQuery(r *http.Request) db.LeaderboardQuery {
	q := db.LeaderboardQuery{
		Network:  r.URL.Query().Get("network"),
		FromDate: int64Param(r, "from", 0),
		ToDate:   int64Param(r, "to", 0),
		Offset:   intParam(r, "offset", 0),
		Limit:    intParam(r, "limit", defaultLimit),
		Currency: r.URL.Query().Get("currency"),
	}
	if q.Network == "" {
		q.Network = c.App.Network
	}
	if q.Currency == "" {
		q.Currency = "rune"
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q
}

// HandleLeaderboard serves the swap volume ranking.
func (c *Controller) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := c.leaderboardQuery(r)
	if q.Currency != "rune" && q.Currency != "usd" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "currency must be rune or usd"})
		return
	}

	rows, err := c.App.DB.Leaderboard(r.Context(), q)
	if err != nil {
		c.App.Logger.Error("Leaderboard query failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "query failed"})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"network":  q.Network,
		"currency": q.Currency,
		"offset":   q.Offset,
		"limit":    q.Limit,
		"rows":     rows,
	})
}

// HandleStats serves aggregate volume and participation counters for the
// same filter set as the leaderboard.
func (c *Controller) HandleStats(w http.ResponseWriter, r *http.Request) {
	q := c.leaderboardQuery(r)

	total, err := c.App.DB.TotalVolume(r.Context(), q)
	if err != nil {
		c.App.Logger.Error("Total volume query failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "query failed"})
		return
	}
	participants, err := c.App.DB.Participants(r.Context(), q)
	if err != nil {
		c.App.Logger.Error("Participants query failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "query failed"})
		return
	}
	txs, err := c.App.DB.TxCount(r.Context(), q.Network)
	if err != nil {
		c.App.Logger.Error("Tx count query failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "query failed"})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"network":      q.Network,
		"currency":     q.Currency,
		"total_volume": total,
		"participants": participants,
		"transactions": txs,
	})
}
