package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"github.com/runeboard/runeboardx/pkg/db/models/ledger"
	"go.uber.org/zap"
)

// HandleProgress reports valuation backfill progress derived from store
// counts.
func (c *Controller) HandleProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	network := r.URL.Query().Get("network")
	if network == "" {
		network = c.App.Network
	}

	total, err := c.App.DB.TxCount(ctx, network)
	if err != nil {
		c.queryFailed(w, "Tx count query failed", err)
		return
	}
	unfilled, err := c.App.DB.UnfilledCount(ctx, network, c.App.MaxFails)
	if err != nil {
		c.queryFailed(w, "Unfilled count query failed", err)
		return
	}
	stuck, err := c.App.DB.StuckCount(ctx, network, c.App.MaxFails)
	if err != nil {
		c.queryFailed(w, "Stuck count query failed", err)
		return
	}

	progress := ledger.FillProgress{Total: total, Stuck: stuck}
	if done := total - unfilled - stuck; done <= total {
		progress.Done = done
	}
	if total > 0 {
		progress.Percent = float64(progress.Done) / float64(total) * 100
	}
	_ = json.NewEncoder(w).Encode(progress)
}

func (c *Controller) queryFailed(w http.ResponseWriter, msg string, err error) {
	c.App.Logger.Error(msg, zap.Error(err))
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "query failed"})
}
