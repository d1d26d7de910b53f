package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
	"go.uber.org/zap"
)

// HandleClearVolumes resets every valuation for a network so the backfill
// engine recomputes them from scratch. Destructive, admin only.
func (c *Controller) HandleClearVolumes(w http.ResponseWriter, r *http.Request) {
	network := r.URL.Query().Get("network")
	if network == "" {
		network = c.App.Network
	}

	if err := c.App.DB.ClearVolumes(r.Context(), network); err != nil {
		c.App.Logger.Error("Clear volumes failed",
			zap.String("network", network), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "clear failed"})
		return
	}

	c.App.Logger.Info("Volumes cleared", zap.String("network", network))
	_ = json.NewEncoder(w).Encode(map[string]string{"ok": "1", "network": network})
}
