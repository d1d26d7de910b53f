package query

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/runeboard/runeboardx/app/query/controller"
	"github.com/runeboard/runeboardx/app/query/types"
	"github.com/runeboard/runeboardx/pkg/utils"
)

// NewServer wires the controller's router into the app's http.Server.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3000")

	app.Server = &http.Server{
		Addr:              addr,
		Handler:           controller.WithCORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
