package main

import (
	"context"
	"net/http"
	"time"
)

// healthCheckHandler godoc
//
//	@Summary		Health check
//	@Description	Always 200. storeStatus reports whether the store answers a ping.
//	@Tags			ops
//	@Produce		json
//	@Success		200	{object}	Envelope{data=map[string]string}
//	@Router			/health [get]
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	storeStatus := "ok"
	if err := app.store.Ping(ctx); err != nil {
		app.logger.Warnw("health check: store ping failed", "error", err)
		storeStatus = "unreachable"
	}

	data := map[string]string{
		"status":      "ok",
		"env":         app.config.env,
		"version":     version,
		"store":       app.store.Driver,
		"storeStatus": storeStatus,
	}

	if err := app.jsonResponse(w, http.StatusOK, data); err != nil {
		app.internalServerError(w, r, err)
	}
}
