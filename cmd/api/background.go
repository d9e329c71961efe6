package main

import (
	"context"
	"net/http"
	"time"
)

// archiveSweepEvery archives over-reported places on every tick until ctx is
// cancelled.
func (app *application) archiveSweepEvery(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := app.service.ArchiveOverReportedPlaces(ctx)
				if err != nil {
					app.logger.Errorw("archive sweep failed", "error", err)
					continue
				}
				app.logger.Infow("archive sweep finished", "archived", n, "at", time.Now().Format(time.RFC1123))
			}
		}
	}()
}

// archiveSweepHandler godoc
//
//	@Summary		Archive over-reported places
//	@Description	Archives every active place with at least five reports.
//	@Tags			admin
//	@Produce		json
//	@Success		200	{object}	Envelope{data=map[string]int}
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		BasicAuth
//	@Router			/admin/archive-sweep [post]
func (app *application) archiveSweepHandler(w http.ResponseWriter, r *http.Request) {
	n, err := app.service.ArchiveOverReportedPlaces(r.Context())
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]int{"archived": n}); err != nil {
		app.internalServerError(w, r, err)
	}
}
