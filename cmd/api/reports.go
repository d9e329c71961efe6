package main

import (
	"net/http"
)

type ReportPayload struct {
	PlaceID string `json:"placeId"`
}

type ReportResponse struct {
	PlaceID string `json:"placeId"`
	Reports int    `json:"reports"`
}

// reportPlaceHandler godoc
//
//	@Summary		Report a place
//	@Description	Adds the caller's report. A user reports a place once.
//	@Tags			reports
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		ReportPayload					true	"Place to report"
//	@Success		200		{object}	Envelope{data=ReportResponse}
//	@Failure		400		{object}	ErrorResponse	"Invalid id or already reported (reason DuplicateReport)"
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/report [post]
func (app *application) reportPlaceHandler(w http.ResponseWriter, r *http.Request) {
	var payload ReportPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	count, err := app.service.ReportPlace(r.Context(), user.ID, payload.PlaceID)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, ReportResponse{PlaceID: payload.PlaceID, Reports: count}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// unreportPlaceHandler withdraws the caller's report. Withdrawing a report
// that does not exist is not an error.
//
//	@Summary		Withdraw a report
//	@Tags			reports
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		ReportPayload					true	"Reported place"
//	@Success		200		{object}	Envelope{data=ReportResponse}
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/report [delete]
func (app *application) unreportPlaceHandler(w http.ResponseWriter, r *http.Request) {
	var payload ReportPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	count, err := app.service.UnreportPlace(r.Context(), user.ID, payload.PlaceID)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, ReportResponse{PlaceID: payload.PlaceID, Reports: count}); err != nil {
		app.internalServerError(w, r, err)
	}
}
