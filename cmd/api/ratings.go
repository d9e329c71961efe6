package main

import (
	"net/http"

	"cozy/internal/domain/ratings"

	"github.com/go-chi/chi/v5"
)

type CreateRatingPayload struct {
	PlaceID string           `json:"placeId"`
	Rating  *ratings.Payload `json:"rating"`
}

type UpdateRatingPayload struct {
	PlaceID string           `json:"placeId"`
	Rating  *ratings.Payload `json:"rating"`
}

// listRatingsHandler returns the caller's ratings, newest update first.
// Optional query parameters: placeId, searchTerm.
//
//	@Summary		List own ratings
//	@Description	Returns the caller's ratings, newest update first.
//	@Tags			ratings
//	@Produce		json
//	@Param			placeId		query		string	false	"Only ratings of this place"
//	@Param			searchTerm	query		string	false	"Case-insensitive comment search"
//	@Success		200			{object}	Envelope{data=[]ratings.Rating}
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/ratings [get]
func (app *application) listRatingsHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	q := r.URL.Query()

	filter := ratings.Filter{
		PlaceID:    q.Get("placeId"),
		SearchTerm: q.Get("searchTerm"),
	}

	list, err := app.service.ListRatings(r.Context(), user.ID, filter)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, list); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getRatingHandler returns the caller's rating of a place, or 204 when the
// place has not been rated by them yet.
//
//	@Summary		Get own rating of a place
//	@Description	Returns 204 when the caller has not rated the place yet.
//	@Tags			ratings
//	@Produce		json
//	@Param			id	path		string	true	"Place ID"
//	@Success		200	{object}	Envelope{data=ratings.Rating}
//	@Success		204	"Not rated yet"
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/ratings/{id} [get]
func (app *application) getRatingHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	placeID := chi.URLParam(r, "id")

	rating, err := app.service.GetRating(r.Context(), user.ID, placeID)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}
	if rating == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, rating); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createRatingHandler godoc
//
//	@Summary		Rate a place
//	@Description	Stores the caller's rating and refreshes the place averages. A user rates a place once.
//	@Tags			ratings
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateRatingPayload				true	"Place and scores"
//	@Success		201		{object}	Envelope{data=ratings.Rating}
//	@Header			201		{string}	Location	"/api/ratings/{placeId}"
//	@Failure		400		{object}	ErrorResponse	"Invalid input or already rated (reason ValidationError)"
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/ratings [post]
func (app *application) createRatingHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateRatingPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	rating, err := app.service.CreateRating(r.Context(), user.ID, payload.PlaceID, payload.Rating)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/ratings/"+rating.PlaceID)
	if err := app.jsonResponse(w, http.StatusCreated, rating); err != nil {
		app.internalServerError(w, r, err)
	}
}

// updateRatingHandler replaces all six sub-scores and the comment of one of
// the caller's ratings.
//
//	@Summary		Update a rating
//	@Description	Replaces all six sub-scores and the comment. placeId is optional and must match the rating when sent.
//	@Tags			ratings
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Rating ID"
//	@Param			payload	body		UpdateRatingPayload			true	"Scores"
//	@Success		200		{object}	Envelope{data=ratings.Rating}
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/ratings/{id} [put]
func (app *application) updateRatingHandler(w http.ResponseWriter, r *http.Request) {
	ratingID := chi.URLParam(r, "id")

	var payload UpdateRatingPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	rating, err := app.service.UpdateRating(r.Context(), user.ID, ratingID, payload.PlaceID, payload.Rating)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, rating); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteRatingHandler godoc
//
//	@Summary		Delete own rating of a place
//	@Tags			ratings
//	@Param			id	path	string	true	"Place ID"
//	@Success		204	"Deleted"
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/ratings/{id} [delete]
func (app *application) deleteRatingHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	placeID := chi.URLParam(r, "id")

	if err := app.service.DeleteRating(r.Context(), user.ID, placeID); err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
