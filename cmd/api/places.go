package main

import (
	"net/http"

	"cozy/internal/cozy"
	"cozy/internal/params"

	"github.com/go-chi/chi/v5"
)

type CreatePlacePayload struct {
	Name     string    `json:"name" validate:"required,max=200"`
	Type     string    `json:"type" validate:"required,max=100"`
	Address  string    `json:"address" validate:"required,max=300"`
	City     string    `json:"city" validate:"required,max=100"`
	State    string    `json:"state" validate:"required,max=100"`
	Zipcode  string    `json:"zipcode" validate:"max=20"`
	Location []float64 `json:"location" validate:"required,len=2"`
}

type AddPhotoPayload struct {
	URL     string `json:"url" validate:"required,url,max=2048"`
	Caption string `json:"caption" validate:"max=500"`
}

// listPlacesHandler returns active places within 60 km of ?lat=&lng=, or all
// active places when neither is given.
//
//	@Summary		List places
//	@Description	Active places within 60 km of lat/lng, or every active place when both are omitted.
//	@Tags			places
//	@Produce		json
//	@Param			lat	query		number	false	"Latitude"
//	@Param			lng	query		number	false	"Longitude"
//	@Success		200	{object}	Envelope{data=[]places.Place}
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/places [get]
func (app *application) listPlacesHandler(w http.ResponseWriter, r *http.Request) {
	near, err := params.ParseLocation(r.URL.Query())
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	list, err := app.service.NearbyPlaces(r.Context(), near)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, list); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getPlaceHandler godoc
//
//	@Summary		Get a place
//	@Description	Returns the place with its photos and ratings.
//	@Tags			places
//	@Produce		json
//	@Param			id	path		string	true	"Place ID"
//	@Success		200	{object}	Envelope{data=cozy.PlaceDetail}
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/places/{id} [get]
func (app *application) getPlaceHandler(w http.ResponseWriter, r *http.Request) {
	place, err := app.service.GetPlace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, place); err != nil {
		app.internalServerError(w, r, err)
	}
}

// createPlaceHandler godoc
//
//	@Summary		Create a place
//	@Tags			places
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreatePlacePayload			true	"Place details"
//	@Success		201		{object}	Envelope{data=places.Place}
//	@Header			201		{string}	Location	"/api/places/{id}"
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/places [post]
func (app *application) createPlaceHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreatePlacePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	place, err := app.service.CreatePlace(r.Context(), cozy.PlaceInput{
		Name:     payload.Name,
		Type:     payload.Type,
		Address:  payload.Address,
		City:     payload.City,
		State:    payload.State,
		Zipcode:  payload.Zipcode,
		Location: payload.Location,
	})
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	app.logger.Infow("place created", "placeId", place.ID, "userId", getUserFromContext(r).ID)

	w.Header().Set("Location", "/api/places/"+place.ID)
	if err := app.jsonResponse(w, http.StatusCreated, place); err != nil {
		app.internalServerError(w, r, err)
	}
}

// addPlacePhotoHandler stores a reference to an already hosted image.
//
//	@Summary		Add a photo to a place
//	@Tags			places
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Place ID"
//	@Param			payload	body		AddPhotoPayload		true	"Photo URL and caption"
//	@Success		201		{object}	Envelope{data=places.Photo}
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Security		ApiKeyAuth
//	@Router			/places/{id}/photos [post]
func (app *application) addPlacePhotoHandler(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "id")

	var payload AddPhotoPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	photo, err := app.service.AddPhoto(r.Context(), user.ID, placeID, payload.URL, payload.Caption)
	if err != nil {
		app.serviceErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, photo); err != nil {
		app.internalServerError(w, r, err)
	}
}
