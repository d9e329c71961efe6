package main

import (
	"errors"
	"net/http"

	"cozy/internal/cozy"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, err.Error())
}

func (app *application) unavailableResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("store unavailable", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusServiceUnavailable, "the service is temporarily unavailable")
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)

	writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter string) {
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path)

	w.Header().Set("Retry-After", retryAfter)

	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after: "+retryAfter)
}

// serviceErrorResponse maps an error from the core onto its HTTP response.
func (app *application) serviceErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var e *cozy.Error
	if !errors.As(err, &e) {
		app.internalServerError(w, r, err)
		return
	}

	switch e.Kind {
	case cozy.KindInvalidArgument:
		writeJSONError(w, http.StatusBadRequest, e.Message)
	case cozy.KindConflict:
		writeJSONReasonError(w, http.StatusBadRequest, e.Message, e.Reason)
	case cozy.KindNotFound:
		writeJSONError(w, http.StatusNotFound, e.Message)
	case cozy.KindUnauthorized:
		app.unauthorizedErrorResponse(w, r, e)
	case cozy.KindUnavailable:
		app.unavailableResponse(w, r, e)
	default:
		app.internalServerError(w, r, e)
	}
}
