package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cozy/internal/auth"
	"cozy/internal/cozy"
	"cozy/internal/domain/storage"
	"cozy/internal/metrics"
	"cozy/internal/ratelimiter"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestApplication(t *testing.T, rl ratelimiter.Config) *application {
	t.Helper()

	store := storage.NewMemoryContainer()
	logger := zaptest.NewLogger(t).Sugar()

	if rl.RequestsPerTimeFrame == 0 {
		rl.RequestsPerTimeFrame = 100
	}
	if rl.TimeFrame == 0 {
		rl.TimeFrame = 5 * time.Second
	}
	limiter := ratelimiter.NewTokenBucketLimiter(rl.RequestsPerTimeFrame, rl.TimeFrame)
	t.Cleanup(limiter.Stop)

	return &application{
		config: config{
			env: "test",
			auth: authConfig{
				basic: basicConfig{user: "admin", pass: "letmein"},
			},
			cors:        corsConfig{allowedOrigin: "http://localhost:3000"},
			rateLimiter: rl,
		},
		store:         store,
		service:       cozy.NewService(store, logger, cozy.WithRetryPolicy(0, time.Millisecond)),
		logger:        logger,
		authenticator: auth.NewJWTAuthenticator("access-secret", "refresh-secret", "cozy", "cozy"),
		rateLimiter:   limiter,
	}
}

type request struct {
	method string
	path   string
	body   any
	token  string
	basic  bool
}

func do(t *testing.T, mux http.Handler, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if req.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(req.body))
	}

	r := httptest.NewRequest(req.method, req.path, &body)
	r.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.basic {
		r.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("admin:letmein")))
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, r)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope), rr.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

// signup registers a user and returns their access token.
func signup(t *testing.T, mux http.Handler, username string) string {
	t.Helper()

	rr := do(t, mux, request{method: http.MethodPost, path: "/api/users", body: map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, mux, request{method: http.MethodPost, path: "/api/login", body: map[string]string{
		"username": username,
		"password": "correct-horse",
	}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var tokens TokenResponse
	decodeData(t, rr, &tokens)
	require.NotEmpty(t, tokens.AccessToken)
	return tokens.AccessToken
}

func createPlace(t *testing.T, mux http.Handler, token string, lng, lat float64) string {
	t.Helper()

	rr := do(t, mux, request{method: http.MethodPost, path: "/api/places", token: token, body: map[string]any{
		"name":     "The Reading Room",
		"type":     "cafe",
		"address":  "1 Larimer Sq",
		"city":     "Denver",
		"state":    "CO",
		"location": []float64{lng, lat},
	}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var place struct {
		ID string `json:"id"`
	}
	decodeData(t, rr, &place)
	assert.Equal(t, "/api/places/"+place.ID, rr.Header().Get("Location"))
	return place.ID
}

func scores(v float64) map[string]any {
	return map[string]any{
		"warmLighting":    v,
		"relaxedMusic":    v,
		"calmEnvironment": v,
		"softFabrics":     v,
		"comfySeating":    v,
		"hotFoodDrink":    v,
	}
}

func TestHealthCheck(t *testing.T) {
	mux := newTestApplication(t, ratelimiter.Config{}).mount()

	rr := do(t, mux, request{method: http.MethodGet, path: "/api/health"})
	require.Equal(t, http.StatusOK, rr.Code)

	var data map[string]string
	decodeData(t, rr, &data)
	assert.Equal(t, "ok", data["status"])
	assert.Equal(t, storage.DriverMemory, data["store"])
}

func TestUnknownRoute(t *testing.T) {
	mux := newTestApplication(t, ratelimiter.Config{}).mount()

	rr := do(t, mux, request{method: http.MethodGet, path: "/api/nope"})
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Not Found", decodeError(t, rr).Message)
}

func TestAuthFlow(t *testing.T) {
	mux := newTestApplication(t, ratelimiter.Config{}).mount()

	rr := do(t, mux, request{method: http.MethodPost, path: "/api/users", body: map[string]string{
		"username": "cozycat",
		"email":    "cat@example.com",
		"password": "correct-horse",
	}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "password")

	t.Run("duplicate username", func(t *testing.T) {
		rr := do(t, mux, request{method: http.MethodPost, path: "/api/users", body: map[string]string{
			"username": "cozycat",
			"email":    "other@example.com",
			"password": "correct-horse",
		}})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, cozy.ReasonValidationError, decodeError(t, rr).Reason)
	})

	t.Run("invalid payload", func(t *testing.T) {
		rr := do(t, mux, request{method: http.MethodPost, path: "/api/users", body: map[string]string{
			"username": "x",
			"email":    "not-an-email",
			"password": "short",
		}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("wrong password", func(t *testing.T) {
		rr := do(t, mux, request{method: http.MethodPost, path: "/api/login", body: map[string]string{
			"username": "cozycat",
			"password": "wrong-horse",
		}})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("refresh", func(t *testing.T) {
		rr := do(t, mux, request{method: http.MethodPost, path: "/api/login", body: map[string]string{
			"username": "cozycat",
			"password": "correct-horse",
		}})
		require.Equal(t, http.StatusOK, rr.Code)
		var tokens TokenResponse
		decodeData(t, rr, &tokens)

		rr = do(t, mux, request{method: http.MethodPost, path: "/api/refresh", body: map[string]string{
			"refreshToken": tokens.RefreshToken,
		}})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		rr = do(t, mux, request{method: http.MethodPost, path: "/api/refresh", body: map[string]string{
			"refreshToken": tokens.AccessToken,
		}})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRatingsRequireToken(t *testing.T) {
	mux := newTestApplication(t, ratelimiter.Config{}).mount()

	rr := do(t, mux, request{method: http.MethodGet, path: "/api/ratings"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, mux, request{method: http.MethodGet, path: "/api/ratings", token: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRatingLifecycle(t *testing.T) {
	mux := newTestApplication(t, ratelimiter.Config{}).mount()
	alice := signup(t, mux, "alice")
	bob := signup(t, mux, "bob")
	placeID := createPlace(t, mux, alice, -104.99, 39.74)

	rr := do(t, mux, request{method: http.MethodPost, path: "/api/ratings", token: alice, body: map[string]any{
		"placeId": placeID,
		"rating":  scores(4),
	}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "/api/ratings/"+placeID, rr.Header().Get("Location"))

	var created struct {
		ID      string `json:"id"`
		PlaceID string `json:"placeId"`
	}
	decodeData(t, rr, &created)
	assert.Equal(t, placeID, created.PlaceID)

	t.Run("second rating is rejected", func(t *testing.T) {
		rr := do(t, mux, request{method: http.MethodPost, path: "/api/ratings", token: alice, body: map[string]any{
			"placeId": placeID,
			"rating":  scores(9),
		}})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, cozy.ReasonValidationError, decodeError(t, rr).Reason)
	})

	t.Run("missing rating", func(t *testing.T) {
		rr := do(t, mux, request{method: http.MethodPost, path: "/api/ratings", token: bob, body: map[string]any{
			"placeId": placeID,
		}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("malformed place id", func(t *testing.T) {
		rr := do(t, mux, request{method: http.MethodPost, path: "/api/ratings", token: bob, body: map[string]any{
			"placeId": "123",
			"rating":  scores(5),
		}})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "The `placeId` is not valid", decodeError(t, rr).Message)
	})

	t.Run("unknown place", func(t *testing.T) {
		rr := do(t, mux, request{method: http.MethodPost, path: "/api/ratings", token: bob, body: map[string]any{
			"placeId": "64b7f0c2a1b2c3d4e5f60718",
			"rating":  scores(5),
		}})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("get own and unrated", func(t *testing.T) {
		rr := do(t, mux, request{method: http.MethodGet, path: "/api/ratings/" + placeID, token: alice})
		require.Equal(t, http.StatusOK, rr.Code)

		rr = do(t, mux, request{method: http.MethodGet, path: "/api/ratings/" + placeID, token: bob})
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Empty(t, rr.Body.String())
	})

	t.Run("update", func(t *testing.T) {
		partial := scores(8)
		delete(partial, "hotFoodDrink")
		rr := do(t, mux, request{method: http.MethodPut, path: "/api/ratings/" + created.ID, token: alice, body: map[string]any{
			"rating": partial,
		}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = do(t, mux, request{method: http.MethodPut, path: "/api/ratings/" + created.ID, token: bob, body: map[string]any{
			"rating": scores(8),
		}})
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = do(t, mux, request{method: http.MethodPut, path: "/api/ratings/" + created.ID, token: alice, body: map[string]any{
			"placeId": "123",
			"rating":  scores(8),
		}})
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "The `placeId` is not valid", decodeError(t, rr).Message)

		rr = do(t, mux, request{method: http.MethodPut, path: "/api/ratings/" + created.ID, token: alice, body: map[string]any{
			"placeId": "64b7f0c2a1b2c3d4e5f60718",
			"rating":  scores(8),
		}})
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = do(t, mux, request{method: http.MethodPut, path: "/api/ratings/" + created.ID, token: alice, body: map[string]any{
			"placeId": placeID,
			"rating":  scores(8),
		}})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		var updated struct {
			PlaceID string `json:"placeId"`
			Rating  struct {
				WarmLighting float64 `json:"warmLighting"`
			} `json:"rating"`
		}
		decodeData(t, rr, &updated)
		assert.Equal(t, placeID, updated.PlaceID)
		assert.Equal(t, 8.0, updated.Rating.WarmLighting)

		rr = do(t, mux, request{method: http.MethodPut, path: "/api/ratings/" + created.ID, token: alice, body: map[string]any{
			"rating": scores(8),
		}})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	})

	t.Run("place reflects ratings", func(t *testing.T) {
		rr := do(t, mux, request{method: http.MethodPost, path: "/api/ratings", token: bob, body: map[string]any{
			"placeId": placeID,
			"rating":  scores(2),
		}})
		require.Equal(t, http.StatusCreated, rr.Code)

		rr = do(t, mux, request{method: http.MethodGet, path: "/api/places/" + placeID})
		require.Equal(t, http.StatusOK, rr.Code)

		var place struct {
			Cozyness float64 `json:"cozyness"`
			Ratings  []any   `json:"ratings"`
			Photos   []any   `json:"photos"`
		}
		decodeData(t, rr, &place)
		assert.Equal(t, 5.0, place.Cozyness)
		assert.Len(t, place.Ratings, 2)
		assert.NotNil(t, place.Photos)
	})

	t.Run("list own ratings", func(t *testing.T) {
		rr := do(t, mux, request{method: http.MethodGet, path: "/api/ratings?placeId=" + placeID, token: alice})
		require.Equal(t, http.StatusOK, rr.Code)
		var list []map[string]any
		decodeData(t, rr, &list)
		assert.Len(t, list, 1)

		rr = do(t, mux, request{method: http.MethodGet, path: "/api/ratings?placeId=bad", token: alice})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rr := do(t, mux, request{method: http.MethodDelete, path: "/api/ratings/" + placeID, token: alice})
		require.Equal(t, http.StatusNoContent, rr.Code)

		rr = do(t, mux, request{method: http.MethodDelete, path: "/api/ratings/" + placeID, token: alice})
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = do(t, mux, request{method: http.MethodDelete, path: "/api/ratings/zzz", token: alice})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestListPlaces(t *testing.T) {
	mux := newTestApplication(t, ratelimiter.Config{}).mount()
	token := signup(t, mux, "carol")

	near := createPlace(t, mux, token, -104.99, 39.74)
	far := createPlace(t, mux, token, -122.42, 37.77)

	ids := func(rr *httptest.ResponseRecorder) []string {
		var list []struct {
			ID string `json:"id"`
		}
		decodeData(t, rr, &list)
		out := []string{}
		for _, p := range list {
			out = append(out, p.ID)
		}
		return out
	}

	rr := do(t, mux, request{method: http.MethodGet, path: "/api/places?lat=39.74&lng=-104.99"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{near}, ids(rr))

	rr = do(t, mux, request{method: http.MethodGet, path: "/api/places"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{near, far}, ids(rr))

	rr = do(t, mux, request{method: http.MethodGet, path: "/api/places?lat=39.74"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, request{method: http.MethodGet, path: "/api/places?lat=abc&lng=-104.99"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, request{method: http.MethodGet, path: "/api/places/bad"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "The `id` is not valid", decodeError(t, rr).Message)
}

func TestAddPhoto(t *testing.T) {
	mux := newTestApplication(t, ratelimiter.Config{}).mount()
	token := signup(t, mux, "dave")
	placeID := createPlace(t, mux, token, -104.99, 39.74)

	rr := do(t, mux, request{method: http.MethodPost, path: "/api/places/" + placeID + "/photos", token: token, body: map[string]string{
		"url":     "https://img.example.com/armchair.jpg",
		"caption": "the armchair",
	}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, mux, request{method: http.MethodPost, path: "/api/places/" + placeID + "/photos", token: token, body: map[string]string{
		"url": "not a url",
	}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, mux, request{method: http.MethodGet, path: "/api/places/" + placeID})
	require.Equal(t, http.StatusOK, rr.Code)
	var place struct {
		Photos []struct {
			URL string `json:"url"`
		} `json:"photos"`
	}
	decodeData(t, rr, &place)
	require.Len(t, place.Photos, 1)
	assert.Equal(t, "https://img.example.com/armchair.jpg", place.Photos[0].URL)
}

func TestReportsAndArchiveSweep(t *testing.T) {
	mux := newTestApplication(t, ratelimiter.Config{}).mount()
	owner := signup(t, mux, "erin")
	placeID := createPlace(t, mux, owner, -104.99, 39.74)

	report := func(token string, method string) *httptest.ResponseRecorder {
		return do(t, mux, request{method: method, path: "/api/report", token: token, body: map[string]string{"placeId": placeID}})
	}

	rr := report(owner, http.MethodPost)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp ReportResponse
	decodeData(t, rr, &resp)
	assert.Equal(t, ReportResponse{PlaceID: placeID, Reports: 1}, resp)

	rr = report(owner, http.MethodPost)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, cozy.ReasonDuplicateReport, decodeError(t, rr).Reason)

	rr = report(owner, http.MethodDelete)
	require.Equal(t, http.StatusOK, rr.Code)
	decodeData(t, rr, &resp)
	assert.Equal(t, 0, resp.Reports)

	rr = report(owner, http.MethodDelete)
	assert.Equal(t, http.StatusOK, rr.Code)

	for _, name := range []string{"user1", "user2", "user3", "user4", "user5"} {
		rr := report(signup(t, mux, name), http.MethodPost)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr = do(t, mux, request{method: http.MethodPost, path: "/api/admin/archive-sweep"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, mux, request{method: http.MethodPost, path: "/api/admin/archive-sweep", basic: true})
	require.Equal(t, http.StatusOK, rr.Code)
	var swept map[string]int
	decodeData(t, rr, &swept)
	assert.Equal(t, 1, swept["archived"])

	rr = do(t, mux, request{method: http.MethodGet, path: "/api/places"})
	require.Equal(t, http.StatusOK, rr.Code)
	var list []any
	decodeData(t, rr, &list)
	assert.Empty(t, list)
}

func TestMetricsEndpoint(t *testing.T) {
	mux := newTestApplication(t, ratelimiter.Config{}).mount()

	do(t, mux, request{method: http.MethodGet, path: "/api/health"})

	rr := do(t, mux, request{method: http.MethodGet, path: "/metrics"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, mux, request{method: http.MethodGet, path: "/metrics", basic: true})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "api_requests_total")

	rr = do(t, mux, request{method: http.MethodGet, path: "/debug/vars", basic: true})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSwaggerDocs(t *testing.T) {
	mux := newTestApplication(t, ratelimiter.Config{}).mount()

	rr := do(t, mux, request{method: http.MethodGet, path: "/api/swagger/doc.json"})
	require.Equal(t, http.StatusOK, rr.Code)

	var doc struct {
		BasePath string                     `json:"basePath"`
		Paths    map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, "/api", doc.BasePath)
	for _, p := range []string{"/ratings", "/ratings/{id}", "/places", "/places/{id}", "/report", "/login"} {
		assert.Contains(t, doc.Paths, p)
	}
	assert.Contains(t, string(doc.Paths["/ratings/{id}"]), "main.UpdateRatingPayload")
}

func TestRateLimiter(t *testing.T) {
	mux := newTestApplication(t, ratelimiter.Config{
		RequestsPerTimeFrame: 2,
		TimeFrame:            time.Minute,
		Enabled:              true,
	}).mount()

	for i := 0; i < 2; i++ {
		rr := do(t, mux, request{method: http.MethodGet, path: "/api/health"})
		require.Equal(t, http.StatusOK, rr.Code)
	}

	hits := testutil.ToFloat64(metrics.APIRateLimitHits.WithLabelValues(http.MethodGet))

	rr := do(t, mux, request{method: http.MethodGet, path: "/api/places/64b7f0c2a1b2c3d4e5f60718"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, hits+1, testutil.ToFloat64(metrics.APIRateLimitHits.WithLabelValues(http.MethodGet)))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))

	// rejections on different ids share one series
	series := testutil.CollectAndCount(metrics.APIRateLimitHits)
	rr = do(t, mux, request{method: http.MethodGet, path: "/api/places/64b7f0c2a1b2c3d4e5f60719"})
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, series, testutil.CollectAndCount(metrics.APIRateLimitHits))
	assert.Equal(t, hits+2, testutil.ToFloat64(metrics.APIRateLimitHits.WithLabelValues(http.MethodGet)))
}
