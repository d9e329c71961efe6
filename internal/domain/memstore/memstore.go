// Package memstore keeps places, ratings and users in process memory. It backs
// the "memory" store driver for local runs and the service and handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cozy/internal/domain/places"
	"cozy/internal/domain/ratings"
	"cozy/internal/domain/users"
	"cozy/internal/geo"
	"cozy/internal/params"
)

type placeRecord struct {
	place   places.Place
	seq     uint64
	reports []string
}

type ratingRecord struct {
	rating  ratings.Rating
	created uint64
	touched uint64
}

// DB is the shared state behind the three stores.
type DB struct {
	mu      sync.RWMutex
	seq     uint64
	places  map[string]*placeRecord
	photos  map[string][]places.Photo
	ratings map[string]*ratingRecord
	users   map[string]*users.User
	now     func() time.Time
}

func New() *DB {
	return &DB{
		places:  make(map[string]*placeRecord),
		photos:  make(map[string][]places.Photo),
		ratings: make(map[string]*ratingRecord),
		users:   make(map[string]*users.User),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (d *DB) Places() places.Store   { return &placeStore{d} }
func (d *DB) Ratings() ratings.Store { return &ratingStore{d} }
func (d *DB) Users() users.Store     { return &userStore{d} }

func (d *DB) next() uint64 {
	d.seq++
	return d.seq
}

type placeStore struct{ d *DB }

func (s *placeStore) Create(ctx context.Context, place *places.Place) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	if place.ID == "" {
		place.ID = params.NewID()
	}
	now := s.d.now()
	place.CreatedAt = now
	place.UpdatedAt = now
	place.Averages = places.Scores{}
	place.Cozyness = 0
	place.Archived = false
	place.UserReports = []string{}
	place.Location = append([]float64(nil), place.Location...)

	rec := &placeRecord{place: *place, seq: s.d.next()}
	rec.place.Photos = nil
	s.d.places[place.ID] = rec
	return nil
}

func (s *placeStore) snapshot(rec *placeRecord) places.Place {
	p := rec.place
	p.Location = append([]float64(nil), rec.place.Location...)
	p.UserReports = append([]string{}, rec.reports...)
	return p
}

func (s *placeStore) GetByID(ctx context.Context, id string) (*places.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	rec, ok := s.d.places[id]
	if !ok {
		return nil, places.ErrNotFound
	}
	p := s.snapshot(rec)
	return &p, nil
}

func (s *placeStore) List(ctx context.Context, filter places.ListFilter) ([]places.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	recs := make([]*placeRecord, 0, len(s.d.places))
	for _, rec := range s.d.places {
		if rec.place.Archived {
			continue
		}
		if filter.Near != nil && !geo.Within(*filter.Near, rec.place.Point(), filter.Radius) {
			continue
		}
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	out := make([]places.Place, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.snapshot(rec))
	}
	return out, nil
}

func (s *placeStore) UpdateAverages(ctx context.Context, id string, averages places.Scores, cozyness float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	rec, ok := s.d.places[id]
	if !ok {
		return places.ErrNotFound
	}
	rec.place.Averages = averages
	rec.place.Cozyness = cozyness
	rec.place.UpdatedAt = s.d.now()
	return nil
}

func (s *placeStore) AddPhoto(ctx context.Context, photo *places.Photo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	if _, ok := s.d.places[photo.PlaceID]; !ok {
		return places.ErrNotFound
	}
	if photo.ID == "" {
		photo.ID = params.NewID()
	}
	photo.CreatedAt = s.d.now()
	s.d.photos[photo.PlaceID] = append(s.d.photos[photo.PlaceID], *photo)
	return nil
}

func (s *placeStore) PhotosByPlace(ctx context.Context, placeIDs []string) (map[string][]places.Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	out := make(map[string][]places.Photo, len(placeIDs))
	for _, id := range placeIDs {
		if photos := s.d.photos[id]; len(photos) > 0 {
			out[id] = append([]places.Photo(nil), photos...)
		}
	}
	return out, nil
}

func (s *placeStore) AddReport(ctx context.Context, placeID, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	rec, ok := s.d.places[placeID]
	if !ok {
		return 0, places.ErrNotFound
	}
	for _, u := range rec.reports {
		if u == userID {
			return 0, places.ErrAlreadyReported
		}
	}
	rec.reports = append(rec.reports, userID)
	return len(rec.reports), nil
}

func (s *placeStore) RemoveReport(ctx context.Context, placeID, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	rec, ok := s.d.places[placeID]
	if !ok {
		return 0, nil
	}
	kept := rec.reports[:0]
	for _, u := range rec.reports {
		if u != userID {
			kept = append(kept, u)
		}
	}
	rec.reports = kept
	return len(rec.reports), nil
}

func (s *placeStore) ArchiveReported(ctx context.Context, threshold int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	var ids []string
	for id, rec := range s.d.places {
		if !rec.place.Archived && len(rec.reports) >= threshold {
			rec.place.Archived = true
			rec.place.UpdatedAt = s.d.now()
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type ratingStore struct{ d *DB }

func clonePayload(p ratings.Payload) ratings.Payload {
	cp := func(f *float64) *float64 {
		if f == nil {
			return nil
		}
		v := *f
		return &v
	}
	out := ratings.Payload{
		WarmLighting:    cp(p.WarmLighting),
		RelaxedMusic:    cp(p.RelaxedMusic),
		CalmEnvironment: cp(p.CalmEnvironment),
		SoftFabrics:     cp(p.SoftFabrics),
		ComfySeating:    cp(p.ComfySeating),
		HotFoodDrink:    cp(p.HotFoodDrink),
	}
	if p.Comment != nil {
		c := *p.Comment
		out.Comment = &c
	}
	return out
}

func cloneRating(r ratings.Rating) ratings.Rating {
	r.Rating = clonePayload(r.Rating)
	return r
}

func (s *ratingStore) Create(ctx context.Context, rating *ratings.Rating) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	for _, rec := range s.d.ratings {
		if rec.rating.PlaceID == rating.PlaceID && rec.rating.UserID == rating.UserID {
			return ratings.ErrDuplicate
		}
	}

	if rating.ID == "" {
		rating.ID = params.NewID()
	}
	now := s.d.now()
	rating.CreatedAt = now
	rating.UpdatedAt = now
	seq := s.d.next()
	s.d.ratings[rating.ID] = &ratingRecord{rating: cloneRating(*rating), created: seq, touched: seq}
	return nil
}

func (s *ratingStore) GetByID(ctx context.Context, id string) (*ratings.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	rec, ok := s.d.ratings[id]
	if !ok {
		return nil, ratings.ErrNotFound
	}
	r := cloneRating(rec.rating)
	return &r, nil
}

func (s *ratingStore) GetByPlaceAndUser(ctx context.Context, placeID, userID string) (*ratings.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	for _, rec := range s.d.ratings {
		if rec.rating.PlaceID == placeID && rec.rating.UserID == userID {
			r := cloneRating(rec.rating)
			return &r, nil
		}
	}
	return nil, ratings.ErrNotFound
}

func (s *ratingStore) collect(match func(*ratings.Rating) bool, less func(a, b *ratingRecord) bool) []ratings.Rating {
	recs := []*ratingRecord{}
	for _, rec := range s.d.ratings {
		if match(&rec.rating) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return less(recs[i], recs[j]) })

	out := make([]ratings.Rating, 0, len(recs))
	for _, rec := range recs {
		out = append(out, cloneRating(rec.rating))
	}
	return out
}

func (s *ratingStore) ListByUser(ctx context.Context, userID string, filter ratings.Filter) ([]ratings.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	term := strings.ToLower(filter.SearchTerm)
	match := func(r *ratings.Rating) bool {
		if r.UserID != userID {
			return false
		}
		if filter.PlaceID != "" && r.PlaceID != filter.PlaceID {
			return false
		}
		if term != "" {
			if r.Rating.Comment == nil || !strings.Contains(strings.ToLower(*r.Rating.Comment), term) {
				return false
			}
		}
		return true
	}
	newestFirst := func(a, b *ratingRecord) bool { return a.touched > b.touched }
	return s.collect(match, newestFirst), nil
}

func (s *ratingStore) ListByPlace(ctx context.Context, placeID string) ([]ratings.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	match := func(r *ratings.Rating) bool { return r.PlaceID == placeID }
	oldestFirst := func(a, b *ratingRecord) bool { return a.created < b.created }
	return s.collect(match, oldestFirst), nil
}

func (s *ratingStore) Update(ctx context.Context, rating *ratings.Rating) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	rec, ok := s.d.ratings[rating.ID]
	if !ok {
		return ratings.ErrNotFound
	}
	rec.rating.Rating = clonePayload(rating.Rating)
	rec.rating.UpdatedAt = s.d.now()
	rec.touched = s.d.next()
	*rating = cloneRating(rec.rating)
	return nil
}

func (s *ratingStore) DeleteByPlaceAndUser(ctx context.Context, placeID, userID string) (*ratings.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	for id, rec := range s.d.ratings {
		if rec.rating.PlaceID == placeID && rec.rating.UserID == userID {
			delete(s.d.ratings, id)
			r := rec.rating
			return &r, nil
		}
	}
	return nil, ratings.ErrNotFound
}

type userStore struct{ d *DB }

func (s *userStore) Create(ctx context.Context, user *users.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	for _, u := range s.d.users {
		if strings.EqualFold(u.Email, user.Email) {
			return users.ErrDuplicateEmail
		}
		if u.Username == user.Username {
			return users.ErrDuplicateUsername
		}
	}

	if user.ID == "" {
		user.ID = params.NewID()
	}
	now := s.d.now()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	s.d.users[user.ID] = &stored
	return nil
}

func (s *userStore) GetByID(ctx context.Context, id string) (*users.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	u, ok := s.d.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *userStore) GetByUsername(ctx context.Context, username string) (*users.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	for _, u := range s.d.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, users.ErrNotFound
}
