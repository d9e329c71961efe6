package places

import (
	"context"
	"errors"
	"fmt"

	"cozy/internal/db"
	"cozy/internal/params"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Store {
	return &Repository{db: db}
}

const placeColumns = `
	p.id, p.name, p.type, p.address, p.city, p.state, p.zipcode,
	ST_X(p.location::geometry) AS longitude,
	ST_Y(p.location::geometry) AS latitude,
	p.avg_warm_lighting, p.avg_relaxed_music, p.avg_calm_environment,
	p.avg_soft_fabrics, p.avg_comfy_seating, p.avg_hot_food_drink,
	p.cozyness, p.archived, p.created_at, p.updated_at,
	COALESCE(
		(SELECT array_agg(r.user_id ORDER BY r.created_at) FROM place_reports r WHERE r.place_id = p.id),
		'{}'::text[]
	) AS user_reports
`

func scanPlace(row pgx.Row) (*Place, error) {
	var (
		p        Place
		lng, lat float64
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Type, &p.Address, &p.City, &p.State, &p.Zipcode,
		&lng, &lat,
		&p.Averages.WarmLighting, &p.Averages.RelaxedMusic, &p.Averages.CalmEnvironment,
		&p.Averages.SoftFabrics, &p.Averages.ComfySeating, &p.Averages.HotFoodDrink,
		&p.Cozyness, &p.Archived, &p.CreatedAt, &p.UpdatedAt,
		&p.UserReports,
	)
	if err != nil {
		return nil, err
	}
	p.Location = []float64{lng, lat}
	return &p, nil
}

// Create inserts the place with zeroed averages.
func (r *Repository) Create(ctx context.Context, place *Place) error {
	if len(place.Location) != 2 {
		return fmt.Errorf("place location must be [longitude, latitude]")
	}
	if place.ID == "" {
		place.ID = params.NewID()
	}

	const query = `
	INSERT INTO places (id, name, type, address, city, state, zipcode, location)
	VALUES ($1, $2, $3, $4, $5, $6, $7, ST_SetSRID(ST_MakePoint($8, $9), 4326))
	RETURNING created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	err := r.db.QueryRow(ctx, query,
		place.ID,
		place.Name,
		place.Type,
		place.Address,
		place.City,
		place.State,
		place.Zipcode,
		place.Location[0], // longitude
		place.Location[1], // latitude
	).Scan(&place.CreatedAt, &place.UpdatedAt)
	if err != nil {
		return db.Classify(fmt.Errorf("insert place: %w", err))
	}

	place.Averages = Scores{}
	place.Cozyness = 0
	place.Archived = false
	place.UserReports = []string{}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Place, error) {
	query := `SELECT ` + placeColumns + ` FROM places p WHERE p.id = $1`

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	p, err := scanPlace(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, db.Classify(err)
	}
	return p, nil
}

// List returns non-archived places in insertion order. With a location the
// result is restricted to places within filter.Radius meters, measured on the
// sphere so every backend agrees on the boundary.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Place, error) {
	query := `SELECT ` + placeColumns + ` FROM places p WHERE p.archived = FALSE`
	var args []any

	if filter.Near != nil {
		query += ` AND ST_DWithin(p.location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3, false)`
		args = append(args, filter.Near.Longitude, filter.Near.Latitude, filter.Radius)
	}
	query += ` ORDER BY p.created_at, p.id`

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("error querying places: %w", err))
	}
	defer rows.Close()

	places := []Place{}
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning place row: %w", err)
		}
		places = append(places, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return places, nil
}

func (r *Repository) UpdateAverages(ctx context.Context, id string, averages Scores, cozyness float64) error {
	const query = `
	UPDATE places SET
		avg_warm_lighting = $2,
		avg_relaxed_music = $3,
		avg_calm_environment = $4,
		avg_soft_fabrics = $5,
		avg_comfy_seating = $6,
		avg_hot_food_drink = $7,
		cozyness = $8,
		updated_at = NOW()
	WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	result, err := r.db.Exec(ctx, query, id,
		averages.WarmLighting,
		averages.RelaxedMusic,
		averages.CalmEnvironment,
		averages.SoftFabrics,
		averages.ComfySeating,
		averages.HotFoodDrink,
		cozyness,
	)
	if err != nil {
		return db.Classify(fmt.Errorf("failed to update averages: %w", err))
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddPhoto stores a photo reference for an existing place.
func (r *Repository) AddPhoto(ctx context.Context, photo *Photo) error {
	if photo.ID == "" {
		photo.ID = params.NewID()
	}

	const query = `
	INSERT INTO place_photos (id, place_id, user_id, url, caption)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at
	`

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	err := r.db.QueryRow(ctx, query, photo.ID, photo.PlaceID, photo.UserID, photo.URL, photo.Caption).
		Scan(&photo.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return db.Classify(fmt.Errorf("failed to add photo: %w", err))
	}
	return nil
}

func (r *Repository) PhotosByPlace(ctx context.Context, placeIDs []string) (map[string][]Photo, error) {
	photos := make(map[string][]Photo, len(placeIDs))
	if len(placeIDs) == 0 {
		return photos, nil
	}

	const query = `
	SELECT id, place_id, user_id, url, caption, created_at
	FROM place_photos
	WHERE place_id = ANY($1)
	ORDER BY created_at, id
	`

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, query, placeIDs)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var ph Photo
		if err := rows.Scan(&ph.ID, &ph.PlaceID, &ph.UserID, &ph.URL, &ph.Caption, &ph.CreatedAt); err != nil {
			return nil, err
		}
		photos[ph.PlaceID] = append(photos[ph.PlaceID], ph)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return photos, nil
}

// AddReport records that userID flagged the place and returns the new report
// count.
func (r *Repository) AddReport(ctx context.Context, placeID, userID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	result, err := r.db.Exec(ctx, `
		INSERT INTO place_reports (place_id, user_id) VALUES ($1, $2)
		ON CONFLICT (place_id, user_id) DO NOTHING
	`, placeID, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, ErrNotFound
		}
		return 0, db.Classify(fmt.Errorf("failed to add report: %w", err))
	}
	if result.RowsAffected() == 0 {
		return 0, ErrAlreadyReported
	}

	return r.countReports(ctx, placeID)
}

// RemoveReport is idempotent: removing a report that was never made succeeds.
func (r *Repository) RemoveReport(ctx context.Context, placeID, userID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM place_reports WHERE place_id = $1 AND user_id = $2`, placeID, userID)
	if err != nil {
		return 0, db.Classify(fmt.Errorf("failed to remove report: %w", err))
	}

	return r.countReports(ctx, placeID)
}

func (r *Repository) countReports(ctx context.Context, placeID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM place_reports WHERE place_id = $1`, placeID).Scan(&count)
	if err != nil {
		return 0, db.Classify(err)
	}
	return count, nil
}

// ArchiveReported archives every active place with at least threshold
// reports and returns their ids.
func (r *Repository) ArchiveReported(ctx context.Context, threshold int) ([]string, error) {
	const query = `
	UPDATE places p SET archived = TRUE, updated_at = NOW()
	WHERE p.archived = FALSE
	  AND (SELECT COUNT(*) FROM place_reports r WHERE r.place_id = p.id) >= $1
	RETURNING p.id
	`

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, query, threshold)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("failed to archive places: %w", err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return ids, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
