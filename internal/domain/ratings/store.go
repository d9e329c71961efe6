package ratings

import (
	"context"
	"errors"
	"fmt"

	"cozy/internal/db"
	"cozy/internal/params"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Store {
	return &Repository{db: db}
}

const ratingColumns = `
	id, place_id, user_id,
	warm_lighting, relaxed_music, calm_environment,
	soft_fabrics, comfy_seating, hot_food_drink,
	comment, created_at, updated_at
`

func scanRating(row pgx.Row) (*Rating, error) {
	var r Rating
	err := row.Scan(
		&r.ID, &r.PlaceID, &r.UserID,
		&r.Rating.WarmLighting, &r.Rating.RelaxedMusic, &r.Rating.CalmEnvironment,
		&r.Rating.SoftFabrics, &r.Rating.ComfySeating, &r.Rating.HotFoodDrink,
		&r.Rating.Comment, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRatings(rows pgx.Rows) ([]Rating, error) {
	defer rows.Close()

	ratings := []Rating{}
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return ratings, nil
}

// Create inserts the rating. The (place_id, user_id) unique constraint turns a
// concurrent second submission into ErrDuplicate.
func (r *Repository) Create(ctx context.Context, rating *Rating) error {
	if rating.ID == "" {
		rating.ID = params.NewID()
	}

	query := `
	INSERT INTO ratings (
		id, place_id, user_id,
		warm_lighting, relaxed_music, calm_environment,
		soft_fabrics, comfy_seating, hot_food_drink, comment
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	p := rating.Rating
	err := r.db.QueryRow(ctx, query,
		rating.ID, rating.PlaceID, rating.UserID,
		p.WarmLighting, p.RelaxedMusic, p.CalmEnvironment,
		p.SoftFabrics, p.ComfySeating, p.HotFoodDrink, p.Comment,
	).Scan(&rating.CreatedAt, &rating.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return db.Classify(fmt.Errorf("insert rating: %w", err))
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*Rating, error) {
	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	rating, err := scanRating(r.db.QueryRow(ctx, `SELECT `+ratingColumns+` FROM ratings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, db.Classify(err)
	}
	return rating, nil
}

func (r *Repository) GetByPlaceAndUser(ctx context.Context, placeID, userID string) (*Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE place_id = $1 AND user_id = $2`

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	rating, err := scanRating(r.db.QueryRow(ctx, query, placeID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, db.Classify(err)
	}
	return rating, nil
}

// ListByUser returns the user's ratings, most recently updated first.
func (r *Repository) ListByUser(ctx context.Context, userID string, filter Filter) ([]Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE user_id = $1`
	args := []any{userID}

	if filter.PlaceID != "" {
		args = append(args, filter.PlaceID)
		query += fmt.Sprintf(" AND place_id = $%d", len(args))
	}
	if filter.SearchTerm != "" {
		args = append(args, filter.SearchTerm)
		query += fmt.Sprintf(" AND strpos(lower(COALESCE(comment, '')), lower($%d)) > 0", len(args))
	}
	query += " ORDER BY updated_at DESC, id"

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("error querying ratings: %w", err))
	}
	return collectRatings(rows)
}

func (r *Repository) ListByPlace(ctx context.Context, placeID string) ([]Rating, error) {
	query := `SELECT ` + ratingColumns + ` FROM ratings WHERE place_id = $1 ORDER BY created_at, id`

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, query, placeID)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("error querying ratings: %w", err))
	}
	return collectRatings(rows)
}

func (r *Repository) Update(ctx context.Context, rating *Rating) error {
	query := `
	UPDATE ratings SET
		warm_lighting = $2,
		relaxed_music = $3,
		calm_environment = $4,
		soft_fabrics = $5,
		comfy_seating = $6,
		hot_food_drink = $7,
		comment = $8,
		updated_at = NOW()
	WHERE id = $1
	RETURNING place_id, user_id, created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	p := rating.Rating
	err := r.db.QueryRow(ctx, query, rating.ID,
		p.WarmLighting, p.RelaxedMusic, p.CalmEnvironment,
		p.SoftFabrics, p.ComfySeating, p.HotFoodDrink, p.Comment,
	).Scan(&rating.PlaceID, &rating.UserID, &rating.CreatedAt, &rating.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return db.Classify(fmt.Errorf("update rating: %w", err))
	}
	return nil
}

// DeleteByPlaceAndUser removes the rating and returns what was deleted.
func (r *Repository) DeleteByPlaceAndUser(ctx context.Context, placeID, userID string) (*Rating, error) {
	query := `DELETE FROM ratings WHERE place_id = $1 AND user_id = $2 RETURNING ` + ratingColumns

	ctx, cancel := context.WithTimeout(ctx, db.QueryTimeoutDuration)
	defer cancel()

	rating, err := scanRating(r.db.QueryRow(ctx, query, placeID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, db.Classify(fmt.Errorf("delete rating: %w", err))
	}
	return rating, nil
}
