package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"
)

// QueryTimeoutDuration bounds every single repository call.
var QueryTimeoutDuration = time.Second * 5

// ErrUnavailable marks failures that are worth retrying: timeouts, dropped
// connections and the like.
var ErrUnavailable = errors.New("database unavailable")

// Classify tags transient driver errors with ErrUnavailable and returns any
// other error unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	if IsTransient(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// IsTransient reports whether err came from a timeout or a connection level
// failure of either driver.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return true
	case pgconn.Timeout(err), pgconn.SafeToRetry(err):
		return true
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exception, 40001: serialization failure
		return len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code == "40001")
	}
	return false
}

// IsUniqueViolation reports a unique index violation from either driver.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return mongo.IsDuplicateKeyError(err)
}
