package cozy

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cozy/internal/db"
	"cozy/internal/domain/places"
	"cozy/internal/domain/ratings"
	"cozy/internal/domain/users"

	"github.com/stretchr/testify/assert"
)

func TestFromStore(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		reason string
	}{
		{"place not found", places.ErrNotFound, KindNotFound, ""},
		{"wrapped rating not found", fmt.Errorf("lookup: %w", ratings.ErrNotFound), KindNotFound, ""},
		{"duplicate rating", ratings.ErrDuplicate, KindConflict, ReasonValidationError},
		{"duplicate report", places.ErrAlreadyReported, KindConflict, ReasonDuplicateReport},
		{"duplicate email", users.ErrDuplicateEmail, KindConflict, ReasonValidationError},
		{"store outage", fmt.Errorf("%w: conn reset", db.ErrUnavailable), KindUnavailable, ""},
		{"deadline", context.DeadlineExceeded, KindUnavailable, ""},
		{"unknown", errors.New("boom"), KindInternal, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fromStore(tt.err)
			assert.Equal(t, tt.kind, KindOf(err))

			var e *Error
			if assert.True(t, errors.As(err, &e)) {
				assert.Equal(t, tt.reason, e.Reason)
			}
		})
	}

	assert.NoError(t, fromStore(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}
