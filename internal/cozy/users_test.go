package cozy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	user, err := svc.RegisterUser(ctx, "hygge", "Hygge@Example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "hygge@example.com", user.Email)

	_, err = svc.RegisterUser(ctx, "hygge", "other@example.com", "s3cret-pass")
	e := requireKind(t, err, KindConflict)
	assert.Equal(t, ReasonValidationError, e.Reason)

	_, err = svc.RegisterUser(ctx, "other", "hygge@example.com", "s3cret-pass")
	requireKind(t, err, KindConflict)

	_, err = svc.RegisterUser(ctx, "", "x@example.com", "pw")
	requireKind(t, err, KindInvalidArgument)

	got, err := svc.Authenticate(ctx, "hygge", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "hygge", "wrong")
	requireKind(t, err, KindUnauthorized)

	_, err = svc.Authenticate(ctx, "nobody", "s3cret-pass")
	requireKind(t, err, KindUnauthorized)

	found, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "hygge", found.Username)
}
