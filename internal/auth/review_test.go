//go:build review

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushdeck/agent/internal/kv"
)

func TestReviewBypass_staticCredentialsLogIn(t *testing.T) {
	fx := newFlowFixture(t)
	fx.flow.review = ReviewCredentials{Email: "review@test.com", Code: "999999"}
	ctx := context.Background()

	require.NoError(t, fx.flow.ReviewBypass(ctx, "review@test.com", "999999"))

	email, err := fx.store.Get(ctx, kv.KeyEmail)
	require.NoError(t, err)
	assert.Equal(t, "review@test.com", email)

	deviceID, err := fx.store.Get(ctx, kv.KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, "dev-abc", deviceID)

	assert.Empty(t, fx.provider.issueCalls, "bypass must not contact the code provider")
	assert.Empty(t, fx.provider.verifyCalls, "bypass must not contact the code provider")
	require.Len(t, fx.registrar.calls, 1)
	assert.Equal(t, "review@test.com", fx.registrar.calls[0][0])
	assert.Equal(t, "dev-abc", fx.registrar.calls[0][1])
	assert.True(t, fx.flow.LoggedIn(ctx))
}

func TestReviewBypass_wrongCredentialsRejected(t *testing.T) {
	fx := newFlowFixture(t)
	fx.flow.review = ReviewCredentials{Email: "review@test.com", Code: "999999"}
	ctx := context.Background()

	assert.ErrorIs(t, fx.flow.ReviewBypass(ctx, "review@test.com", "000000"), ErrInvalidCode)
	assert.ErrorIs(t, fx.flow.ReviewBypass(ctx, "other@test.com", "999999"), ErrInvalidCode)
	assert.False(t, fx.flow.LoggedIn(ctx))
	assert.Empty(t, fx.registrar.calls)
}

func TestReviewBypass_unconfiguredCredentialsRejectEverything(t *testing.T) {
	fx := newFlowFixture(t)

	err := fx.flow.ReviewBypass(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrInvalidCode)
	assert.False(t, fx.flow.LoggedIn(context.Background()))
}
