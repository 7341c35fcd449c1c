//go:build !review

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReviewBypass_disabledInProductionBuilds(t *testing.T) {
	fx := newFlowFixture(t)
	fx.flow.review = ReviewCredentials{Email: "review@test.com", Code: "999999"}

	err := fx.flow.ReviewBypass(context.Background(), "review@test.com", "999999")
	assert.ErrorIs(t, err, ErrBypassDisabled, "bypass must be dead code without the review build tag")
	assert.False(t, fx.flow.LoggedIn(context.Background()))
}
