package services

import (
	"testing"
	"time"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/utils/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_AutoLoginIsSingleUse(t *testing.T) {
	f := newFixture(t)

	issued, err := f.tokens.IssueAutoLogin(f.ctx, "a@example.com", "cs_1")
	require.NoError(t, err)
	assert.Len(t, issued.Token, tokenBytes*2)

	redeemed, err := f.tokens.ConsumeAutoLogin(f.ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", redeemed.Email)

	_, err = f.tokens.ConsumeAutoLogin(f.ctx, issued.Token)
	assert.ErrorIs(t, err, apperror.ErrTokenInvalid)
}

func TestTokens_KindsAreNotInterchangeable(t *testing.T) {
	f := newFixture(t)

	verification, err := f.tokens.IssueEmailVerification(f.ctx, "a@example.com")
	require.NoError(t, err)

	_, err = f.tokens.ConsumeAutoLogin(f.ctx, verification.Token)
	assert.ErrorIs(t, err, apperror.ErrTokenInvalid)

	// The failed cross-kind attempt must not have burnt the token
	_, err = f.tokens.ConsumeEmailVerification(f.ctx, verification.Token)
	assert.NoError(t, err)
}

func TestTokens_ReissueReplacesPrevious(t *testing.T) {
	f := newFixture(t)

	first, err := f.tokens.IssueAutoLogin(f.ctx, "a@example.com", "cs_1")
	require.NoError(t, err)
	second, err := f.tokens.IssueAutoLogin(f.ctx, "a@example.com", "cs_2")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	_, err = f.tokens.ConsumeAutoLogin(f.ctx, first.Token)
	assert.ErrorIs(t, err, apperror.ErrTokenInvalid)

	latest, err := f.tokens.AutoLoginForSession(f.ctx, "a@example.com", "cs_2")
	require.NoError(t, err)
	assert.Equal(t, second.Token, latest.Token)

	_, err = f.tokens.AutoLoginForSession(f.ctx, "a@example.com", "cs_1")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// A verification token for the same address is left alone
	_, err = f.tokens.IssueEmailVerification(f.ctx, "a@example.com")
	require.NoError(t, err)
	assert.EqualValues(t, 2, countRows(t, f.db, &model.VerificationToken{}))
}

func TestTokens_ExpiredTokensAreRejectedAndPurged(t *testing.T) {
	f := newFixture(t)
	past := time.Now().UTC().Add(-48 * time.Hour)
	f.tokens.now = func() time.Time { return past }

	stale, err := f.tokens.IssueAutoLogin(f.ctx, "old@example.com", "cs_old")
	require.NoError(t, err)
	_, err = f.tokens.IssueEmailVerification(f.ctx, "old@example.com")
	require.NoError(t, err)

	f.tokens.now = utcNow
	fresh, err := f.tokens.IssueAutoLogin(f.ctx, "new@example.com", "cs_new")
	require.NoError(t, err)

	_, err = f.tokens.AutoLoginForSession(f.ctx, "old@example.com", "cs_old")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	purged, err := f.tokens.PurgeExpired(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, purged)

	_, err = f.tokens.ConsumeAutoLogin(f.ctx, stale.Token)
	assert.ErrorIs(t, err, apperror.ErrTokenInvalid)
	_, err = f.tokens.ConsumeAutoLogin(f.ctx, fresh.Token)
	assert.NoError(t, err)
}

func TestTokens_ExpiredTokenConsumeFails(t *testing.T) {
	f := newFixture(t)
	f.tokens.now = func() time.Time { return time.Now().UTC().Add(-25 * time.Hour) }
	stale, err := f.tokens.IssueAutoLogin(f.ctx, "old@example.com", "cs_old")
	require.NoError(t, err)

	f.tokens.now = utcNow
	_, err = f.tokens.ConsumeAutoLogin(f.ctx, stale.Token)
	assert.ErrorIs(t, err, apperror.ErrTokenInvalid)
}

func TestTokens_EmptyTokenIsInvalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.tokens.ConsumeEmailVerification(f.ctx, "")
	assert.ErrorIs(t, err, apperror.ErrTokenInvalid)
}

func TestTokens_AutoLoginIsScopedToItsSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.tokens.IssueAutoLogin(f.ctx, "a@example.com", "cs_owner")
	require.NoError(t, err)

	_, err = f.tokens.AutoLoginForSession(f.ctx, "a@example.com", "cs_other")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = f.tokens.AutoLoginForSession(f.ctx, "a@example.com", "")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	found, err := f.tokens.AutoLoginForSession(f.ctx, "a@example.com", "cs_owner")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", found.Email)
}
