package services

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/sahilchouksey/course-storefront/model"
	"github.com/sahilchouksey/course-storefront/utils/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verifyTokenFromURL(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

func TestAccounts_RegisterAndVerify(t *testing.T) {
	f := newFixture(t)

	user, err := f.accounts.Register(f.ctx, " Ada@Example.com ", "s3cure-pass", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.False(t, user.IsVerified())
	assert.Equal(t, "Ada", user.DisplayName())

	require.Len(t, f.mailer.Verifications, 1)
	msg := f.mailer.Verifications[0]
	assert.True(t, strings.HasPrefix(msg.VerifyURL, testAppURL+"/verify-email?token="))

	verified, err := f.accounts.VerifyEmail(f.ctx, verifyTokenFromURL(t, msg.VerifyURL))
	require.NoError(t, err)
	assert.True(t, verified.IsVerified())

	var stored model.User
	require.NoError(t, f.db.First(&stored, user.ID).Error)
	assert.NotNil(t, stored.EmailVerified)

	_, err = f.accounts.VerifyEmail(f.ctx, verifyTokenFromURL(t, msg.VerifyURL))
	assert.ErrorIs(t, err, apperror.ErrTokenInvalid)
}

func TestAccounts_RegisterRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "taken@example.com", true)

	_, err := f.accounts.Register(f.ctx, "TAKEN@example.com", "long-enough", "")
	assert.ErrorIs(t, err, apperror.ErrAlreadyExists)

	_, err = f.accounts.Register(f.ctx, "new@example.com", "short", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestAccounts_RegisterSurvivesMailerFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.Err = errors.New("smtp down")

	user, err := f.accounts.Register(f.ctx, "a@example.com", "long-enough", "")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
}

func TestAccounts_Authenticate(t *testing.T) {
	f := newFixture(t)
	f.createUser(t, "member@example.com", true)

	user, err := f.accounts.Authenticate(f.ctx, "Member@Example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "member@example.com", user.Email)

	_, err = f.accounts.Authenticate(f.ctx, "member@example.com", "wrong")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = f.accounts.Authenticate(f.ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestAccounts_ProvisionGuestIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first, err := f.accounts.ProvisionGuest(f.ctx, "Guest@Example.com")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.NotEmpty(t, first.Password)
	assert.True(t, first.User.IsVerified())

	second, err := f.accounts.ProvisionGuest(f.ctx, "guest@example.com")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Empty(t, second.Password)
	assert.Equal(t, first.User.ID, second.User.ID)

	assert.EqualValues(t, 1, countRows(t, f.db, &model.User{}))

	// The generated password works for a normal sign-in
	_, err = f.accounts.Authenticate(f.ctx, "guest@example.com", first.Password)
	assert.NoError(t, err)
}

func TestAccounts_AutoLogin(t *testing.T) {
	f := newFixture(t)
	guest, err := f.accounts.ProvisionGuest(f.ctx, "guest@example.com")
	require.NoError(t, err)
	token, err := f.tokens.IssueAutoLogin(f.ctx, "guest@example.com", "cs_1")
	require.NoError(t, err)

	user, err := f.accounts.LoginWithAutoLoginToken(f.ctx, token.Token)
	require.NoError(t, err)
	assert.Equal(t, guest.User.ID, user.ID)

	_, err = f.accounts.LoginWithAutoLoginToken(f.ctx, token.Token)
	assert.ErrorIs(t, err, apperror.ErrTokenInvalid)
}

func TestAccounts_AutoLoginForDeletedUser(t *testing.T) {
	f := newFixture(t)
	token, err := f.tokens.IssueAutoLogin(f.ctx, "gone@example.com", "cs_1")
	require.NoError(t, err)

	_, err = f.accounts.LoginWithAutoLoginToken(f.ctx, token.Token)
	assert.ErrorIs(t, err, apperror.ErrTokenInvalid)
}
