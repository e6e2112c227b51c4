package services

import (
	"testing"
	"time"

	"chat-sync/domain"
	"chat-sync/errors"

	"github.com/stretchr/testify/require"
)

const complexPassword = "ComplexPass123!"

func TestAuthService_Register(t *testing.T) {
	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		user, token, err := f.auth.Register("test@example.com", "Alice", complexPassword)
		req.NoError(err)
		req.NotEmpty(token)
		req.Equal(domain.PlanFree, user.Plan)
		req.Equal(int64(50<<20), user.UploadLimit)

		// The stored credential is a hash, never the plain password
		stored, err := f.users.GetUser(user.ID)
		req.NoError(err)
		req.NotContains(stored.PasswordHash, complexPassword)
		req.Contains(stored.PasswordHash, "$argon2id$")
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		_, token, err := f.auth.Register("test@example.com", "Alice", "simplepassword")
		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
	})

	t.Run("should fail when email is already taken", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)

		_, _, err := f.auth.Register("dup@example.com", "Alice", complexPassword)
		req.NoError(err)

		// Case differences do not dodge the uniqueness check
		_, _, err = f.auth.Register("DUP@example.com", "Mallory", complexPassword)
		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	registered, _, err := f.auth.Register("login@example.com", "Alice", complexPassword)
	req.NoError(err)

	user, token, err := f.auth.Login("login@example.com", complexPassword)
	req.NoError(err)
	req.NotEmpty(token)
	req.Equal(registered.ID, user.ID)

	// Wrong password and unknown email fail identically
	_, _, err = f.auth.Login("login@example.com", "WrongPass123!")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
	_, _, err = f.auth.Login("ghost@example.com", complexPassword)
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestAuthService_Transitions_Stream(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	transitions, cancel := f.auth.Transitions()
	defer cancel()

	user, _, err := f.auth.Register("stream@example.com", "Alice", complexPassword)
	req.NoError(err)
	f.auth.Logout(user.ID)

	signIn := <-transitions
	req.Equal(user.ID, signIn.UserID)
	req.True(signIn.SignedIn)

	signOut := <-transitions
	req.Equal(user.ID, signOut.UserID)
	req.False(signOut.SignedIn)
}

func TestAuthService_ChangePlan_Updates_Quota(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	user := f.user(t, domain.PlanFree)

	upgraded, err := f.auth.ChangePlan(user.ID, domain.PlanTeam)
	req.NoError(err)
	req.Equal(domain.PlanTeam, upgraded.Plan)
	req.Equal(int64(10<<30), upgraded.UploadLimit)

	_, err = f.auth.ChangePlan(user.ID, domain.Plan("gold"))
	req.Error(err)
}

func TestAuthService_Token_Roundtrip(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	user, token, err := f.auth.Register("token@example.com", "Alice", complexPassword)
	req.NoError(err)

	claims, err := f.auth.signer.Validate(string(token))
	req.NoError(err)
	req.Equal(user.ID, claims.UserID)
	req.Equal("token@example.com", claims.Email)
	req.WithinDuration(time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}
