package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"canteen/internal/auth"
	"canteen/internal/core"
	"canteen/internal/services"
	"canteen/internal/storage/memory"
)

func newAuthService() (*services.AuthService, *auth.Issuer) {
	issuer := auth.NewIssuer("secret", time.Minute, time.Hour)
	return services.NewAuthService(memory.New(), issuer, services.WithBcryptCost(bcrypt.MinCost)), issuer
}

func TestAuthService_Register(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	u, err := svc.Register(ctx, "sam", "sam@example.com", "longenough")
	require.NoError(t, err)
	assert.True(t, u.IsStudent)
	assert.False(t, u.IsManager)
	assert.NotEqual(t, "longenough", u.PasswordHash)

	tests := []struct {
		name     string
		username string
		password string
		field    string
	}{
		{"short password", "kim", "short", "password"},
		{"blank username", "  ", "longenough", "username"},
		{"bad characters", "kim lee", "longenough", "username"},
		{"duplicate", "SAM", "longenough", "username"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, "", tt.password)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestAuthService_LoginAndRefresh(t *testing.T) {
	svc, issuer := newAuthService()
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, services.NewUser{Username: "boss", Password: "password1", IsManager: true})
	require.NoError(t, err)

	pair, u, err := svc.Login(ctx, "boss", "password1")
	require.NoError(t, err)
	assert.Equal(t, "boss", u.Username)

	claims, err := issuer.Verify(pair.Access, auth.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsManager)

	access, err := svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	_, err = issuer.Verify(access, auth.AccessToken)
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "boss", "wrong-password")
	assert.True(t, errors.Is(err, services.ErrInvalidCredentials))
	_, _, err = svc.Login(ctx, "nobody", "password1")
	assert.True(t, errors.Is(err, services.ErrInvalidCredentials))
}

func TestAuthService_SuperuserAndListing(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	root, err := svc.CreateSuperuser(ctx, "root", "", "password1")
	require.NoError(t, err)
	assert.True(t, root.IsSuperuser)
	assert.True(t, root.IsManager)

	student, err := svc.Register(ctx, "sam", "", "password1")
	require.NoError(t, err)

	users, err := svc.ListUsers(ctx, root.Identity())
	require.NoError(t, err)
	assert.Len(t, users, 2)

	_, err = svc.ListUsers(ctx, student.Identity())
	assert.True(t, isPermission(err))
}
