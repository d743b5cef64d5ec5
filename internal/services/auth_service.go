package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"canteen/internal/auth"
	"canteen/internal/core"
	"canteen/internal/log"
)

const minPasswordLength = 8

var (
	ErrInvalidCredentials = errors.New("invalid credentials")

	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
)

// NewUser describes an account to provision.
type NewUser struct {
	Username  string
	Email     string
	Password  string
	IsStudent bool
	IsManager bool
}

// AuthService provisions accounts and exchanges credentials for tokens.
type AuthService struct {
	users      UserRepository
	issuer     *auth.Issuer
	bcryptCost int
	now        func() time.Time
	logger     *log.Logger
}

type AuthOption func(*AuthService)

// WithBcryptCost lowers the hashing cost, mainly for tests.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

func NewAuthService(users UserRepository, issuer *auth.Issuer, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:      users,
		issuer:     issuer,
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
		logger:     log.NewDefault().WithComponent(log.ComponentAuth),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register signs up a student. Self registration never grants manager rights.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (core.User, error) {
	return s.CreateUser(ctx, NewUser{
		Username:  username,
		Email:     email,
		Password:  password,
		IsStudent: true,
	})
}

// CreateUser validates and stores a new account with a hashed password.
func (s *AuthService) CreateUser(ctx context.Context, in NewUser) (core.User, error) {
	return s.create(ctx, in, false)
}

// CreateSuperuser stores an account holding every capability.
func (s *AuthService) CreateSuperuser(ctx context.Context, username, email, password string) (core.User, error) {
	return s.create(ctx, NewUser{
		Username:  username,
		Email:     email,
		Password:  password,
		IsManager: true,
	}, true)
}

func (s *AuthService) create(ctx context.Context, in NewUser, superuser bool) (core.User, error) {
	username := strings.TrimSpace(in.Username)
	switch {
	case username == "":
		return core.User{}, core.NewValidationError("username", "This field may not be blank.")
	case len(username) > 150:
		return core.User{}, core.NewValidationError("username", "Ensure this field has no more than 150 characters.")
	case !usernamePattern.MatchString(username):
		return core.User{}, core.NewValidationError("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	if len(in.Password) < minPasswordLength {
		return core.User{}, core.NewValidationError("password",
			fmt.Sprintf("This password is too short. It must contain at least %d characters.", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, core.User{
		Username:     username,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: string(hash),
		IsStudent:    in.IsStudent,
		IsManager:    in.IsManager || superuser,
		IsSuperuser:  superuser,
		DateJoined:   s.now().UTC(),
	})
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) && verr.Field == "username" {
			s.logger.WarnContext(ctx, "Username already taken",
				log.FieldUsername, username,
				log.FieldErrorType, log.ErrorTypeConflict)
		}
		return core.User{}, err
	}

	s.logger.InfoContext(ctx, "User created",
		log.FieldUserID, u.ID,
		log.FieldUsername, u.Username,
		"is_student", u.IsStudent,
		"is_manager", u.IsManager,
		log.FieldOperation, log.OpRegister)
	return u, nil
}

// Login checks the password and returns a token pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (auth.TokenPair, core.User, error) {
	u, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if core.IsNotFound(err) {
			return auth.TokenPair{}, core.User{}, ErrInvalidCredentials
		}
		return auth.TokenPair{}, core.User{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Failed login", log.FieldUsername, u.Username)
		return auth.TokenPair{}, core.User{}, ErrInvalidCredentials
	}

	pair, err := s.issuer.Issue(u.Identity())
	if err != nil {
		return auth.TokenPair{}, core.User{}, fmt.Errorf("issue tokens: %w", err)
	}
	s.logger.InfoContext(ctx, "User logged in",
		log.FieldUserID, u.ID,
		log.FieldOperation, log.OpLogin)
	return pair, u, nil
}

// Refresh exchanges a refresh token for a new access token.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (string, error) {
	access, err := s.issuer.Refresh(refresh)
	if err != nil {
		return "", err
	}
	s.logger.DebugContext(ctx, "Access token refreshed", log.FieldOperation, log.OpRefresh)
	return access, nil
}

// ListUsers returns every account with its due amount.
func (s *AuthService) ListUsers(ctx context.Context, caller core.Identity) ([]core.User, error) {
	if err := requireManager(caller, "list users"); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	s.logger.DebugContext(ctx, "Users listed", log.FieldCount, len(users), log.FieldOperation, log.OpList)
	return users, nil
}
