// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth implements account identification, the login challenge
// and password login. Sessions and OAuth redirects live outside this
// package; it only decides which methods an account can sign in with
// and whether supplied credentials are valid.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"

	"golang.org/x/crypto/bcrypt"

	"codeberg.org/oliverandrich/loginflow/internal/models"
	"codeberg.org/oliverandrich/loginflow/internal/repository"
)

var (
	ErrMissingEmail       = errors.New("email is required")
	ErrUserNotFound       = errors.New("user not found")
	ErrNoPasswordSet      = errors.New("account has no password set")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrWeakPassword       = errors.New("password does not meet requirements")
)

// PasswordMethod is the challenge entry for password login, listed
// alongside linked provider names.
const PasswordMethod = "password"

// MinPasswordLength is the minimum accepted password length on registration.
const MinPasswordLength = 8

// supportedProviders is the static allow-list of third-party providers.
// Rows referencing anything else are ignored when building a challenge.
var supportedProviders = map[string]struct{}{
	"github": {},
	"google": {},
}

// IsSupportedProvider reports whether a provider name is on the allow-list.
func IsSupportedProvider(name string) bool {
	_, ok := supportedProviders[name]
	return ok
}

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Service provides account identification and login.
type Service struct {
	repo *repository.Repository
}

// NewService creates a new auth service.
func NewService(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

// Identify resolves an account by email for the two-step login flow.
// This is an existence check, not a security boundary; the product shows
// "account not found" to the user by design.
func (s *Service) Identify(ctx context.Context, email string) (*models.User, error) {
	if email == "" {
		return nil, ErrMissingEmail
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Challenge describes the sign-in methods available to an account.
type Challenge struct {
	Email       string   `json:"email"`
	Methods     []string `json:"methods"`
	HasPassword bool     `json:"has_password"`
}

// GetChallenge lists every linked provider as a sign-in option, plus
// "password" when the account has a password hash set.
func (s *Service) GetChallenge(ctx context.Context, email string) (*Challenge, error) {
	user, err := s.Identify(ctx, email)
	if err != nil {
		return nil, err
	}

	methods, err := s.methodsFor(ctx, user)
	if err != nil {
		return nil, err
	}

	return &Challenge{
		Email:       user.Email,
		Methods:     methods,
		HasPassword: user.HasPassword(),
	}, nil
}

// LoginResult is returned by Login. Either User is set, or
// NeedsPassword is true and Methods carries the available options.
type LoginResult struct {
	User          *models.User
	NeedsPassword bool
	Methods       []string
}

// Login authenticates a user by email and password.
//
// An empty password is not a failure: the caller gets the available
// sign-in methods back so the UI can ask for more. Session creation is
// up to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" {
		return nil, ErrMissingEmail
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			slog.Warn("login_failed", "email", email, "reason", "user_not_found")
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if password == "" {
		methods, err := s.methodsFor(ctx, user)
		if err != nil {
			return nil, err
		}
		return &LoginResult{NeedsPassword: true, Methods: methods}, nil
	}

	if !user.HasPassword() {
		slog.Warn("login_failed", "email", email, "reason", "no_password_set")
		return nil, ErrNoPasswordSet
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login_failed", "email", email, "reason", "invalid_password")
		return nil, ErrInvalidCredentials
	}

	slog.Info("login_success", "user_id", user.ID, "email", email)
	return &LoginResult{User: user}, nil
}

// RegisterParams holds the parameters for user registration.
type RegisterParams struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Register creates a new, unverified user account.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	if _, err := mail.ParseAddress(params.Email); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, err
	}

	exists, err := s.repo.EmailExists(ctx, params.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hash := string(passwordHash)

	user := &models.User{
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Email:        params.Email,
		PasswordHash: &hash,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("register_success", "user_id", user.ID, "email", params.Email)
	return user, nil
}

// LinkProvider stores a third-party provider link after an OAuth
// callback has been handled upstream. The provider name is validated
// against the static allow-list.
func (s *Service) LinkProvider(ctx context.Context, userID, provider, providerID, payload string) (*models.ThirdPartyAuth, error) {
	if !IsSupportedProvider(provider) {
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}

	auth := &models.ThirdPartyAuth{
		UserID:     userID,
		Provider:   provider,
		ProviderID: providerID,
		Payload:    payload,
	}
	if err := s.repo.LinkThirdPartyAuth(ctx, auth); err != nil {
		return nil, fmt.Errorf("failed to link provider: %w", err)
	}

	slog.Info("provider_linked", "user_id", userID, "provider", provider)
	return auth, nil
}

// methodsFor builds the challenge method list for a user: linked
// providers on the allow-list first, then "password" if set.
func (s *Service) methodsFor(ctx context.Context, user *models.User) ([]string, error) {
	auths, err := s.repo.ListThirdPartyAuthsByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}

	methods := make([]string, 0, len(auths)+1)
	for _, a := range auths {
		if IsSupportedProvider(a.Provider) {
			methods = append(methods, a.Provider)
		}
	}
	if user.HasPassword() {
		methods = append(methods, PasswordMethod)
	}
	return methods, nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	allDigits := true
	for _, r := range password {
		if r < '0' || r > '9' {
			allDigits = false
			break
		}
	}
	if allDigits {
		return ErrWeakPassword
	}
	return nil
}
