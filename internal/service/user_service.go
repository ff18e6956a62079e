package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"blogd/internal/auth"
	"blogd/internal/domain"
	"blogd/internal/repository"
)

// RegisterInput is the payload accepted by Register.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	PasswordConfirm string
}

// ResetConfirmInput is the payload accepted by ConfirmPasswordReset.
type ResetConfirmInput struct {
	UID                string
	Token              string
	NewPassword        string
	NewPasswordConfirm string
}

// UserService describes registration, login and password-reset operations.
type UserService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, string, string, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, string, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	RequestPasswordReset(ctx context.Context, email string) (uid, token string, err error)
	ConfirmPasswordReset(ctx context.Context, input ResetConfirmInput) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type userService struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
	reset  *auth.ResetTokenGenerator
}

func NewUserService(users repository.UserRepository, tokens *auth.TokenManager, reset *auth.ResetTokenGenerator) UserService {
	return &userService{
		users:  users,
		tokens: tokens,
		reset:  reset,
	}
}

func (s *userService) Register(ctx context.Context, input RegisterInput) (*domain.User, string, string, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)

	if username == "" {
		return nil, "", "", validationError("username", "This field is required.")
	}
	if input.Password != input.PasswordConfirm {
		return nil, "", "", validationError("password_confirm", "Passwords do not match.")
	}
	if msg := passwordPolicyViolation(input.Password); msg != "" {
		return nil, "", "", validationError("password", msg)
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, "", "", validationError("username", "This username is already taken.")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", "", err
	}
	if email != "" {
		if _, err := s.users.GetByEmail(ctx, email); err == nil {
			return nil, "", "", validationError("email", "This email is already registered.")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, "", "", err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", "", fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		// a unique index can still fire when two registrations race past the
		// pre-checks; attribute the conflict to the column that holds a row
		if errors.Is(err, repository.ErrDuplicate) {
			if _, lookupErr := s.users.GetByUsername(ctx, username); lookupErr == nil {
				return nil, "", "", validationError("username", "This username is already taken.")
			}
			return nil, "", "", validationError("email", "This email is already registered.")
		}
		return nil, "", "", err
	}

	access, refresh, err := s.tokens.IssuePair(user.ID, user.Username)
	if err != nil {
		return nil, "", "", err
	}
	return sanitizeUser(user), access, refresh, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (*domain.User, string, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, "", "", ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", "", ErrInvalidCredentials
		}
		return nil, "", "", err
	}
	if !user.IsActive {
		return nil, "", "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, "", "", ErrInvalidCredentials
	}

	access, refresh, err := s.tokens.IssuePair(user.ID, user.Username)
	if err != nil {
		return nil, "", "", err
	}
	return sanitizeUser(user), access, refresh, nil
}

func (s *userService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	return s.tokens.Refresh(refreshToken)
}

// RequestPasswordReset returns the uid/token pair when the email matches an
// account and empty strings otherwise. The caller is responsible for keeping
// the outward response identical in both cases.
func (s *userService) RequestPasswordReset(ctx context.Context, email string) (string, string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", "", nil
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", "", nil
		}
		return "", "", err
	}

	return auth.EncodeUID(user.ID), s.reset.Make(user), nil
}

func (s *userService) ConfirmPasswordReset(ctx context.Context, input ResetConfirmInput) error {
	id, err := auth.DecodeUID(input.UID)
	if err != nil {
		return ErrInvalidResetPayload
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetPayload
		}
		return err
	}

	if !s.reset.Check(user, input.Token) {
		return ErrInvalidResetToken
	}

	if input.NewPassword != input.NewPasswordConfirm {
		return validationError("new_password_confirm", "Passwords do not match.")
	}
	if msg := passwordPolicyViolation(input.NewPassword); msg != "" {
		return validationError("new_password", msg)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, user.ID, string(hash))
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

// passwordPolicyViolation returns a human-readable message when the password
// fails the strength policy, or "" when it passes.
func passwordPolicyViolation(password string) string {
	if len(password) < 8 {
		return "Password must be at least 8 characters."
	}
	numeric := true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			numeric = false
			break
		}
	}
	if numeric {
		return "Password cannot be entirely numeric."
	}
	return ""
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
