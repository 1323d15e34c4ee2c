// Package auth implements local accounts: registration, login, password
// recovery through a security question, and the session tokens handed to
// the UI.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/zombor/receipt-keeper/internal/models"
)

// UserStore is the slice of the persistence layer the auth service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, email string) (*models.User, error)
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// RegisterRequest carries the registration form.
type RegisterRequest struct {
	Name             string
	Email            string
	Password         string
	SecurityQuestion string
	SecurityAnswer   string
}

// Service handles account operations on top of a UserStore. It returns the
// domain errors in errors.go and passes storage errors through untouched.
type Service struct {
	users      UserStore
	hasher     Hasher
	notifier   Notifier
	timeSource TimeSource
}

// NewService creates a Service using the wall clock.
func NewService(users UserStore, hasher Hasher, notifier Notifier) *Service {
	return NewServiceWithDeps(users, hasher, notifier, defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with a custom time source for testing
func NewServiceWithDeps(users UserStore, hasher Hasher, notifier Notifier, timeSrc TimeSource) *Service {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Service{
		users:      users,
		hasher:     hasher,
		notifier:   notifier,
		timeSource: timeSrc,
	}
}

// Register validates the form, hashes the password and the normalized
// security answer, and creates the account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	email := NormalizeEmail(req.Email)
	if !validEmail(email) {
		return nil, fmt.Errorf("%w: %q is not an email address", ErrInvalidInput, req.Email)
	}

	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	question := strings.TrimSpace(req.SecurityQuestion)
	answer := NormalizeAnswer(req.SecurityAnswer)
	if (question == "") != (answer == "") {
		return nil, fmt.Errorf("%w: security question and answer must be set together", ErrInvalidInput)
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    s.timeSource.Now().UnixMilli(),
	}
	if question != "" {
		answerHash, err := s.hasher.Hash(answer)
		if err != nil {
			return nil, fmt.Errorf("hashing security answer: %w", err)
		}
		user.SecurityQuestion = question
		user.SecurityAnswerHash = answerHash
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	if err := s.notifier.Welcome(ctx, user); err != nil {
		slog.Warn("Failed to send welcome notification", "email", user.Email, "error", err)
	}

	return user, nil
}

// Login checks the password exactly as typed against the stored hash.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		return nil, ErrIncorrectPassword
	}
	return user, nil
}

// SecurityQuestion returns the question configured for the account.
func (s *Service) SecurityQuestion(ctx context.Context, email string) (string, error) {
	user, err := s.recoverable(ctx, email)
	if err != nil {
		return "", err
	}
	return user.SecurityQuestion, nil
}

// VerifySecurityAnswer compares the normalized answer with the stored hash.
func (s *Service) VerifySecurityAnswer(ctx context.Context, email, answer string) error {
	user, err := s.recoverable(ctx, email)
	if err != nil {
		return err
	}

	ok, err := s.hasher.Verify(NormalizeAnswer(answer), user.SecurityAnswerHash)
	if err != nil {
		return fmt.Errorf("verifying security answer: %w", err)
	}
	if !ok {
		return ErrIncorrectAnswer
	}
	return nil
}

// ResetPassword replaces the password hash after checking the policy. The
// new password is hashed as typed, like at registration.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.lookup(ctx, email)
	if err != nil {
		return err
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	user.PasswordHash = passwordHash

	return s.users.UpdateUser(ctx, user)
}

func (s *Service) lookup(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetUser(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrAccountNotFound
	}
	return user, nil
}

func (s *Service) recoverable(ctx context.Context, email string) (*models.User, error) {
	user, err := s.lookup(ctx, email)
	if err != nil {
		return nil, err
	}
	if !user.HasRecovery() {
		return nil, ErrRecoveryNotConfigured
	}
	return user, nil
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
