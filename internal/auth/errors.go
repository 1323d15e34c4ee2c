package auth

import (
	"errors"

	"github.com/zombor/receipt-keeper/internal/store"
)

// Domain errors. Each one is an expected, user-correctable outcome.
var (
	ErrAccountNotFound       = errors.New("no account with this email")
	ErrDuplicateAccount      = store.ErrDuplicateAccount
	ErrIncorrectPassword     = errors.New("incorrect password")
	ErrIncorrectAnswer       = errors.New("incorrect security answer")
	ErrRecoveryNotConfigured = errors.New("password recovery is not set up for this account")
	ErrPasswordPolicy        = errors.New("password does not meet the policy")
	ErrInvalidInput          = errors.New("invalid input")
	ErrRecoveryStep          = errors.New("recovery step out of order")
	ErrInvalidToken          = errors.New("invalid or expired token")
)

var domainErrors = []error{
	ErrAccountNotFound,
	ErrDuplicateAccount,
	ErrIncorrectPassword,
	ErrIncorrectAnswer,
	ErrRecoveryNotConfigured,
	ErrPasswordPolicy,
	ErrInvalidInput,
	ErrRecoveryStep,
	ErrInvalidToken,
}

// IsDomainError reports whether err is one of the auth domain errors.
// Anything else, storage failures included, is infrastructure.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
