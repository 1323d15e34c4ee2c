package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/zombor/receipt-keeper/internal/models"
)

const (
	sessionAudience  = "session"
	recoveryAudience = "recovery"
)

// SessionClaims identify the signed-in user.
type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

type recoveryClaims struct {
	Step     Step   `json:"step"`
	Question string `json:"question,omitempty"`
	jwt.RegisteredClaims
}

// Sessions issues and checks HS256 tokens for signed-in users and for
// recovery flows in progress. Logged-out tokens are remembered in memory
// until they expire.
type Sessions struct {
	secret    []byte
	ttl       time.Duration
	ticketTTL time.Duration
	now       func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewSessions creates a Sessions signing with secret. Session tokens live
// for ttl; recovery tickets for ticketTTL.
func NewSessions(secret []byte, ttl, ticketTTL time.Duration) *Sessions {
	return &Sessions{
		secret:    secret,
		ttl:       ttl,
		ticketTTL: ticketTTL,
		now:       time.Now,
		revoked:   make(map[string]time.Time),
	}
}

// Issue signs a session token for user.
func (s *Sessions) Issue(user *models.User) (string, error) {
	now := s.now()
	claims := &SessionClaims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Email,
			Audience:  jwt.ClaimStrings{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return s.sign(claims)
}

// Validate checks signature, audience, expiry and revocation.
func (s *Sessions) Validate(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := s.parse(token, claims, sessionAudience); err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, fmt.Errorf("%w: logged out", ErrInvalidToken)
	}
	return claims, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *Sessions) Logout(token string) error {
	claims, err := s.Validate(token)
	if err != nil {
		return err
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, expiry := range s.revoked {
		if now.After(expiry) {
			delete(s.revoked, id)
		}
	}
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	return nil
}

// IssueRecoveryTicket signs a recovery snapshot.
func (s *Sessions) IssueRecoveryTicket(state RecoveryState) (string, error) {
	now := s.now()
	claims := &recoveryClaims{
		Step:     state.Step,
		Question: state.Question,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   state.Email,
			Audience:  jwt.ClaimStrings{recoveryAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ticketTTL)),
		},
	}
	return s.sign(claims)
}

// ParseRecoveryTicket verifies a ticket and returns its snapshot.
func (s *Sessions) ParseRecoveryTicket(ticket string) (RecoveryState, error) {
	claims := &recoveryClaims{}
	if err := s.parse(ticket, claims, recoveryAudience); err != nil {
		return RecoveryState{}, err
	}
	return RecoveryState{Step: claims.Step, Email: claims.Subject, Question: claims.Question}, nil
}

func (s *Sessions) sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (s *Sessions) parse(token string, claims jwt.Claims, audience string) error {
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
