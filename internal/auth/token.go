// Package auth issues and verifies the identity tokens that gate the HTTP
// API and the real-time channel.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dkeye/CineMatch/internal/domain"
)

const DefaultTokenTTL = 7 * 24 * time.Hour

// MinSecretLen guards against signing with an empty or toy secret.
const MinSecretLen = 16

type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// claims mirror what the identity service signs: the participant id and
// display name next to the registered claims.
type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"id"`
	Name   string `json:"name"`
}

// TokenService signs and verifies HS256 identity tokens.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(cfg Config) (*TokenService, error) {
	if len(cfg.Secret) < MinSecretLen {
		return nil, fmt.Errorf("auth secret must be at least %d bytes", MinSecretLen)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenService{
		secret: []byte(cfg.Secret),
		issuer: strings.TrimSpace(cfg.Issuer),
		ttl:    cfg.TTL,
		now:    cfg.Now,
	}, nil
}

// Issue mints a token for p. It backs the development token command.
func (s *TokenService) Issue(p domain.Participant) (string, error) {
	if p.ID == "" {
		return "", fmt.Errorf("%w: participant id is required", domain.ErrValidation)
	}
	now := s.now().UTC()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(p.ID),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
		UserID: string(p.ID),
		Name:   p.Name,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}

// Verify resolves a token into its participant. Every failure is reported
// as domain.ErrUnauthorized; the cause is returned wrapped for logging only.
func (s *TokenService) Verify(token string) (domain.Participant, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Participant{}, domain.ErrUnauthorized
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, mapJWTError(err))
	}

	id := parsed.UserID
	if id == "" {
		id = parsed.Subject
	}
	p, err := domain.NewParticipant(id, parsed.Name)
	if err != nil {
		return domain.Participant{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	return p, nil
}

var (
	errTokenExpired   = errors.New("token expired")
	errTokenSignature = errors.New("token signature invalid")
	errTokenMalformed = errors.New("token malformed")
)

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return errTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return errTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return errTokenMalformed
	default:
		return err
	}
}
