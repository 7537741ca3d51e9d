package services

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"convo-relay/config"
	"convo-relay/internal/domain/user"
	"convo-relay/internal/repository"
	relay_errors "convo-relay/pkg/errors"
)

// AuthService verifies access tokens issued by the identity provider and
// resolves them to an active user.
type AuthService struct {
	users      repository.UserReader
	hmacSecret []byte
	rsaKey     *rsa.PublicKey
}

func NewAuthService(users repository.UserReader, cfg *config.Config) (*AuthService, error) {
	s := &AuthService{users: users}
	if cfg.JWTSecret != "" {
		s.hmacSecret = []byte(cfg.JWTSecret)
	}
	if pem := strings.TrimSpace(cfg.JWTPublicKeyPEM); pem != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, fmt.Errorf("parse JWT public key: %w", err)
		}
		s.rsaKey = key
	}
	if s.hmacSecret == nil && s.rsaKey == nil {
		return nil, errors.New("no JWT verification key configured")
	}
	return s, nil
}

type IdentityClaims struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (s *AuthService) keyFunc(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if s.hmacSecret != nil {
			return s.hmacSecret, nil
		}
	case *jwt.SigningMethodRSA:
		if s.rsaKey != nil {
			return s.rsaKey, nil
		}
	}
	return nil, relay_errors.ErrUnauthorized
}

func (s *AuthService) ParseToken(tokenString string) (IdentityClaims, error) {
	if tokenString == "" {
		return IdentityClaims{}, relay_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, s.keyFunc,
		jwt.WithValidMethods([]string{"HS256", "RS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return IdentityClaims{}, fmt.Errorf("%w: %v", relay_errors.ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(*IdentityClaims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return IdentityClaims{}, relay_errors.ErrUnauthorized
	}
	return *claims, nil
}

// Authenticate verifies the token and checks the subject is an active user.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (user.Identity, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return user.Identity{}, err
	}

	u, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, relay_errors.ErrNotFound) {
			return user.Identity{}, fmt.Errorf("%w: unknown user", relay_errors.ErrUnauthorized)
		}
		return user.Identity{}, err
	}
	if !u.IsActive {
		return user.Identity{}, fmt.Errorf("%w: user inactive", relay_errors.ErrForbidden)
	}

	id := user.Identity{UserID: u.ID, DisplayName: u.DisplayName, Email: u.Email.String}
	if id.DisplayName == "" {
		id.DisplayName = claims.Name
	}
	if id.Email == "" {
		id.Email = claims.Email
	}
	return id, nil
}

// IssueToken signs an HS256 token for userID. Used by development tooling
// and tests; production tokens come from the identity provider.
func (s *AuthService) IssueToken(userID string, ttl time.Duration) (string, error) {
	if s.hmacSecret == nil {
		return "", errors.New("HS256 secret not configured")
	}
	now := time.Now()
	claims := IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.hmacSecret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type ctxKey string

var identityKey ctxKey = "identity"

func WithIdentity(ctx context.Context, id user.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (user.Identity, bool) {
	id, ok := ctx.Value(identityKey).(user.Identity)
	return id, ok
}
