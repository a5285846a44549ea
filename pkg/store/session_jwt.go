package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bloodlink/pkg/domain"

	jwt "github.com/golang-jwt/jwt/v5"
)

const defaultJWTIssuer = "bloodlink-api"

// minJWTSecretLen is the shortest HS256 secret accepted.
const minJWTSecretLen = 32

type sessionClaims struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// JWTSessionStore issues and validates HS256 session tokens.
// Logout records the token's jti in the revoker until the token expires.
type JWTSessionStore struct {
	secret  []byte
	ttl     time.Duration
	revoker TokenRevoker
	issuer  string
}

// NewJWTSessionStore builds a JWT session store. revoker may be nil, in which
// case logout cannot invalidate tokens before they expire.
func NewJWTSessionStore(secret string, ttl time.Duration, revoker TokenRevoker) (*JWTSessionStore, error) {
	if len(secret) < minJWTSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minJWTSecretLen)
	}
	if ttl <= 0 {
		return nil, errors.New("jwt ttl must be positive")
	}
	return &JWTSessionStore{
		secret:  []byte(secret),
		ttl:     ttl,
		revoker: revoker,
		issuer:  defaultJWTIssuer,
	}, nil
}

// NewSession creates a signed JWT carrying the session projection.
func (s *JWTSessionStore) NewSession(_ context.Context, sess domain.Session) (string, error) {
	jti, err := NewToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	claims := sessionClaims{
		Username: sess.Username,
		Name:     sess.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.AdminID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// GetSession validates a JWT. Malformed, expired and revoked tokens resolve to none.
func (s *JWTSessionStore) GetSession(ctx context.Context, token string) (domain.Session, bool, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return domain.Session{}, false, nil
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return domain.Session{}, false, err
		}
		if revoked {
			return domain.Session{}, false, nil
		}
	}
	return domain.Session{
		AdminID:  claims.Subject,
		Username: claims.Username,
		Name:     claims.Name,
	}, true, nil
}

// DeleteSession revokes the token until it expires.
func (s *JWTSessionStore) DeleteSession(ctx context.Context, token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	return s.revoker.Revoke(ctx, claims.ID, ttl)
}

func (s *JWTSessionStore) parseAndVerify(token string) (*sessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("invalid token format")
	}
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, err
	}
	if strings.TrimSpace(claims.ID) == "" {
		return nil, errors.New("token jti missing")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token subject missing")
	}
	return claims, nil
}
