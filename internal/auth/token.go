// Package auth issues and verifies the session tokens exchanged between the
// canvass client and the questionnaire backend.
//
// Tokens are HS256 JWTs whose subject is the user id. The backend signs and
// verifies them with a shared secret; the client only ever reads the
// subject back from a stored token (SubjectUnverified) and forwards the
// token as a bearer credential.
package auth

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/canvass/internal/errors"
)

// DefaultIssuer is the iss claim written into every token.
const DefaultIssuer = "canvass"

// DefaultTTL is how long issued tokens stay valid.
const DefaultTTL = 24 * time.Hour

// Claims are the JWT claims of a session token.
type Claims struct {
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// Issuer signs and verifies session tokens.
type Issuer struct {
	secret []byte
	name   string
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer using secret as the HMAC key. A zero ttl
// falls back to DefaultTTL.
func NewIssuer(secret []byte, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "token secret must not be empty").
			WithSuggestion("Set auth.secret in the config file or CANVASS_AUTH_SECRET")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: secret, name: DefaultIssuer, ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue returns a signed token for userID and its expiry.
func (i *Issuer) Issue(userID string) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New(errors.ErrCodeIdentityInvalid, "user id cannot be empty")
	}

	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.name,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(errors.ErrCodeIdentityToken, "failed to sign token", err)
	}
	return signed, expires, nil
}

// Verify checks the signature, issuer and expiry of token and returns its
// claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, errors.New(errors.ErrCodeIdentityToken, "token cannot be empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.name),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	switch {
	case err == nil:
	case stderrors.Is(err, jwt.ErrTokenExpired):
		return nil, errors.Wrap(errors.ErrCodeIdentityToken, "token has expired", err)
	case stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, errors.Wrap(errors.ErrCodeIdentityToken, "invalid token signature", err)
	default:
		return nil, errors.Wrap(errors.ErrCodeIdentityToken, "invalid token", err)
	}

	if claims.Subject == "" {
		return nil, errors.New(errors.ErrCodeIdentityToken, "token has no subject")
	}
	return claims, nil
}

// SubjectUnverified reads the user id from token without checking the
// signature. Clients use it to recover the identity behind a stored token;
// it must never be used to authorize anything.
func SubjectUnverified(token string) (string, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", errors.Wrap(errors.ErrCodeIdentityToken, "malformed token", err)
	}
	if claims.Subject == "" {
		return "", errors.New(errors.ErrCodeIdentityToken, "token has no subject")
	}
	return claims.Subject, nil
}
