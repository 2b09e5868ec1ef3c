// Package auth is the access gateway for HR-only operations. It checks the
// HR credentials, issues HS256 session tokens and resolves a request's
// session into an offer.Actor. Candidates never authenticate; their offer
// token is the only credential they hold.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"offerdesk/offer-service/internal/offer"
)

// ErrInvalidCredentials is returned by Login for any mismatch. It does not
// say which half was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidSession is returned by Verify for a missing, expired or forged
// session token.
var ErrInvalidSession = errors.New("invalid session")

const issuer = "offer-service"

// Claims are the session token's claims; Subject is the HR email.
type Claims struct {
	jwt.RegisteredClaims
}

// Gateway authenticates the HR account.
type Gateway struct {
	email        string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewGateway returns a Gateway for a single HR account. An empty email or
// hash disables login entirely.
func NewGateway(email, passwordHash, secret string, ttl time.Duration) *Gateway {
	return &Gateway{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: []byte(passwordHash),
		secret:       []byte(secret),
		ttl:          ttl,
		now:          time.Now,
	}
}

// Session is a freshly issued login.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Login checks the HR credentials and issues a session token.
func (g *Gateway) Login(email, password string) (Session, error) {
	if g.email == "" || len(g.passwordHash) == 0 {
		return Session{}, ErrInvalidCredentials
	}

	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))), []byte(g.email)) == 1
	// Always pay for bcrypt so a wrong email costs the same as a wrong password.
	pwErr := bcrypt.CompareHashAndPassword(g.passwordHash, []byte(password))
	if !emailOK || pwErr != nil {
		return Session{}, ErrInvalidCredentials
	}

	now := g.now()
	expiresAt := now.Add(g.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   g.email,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	return Session{Token: signed, ExpiresAt: expiresAt}, nil
}

// Verify resolves a session token into the HR actor it was issued to.
func (g *Gateway) Verify(tokenString string) (offer.Actor, error) {
	if tokenString == "" {
		return offer.Actor{}, ErrInvalidSession
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return g.secret, nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !token.Valid {
		return offer.Actor{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	// A rotated HR account invalidates sessions issued to the old one.
	if claims.Subject != g.email {
		return offer.Actor{}, ErrInvalidSession
	}
	return offer.Actor{Subject: claims.Subject}, nil
}

// HashPassword produces the HR_PASSWORD_HASH value for a password.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
