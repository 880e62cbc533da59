// Package auth resolves the actor behind each request from a signed
// session cookie. The console only needs identity plumbing here; account
// management lives elsewhere.
package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/ride-ops-console/internal/models"
)

const CookieName = "ride_ops_session"

var ErrInvalidSession = errors.New("auth: invalid session")

type Claims struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	jwt.RegisteredClaims
}

// Manager signs and validates session tokens with an HMAC secret.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// IssueToken creates a signed session token for the actor.
func (m *Manager) IssueToken(actor models.Actor) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name:   actor.Name,
		Avatar: actor.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Issuer:    "ride-ops-console",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate parses a token and returns the authenticated actor.
func (m *Manager) Validate(tokenString string) (models.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return models.Actor{}, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Actor{}, ErrInvalidSession
	}
	return models.Actor{
		ID:            claims.Subject,
		Name:          claims.Name,
		AvatarURL:     claims.Avatar,
		Authenticated: true,
	}, nil
}

// ActorFromRequest resolves the request's actor. Any failure yields the
// unauthenticated zero actor; absence of a session is not an error.
func (m *Manager) ActorFromRequest(r *http.Request) models.Actor {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return models.Actor{}
	}
	actor, err := m.Validate(cookie.Value)
	if err != nil {
		return models.Actor{}
	}
	return actor
}

// SetCookie attaches the session token to the response.
func (m *Manager) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl.Seconds()),
	})
}
