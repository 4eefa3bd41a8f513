// Package session issues the signed session token handed out at login and
// guards the role-specific views with it.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MohamedNusaif/Loan-Management/internal/user/entity"
)

// CookieName carries the session token for browser clients.
const CookieName = "session"

var (
	ErrNoToken      = errors.New("no session token")
	ErrInvalidToken = errors.New("invalid session token")
)

// Claims is the session payload: the public user view plus the rotation flag.
type Claims struct {
	Email            string      `json:"email"`
	FirstName        string      `json:"firstName"`
	LastName         string      `json:"lastName"`
	Role             entity.Role `json:"role"`
	NICNumber        string      `json:"nicNumber,omitempty"`
	Phone            string      `json:"phone,omitempty"`
	RotationRequired bool        `json:"rst,omitempty"`
	jwt.RegisteredClaims
}

// User rebuilds the public view carried by the token.
func (c *Claims) User() entity.PublicView {
	return entity.PublicView{
		ID:        c.Subject,
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		UserType:  c.Role,
		NICNumber: c.NICNumber,
		Phone:     c.Phone,
	}
}

type Config struct {
	Secret string
	TTL    time.Duration
	Issuer string
	// Secure marks the cookie Secure (HTTPS only).
	Secure bool
}

// Manager signs and verifies HS256 session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	secure bool
	now    func() time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("session: secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 8 * time.Hour
	}
	return &Manager{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		secure: cfg.Secure,
		now:    time.Now,
	}, nil
}

// Issue signs a token for u. The returned time is the expiry.
func (m *Manager) Issue(u *entity.User) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := Claims{
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Role:             u.UserType,
		NICNumber:        u.NICNumber,
		Phone:            u.Phone,
		RotationRequired: u.MustResetPassword,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies signature, issuer and expiry.
func (m *Manager) Parse(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// FromRequest reads the session cookie, falling back to a bearer token.
func (m *Manager) FromRequest(r *http.Request) (*Claims, error) {
	var raw string
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		raw = c.Value
	} else if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		raw = strings.TrimSpace(auth[7:])
	}
	if raw == "" {
		return nil, ErrNoToken
	}
	return m.Parse(raw)
}

func (m *Manager) SetCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(exp.Sub(m.now()).Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Start issues a token for u and sets the cookie.
func (m *Manager) Start(w http.ResponseWriter, u *entity.User) error {
	tok, exp, err := m.Issue(u)
	if err != nil {
		return err
	}
	m.SetCookie(w, tok, exp)
	return nil
}
