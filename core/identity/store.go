package identity

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultTTL = time.Hour

var (
	NowFunc = time.Now // mockable

	ErrNotFound    = errors.New("identity not found")
	ErrInvalidRole = errors.New("identity: invalid role")
)

// CookieJar reads and writes the cookies of one request/response pair.
// echo.Context implements it.
type CookieJar interface {
	Cookie(name string) (*http.Cookie, error)
	SetCookie(cookie *http.Cookie)
}

type StoreOptions struct {
	TTL    time.Duration // defaults to 1h
	Secure bool
	Path   string // defaults to "/"
}

// Store keeps the caller's identity in a short-lived cookie.
// It is immutable and safe for concurrent use.
type Store struct {
	codec  Codec
	ttl    time.Duration
	secure bool
	path   string
}

func NewStore(codec Codec, opts StoreOptions) *Store {
	s := &Store{
		codec:  codec,
		ttl:    opts.TTL,
		secure: opts.Secure,
		path:   opts.Path,
	}
	if s.ttl <= 0 {
		s.ttl = defaultTTL
	}
	if s.path == "" {
		s.path = "/"
	}
	return s
}

func (s *Store) Codec() Codec { return s.codec }

func (s *Store) newCookie(name, value string, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.path,
		Expires:  NowFunc().Add(s.ttl),
		MaxAge:   int(s.ttl.Seconds()),
		Secure:   s.secure,
		HttpOnly: httpOnly,
		SameSite: http.SameSiteStrictMode,
	}
}

// Persist writes the identity token cookie and its marker.
func (s *Store) Persist(jar CookieJar, ident Identity) error {
	if !ident.Role.Valid() {
		return ErrInvalidRole
	}
	token, err := s.codec.Encode(ident.ID)
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}
	jar.SetCookie(s.newCookie(ident.Role.CookieName(), token, true))
	jar.SetCookie(s.newCookie(ident.Role.MarkerName(), "true", false))
	return nil
}

// Recover reads back the identity persisted for role.
// Any failure (absent cookie, malformed token, bad encoding, empty ID) matches ErrNotFound.
func (s *Store) Recover(jar CookieJar, role Role) (Identity, error) {
	cookie, err := jar.Cookie(role.CookieName())
	if err != nil || cookie == nil || cookie.Value == "" {
		return Identity{}, ErrNotFound
	}
	id, err := s.codec.Decode(cookie.Value)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if id == "" {
		return Identity{}, ErrNotFound
	}
	return Identity{Role: role, ID: id}, nil
}

// Clear expires the identity cookies of role.
func (s *Store) Clear(jar CookieJar, role Role) {
	for _, name := range []string{role.CookieName(), role.MarkerName()} {
		c := s.newCookie(name, "", true)
		c.Expires = time.Unix(0, 0)
		c.MaxAge = -1
		jar.SetCookie(c)
	}
}
