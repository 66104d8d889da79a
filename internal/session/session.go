// Package session keeps UI login state in redis behind an opaque cookie.
package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/noticeboard/internal/models"
	"github.com/noah-isme/noticeboard/pkg/cache"
)

const (
	DefaultCookieName = "nb_session"
	DefaultTTL        = 24 * time.Hour

	idLength = 32
)

// Flash levels understood by the templates.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// ErrNoSession is returned by Update when the request carries no session cookie.
var ErrNoSession = errors.New("session: no session cookie")

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Data is the payload stored per session.
type Data struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username"`
	IsSuperuser bool      `json:"is_superuser"`
	PageSize    int       `json:"page_size,omitempty"`
	CSRFToken   string    `json:"csrf_token"`
	Flashes     []Flash   `json:"flashes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Principal returns the acting user of the session.
func (d *Data) Principal() models.Principal {
	return models.Principal{UserID: d.UserID, Username: d.Username, IsSuperuser: d.IsSuperuser}
}

// AddFlash queues a message for the next page.
func (d *Data) AddFlash(level, message string) {
	d.Flashes = append(d.Flashes, Flash{Level: level, Message: message})
}

// PopFlashes returns and clears the queued messages.
func (d *Data) PopFlashes() []Flash {
	flashes := d.Flashes
	d.Flashes = nil
	return flashes
}

// ValidCSRF compares a submitted form token against the session token.
func (d *Data) ValidCSRF(submitted string) bool {
	if d.CSRFToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(d.CSRFToken), []byte(submitted)) == 1
}

// Backend persists serialized sessions.
type Backend interface {
	Load(ctx context.Context, id string) ([]byte, error)
	Save(ctx context.Context, id string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Options configures the cookie.
type Options struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// Store manages session lifecycle.
type Store struct {
	backend Backend
	opts    Options
}

// NewStore creates a store; zero options fall back to the defaults.
func NewStore(backend Backend, opts Options) *Store {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &Store{backend: backend, opts: opts}
}

// NewRedisStore creates a store backed by redis.
func NewRedisStore(client redis.UniversalClient, opts Options) *Store {
	return NewStore(&RedisBackend{client: client}, opts)
}

// Create stores data under a fresh id and sets the cookie.
func (s *Store) Create(ctx context.Context, w http.ResponseWriter, data *Data) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", fmt.Errorf("session create: %w", err)
	}
	data.CreatedAt = time.Now().UTC()
	if data.CSRFToken == "" {
		if data.CSRFToken, err = generateID(); err != nil {
			return "", fmt.Errorf("session csrf token: %w", err)
		}
	}
	if err := s.save(ctx, id, data); err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.opts.TTL.Seconds()),
	})
	return id, nil
}

// Get loads the session named by the request cookie. A missing cookie or an
// expired session yields (nil, nil).
func (s *Store) Get(ctx context.Context, r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(s.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	payload, err := s.backend.Load(ctx, cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}
	if payload == nil {
		return nil, nil
	}
	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("session unmarshal: %w", err)
	}
	return &data, nil
}

// Update rewrites the session in place and refreshes its TTL.
func (s *Store) Update(ctx context.Context, r *http.Request, data *Data) error {
	cookie, err := r.Cookie(s.opts.CookieName)
	if err != nil || cookie.Value == "" {
		return ErrNoSession
	}
	return s.save(ctx, cookie.Value, data)
}

// Destroy removes the session and expires the cookie.
func (s *Store) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(s.opts.CookieName)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.Secure,
		MaxAge:   -1,
	})
	if err := s.backend.Delete(ctx, cookie.Value); err != nil {
		return fmt.Errorf("session destroy: %w", err)
	}
	return nil
}

func (s *Store) save(ctx context.Context, id string, data *Data) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}
	if err := s.backend.Save(ctx, id, payload, s.opts.TTL); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	return nil
}

// RedisBackend stores sessions under the application key namespace.
type RedisBackend struct {
	client redis.UniversalClient
}

func sessionKey(id string) string {
	return cache.Key("session", id)
}

// Load implements Backend; a missing key yields nil.
func (b *RedisBackend) Load(ctx context.Context, id string) ([]byte, error) {
	payload, err := b.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return payload, err
}

// Save implements Backend.
func (b *RedisBackend) Save(ctx context.Context, id string, payload []byte, ttl time.Duration) error {
	return b.client.Set(ctx, sessionKey(id), payload, ttl).Err()
}

// Delete implements Backend.
func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	return b.client.Del(ctx, sessionKey(id)).Err()
}

func generateID() (string, error) {
	b := make([]byte, idLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
