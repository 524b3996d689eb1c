package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	log "github.com/go-pkgz/lgr"
)

// DefaultTTL of an admin session
const DefaultTTL = 24 * time.Hour

// Manager issues, resolves and destroys admin sessions. The cookie value is "id.signature"
// where signature is hex hmac-sha256 of id with the server secret.
type Manager struct {
	auth   *Authenticator
	store  Store
	secret []byte
	ttl    time.Duration
}

// NewManager makes a session manager. Zero ttl means DefaultTTL.
func NewManager(auth *Authenticator, store Store, secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{auth: auth, store: store, secret: []byte(secret), ttl: ttl}
}

// TTL returns session lifetime
func (m *Manager) TTL() time.Duration { return m.ttl }

// Login authenticates the attempt and starts a new session.
// Returns the signed cookie value for the session.
func (m *Manager) Login(ctx context.Context, username, password, submittedCaptcha, expectedCaptcha string) (string, error) {
	st, err := m.auth.Login(username, password, submittedCaptcha, expectedCaptcha)
	if err != nil {
		return "", err
	}

	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	if err := m.store.Set(ctx, id, st, m.ttl); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	log.Printf("[INFO] admin %q logged in", st.Username)
	return id + "." + m.sign(id), nil
}

// Lookup resolves a cookie value to session state. Missing, forged or expired sessions
// resolve to Anonymous.
func (m *Manager) Lookup(ctx context.Context, cookie string) State {
	id, ok := m.verify(cookie)
	if !ok {
		return Anonymous
	}
	st, found, err := m.store.Get(ctx, id)
	if err != nil {
		log.Printf("[WARN] failed to load session: %v", err)
		return Anonymous
	}
	if !found || !st.Authenticated {
		return Anonymous
	}
	return st
}

// Logout destroys the session referenced by cookie. Invalid cookies are ignored.
func (m *Manager) Logout(ctx context.Context, cookie string) error {
	id, ok := m.verify(cookie)
	if !ok {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Cleanup drops expired sessions from the store
func (m *Manager) Cleanup(ctx context.Context) error {
	return m.store.Cleanup(ctx)
}

func (m *Manager) sign(id string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

// verify checks cookie signature and returns the session id
func (m *Manager) verify(cookie string) (string, bool) {
	id, sig, found := strings.Cut(cookie, ".")
	if !found || id == "" || sig == "" {
		return "", false
	}
	expected := m.sign(id)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return "", false
	}
	return id, true
}

func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
