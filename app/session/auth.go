// Package session implements admin authentication and server-side session state.
// A single admin account is configured at startup, login checks the captcha first and
// credentials second, and a successful login makes a session kept in a Store and referenced
// by a signed cookie value.
package session

import (
	"crypto/subtle"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/umputun/jobboard/app/captcha"
)

var (
	// ErrCaptchaMismatch returned when the submitted captcha doesn't match the challenge
	ErrCaptchaMismatch = errors.New("invalid captcha")
	// ErrInvalidCredentials returned when username or password don't match the configured admin
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Credentials of the admin account. PasswordHash (bcrypt) takes precedence over Password.
type Credentials struct {
	Username     string
	Password     string
	PasswordHash string
}

// State of a session
type State struct {
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Anonymous is the state of a request without a valid session
var Anonymous = State{}

// Authenticator checks login attempts against the configured credentials
type Authenticator struct {
	creds Credentials
}

// NewAuthenticator makes an authenticator for the given admin credentials
func NewAuthenticator(creds Credentials) *Authenticator {
	return &Authenticator{creds: creds}
}

// Login validates captcha, then credentials. Returns authenticated state on success,
// ErrCaptchaMismatch or ErrInvalidCredentials otherwise.
func (a *Authenticator) Login(username, password, submittedCaptcha, expectedCaptcha string) (State, error) {
	if !captcha.Validate(submittedCaptcha, expectedCaptcha) {
		return Anonymous, ErrCaptchaMismatch
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.creds.Username)) == 1
	passOK := a.checkPassword(password)
	if !userOK || !passOK || a.creds.Username == "" {
		return Anonymous, ErrInvalidCredentials
	}
	return State{Authenticated: true, Username: a.creds.Username, CreatedAt: time.Now()}, nil
}

// HashedPassword reports whether a bcrypt hash is configured
func (a *Authenticator) HashedPassword() bool { return a.creds.PasswordHash != "" }

func (a *Authenticator) checkPassword(password string) bool {
	if a.creds.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.creds.PasswordHash), []byte(password)) == nil
	}
	if a.creds.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(a.creds.Password)) == 1
}
