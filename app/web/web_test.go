package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/jobboard/app/session"
	"github.com/umputun/jobboard/app/store"
)

const (
	testAdmin    = "admin"
	testPassword = "secret"
)

// testServer makes a server on top of a memory store seeded with sample jobs
func testServer(t *testing.T, opts ...func(*Config)) (*Server, *store.Memory) {
	t.Helper()
	jobs, err := store.SampleJobs()
	require.NoError(t, err)
	st := store.NewMemory(jobs...)

	auth := session.NewAuthenticator(session.Credentials{Username: testAdmin, Password: testPassword})
	cfg := Config{
		Store:       st,
		Sessions:    session.NewManager(auth, session.NewMemoryStore(time.Hour, 0), "test-secret", time.Hour),
		WhatsAppURL: "https://chat.whatsapp.com/test",
		Version:     "test",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv, err := New(cfg)
	require.NoError(t, err)
	return srv, st
}

// loginForm makes a login POST request, the captcha answer matches the hidden challenge
func loginForm(user, pass, remoteAddr string) *http.Request {
	form := url.Values{"username": {user}, "password": {pass}, "captcha": {"Ab12Cd"}, "captchaHidden": {"Ab12Cd"}}
	req := httptest.NewRequest("POST", "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Sec-Fetch-Site", "same-origin") // CSRF protection
	req.RemoteAddr = remoteAddr
	return req
}

// adminCookie logs in and returns the session cookie
func adminCookie(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, loginForm(testAdmin, testPassword, "10.10.10.10:1234"))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

// failingStore fails every operation
type failingStore struct{ err error }

func (f failingStore) Create(context.Context, store.JobInput) (store.Job, error) { return store.Job{}, f.err }
func (f failingStore) ListActive(context.Context) ([]store.Job, error)         { return nil, f.err }
func (f failingStore) Get(context.Context, int64) (store.Job, error)           { return store.Job{}, f.err }
func (f failingStore) SoftDelete(context.Context, int64) error                 { return f.err }
func (f failingStore) String() string                                          { return "failing" }

// announcerMock records announced jobs
type announcerMock struct {
	mu   sync.Mutex
	jobs []store.Job
	err  error
}

func (a *announcerMock) Announce(_ context.Context, job store.Job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs = append(a.jobs, job)
	return a.err
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{Store: store.NewMemory()})
	require.Error(t, err)

	srv, _ := testServer(t)
	assert.Equal(t, 10, srv.pageSize)
	assert.Equal(t, 5, srv.loginBurst)
	assert.Equal(t, "@every 10m", srv.pruneSchedule)
	assert.Len(t, srv.templates, len(pages))
}

func TestServer_Run(t *testing.T) {
	srv, _ := testServer(t, func(c *Config) { c.PruneSchedule = "@every 1s" })

	lc := net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/ping", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_RunBadSchedule(t *testing.T) {
	srv, _ := testServer(t, func(c *Config) { c.PruneSchedule = "bad spec" })
	err := srv.Run(context.Background(), "127.0.0.1:0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session cleanup schedule")
}

func TestServer_pruneSessions(t *testing.T) {
	mgr := &sessionsMock{cleanupErr: errors.New("boom")}
	srv, _ := testServer(t, func(c *Config) { c.Sessions = mgr })
	srv.pruneSessions(context.Background())
	assert.Equal(t, 1, mgr.cleanups)
}

// sessionsMock wraps a real manager and counts cleanups
type sessionsMock struct {
	Sessions
	cleanups   int
	cleanupErr error
}

func (m *sessionsMock) Cleanup(context.Context) error {
	m.cleanups++
	return m.cleanupErr
}

func TestHumanDate(t *testing.T) {
	now := time.Now()
	assert.Empty(t, humanDate(time.Time{}))
	assert.Equal(t, "Today", humanDate(now.Add(-time.Hour)))
	assert.Equal(t, "1 day ago", humanDate(now.Add(-25*time.Hour)))
	assert.Equal(t, "3 days ago", humanDate(now.Add(-3*24*time.Hour-time.Hour)))
	assert.Equal(t, "7 days ago", humanDate(now.Add(-7*24*time.Hour-time.Hour)))
	old := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "15 Jan 2024", humanDate(old))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	assert.Equal(t, "привет...", truncate("приветмир", 6))
}

func TestPageLink(t *testing.T) {
	q := url.Values{"q": {"go dev"}, "location": {""}, "page": {"3"}, "type": {"Remote"}}
	assert.Equal(t, "/search?page=2&q=go+dev&type=Remote", pageLink("/search", q, 2))
	assert.Equal(t, "/search?q=go+dev&type=Remote", pageLink("/search", q, 1))
	assert.Equal(t, "/", pageLink("/", url.Values{}, 1))
	assert.Equal(t, "/?page=4", pageLink("/", url.Values{"page": {"3"}}, 4))
}

func TestPageParam(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"/", 1}, {"/?page=2", 2}, {"/?page=0", 1}, {"/?page=-3", 1}, {"/?page=abc", 1}, {"/?page=99", 99},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, pageParam(httptest.NewRequest("GET", tt.url, http.NoBody)))
		})
	}
}
