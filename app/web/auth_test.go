package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/jobboard/app/session"
)

func TestServer_LoginForm(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/admin/login", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Admin Login")

	shown := regexp.MustCompile(`id="captcha-box">([A-Za-z0-9]{6})<`).FindStringSubmatch(body)
	require.Len(t, shown, 2, "captcha challenge rendered")
	hidden := regexp.MustCompile(`name="captchaHidden" value="([A-Za-z0-9]{6})"`).FindStringSubmatch(body)
	require.Len(t, hidden, 2)
	assert.Equal(t, shown[1], hidden[1])

	t.Run("logged in admin goes to dashboard", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin/login", http.NoBody)
		req.AddCookie(adminCookie(t, h))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))
	})
}

func TestServer_Login(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.routes()

	t.Run("success", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, loginForm(testAdmin, testPassword, "10.0.0.1:1234"))
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin/dashboard", rec.Header().Get("Location"))

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		c := cookies[0]
		assert.Equal(t, sessionCookie, c.Name)
		assert.NotEmpty(t, c.Value)
		assert.True(t, c.HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, 3600, c.MaxAge)
		assert.False(t, c.Secure)
	})

	t.Run("secure cookie behind https proxy", func(t *testing.T) {
		req := loginForm(testAdmin, testPassword, "10.0.0.2:1234")
		req.Header.Set("X-Forwarded-Proto", "https")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Len(t, rec.Result().Cookies(), 1)
		assert.True(t, rec.Result().Cookies()[0].Secure)
	})

	t.Run("wrong captcha", func(t *testing.T) {
		form := url.Values{"username": {testAdmin}, "password": {testPassword}, "captcha": {"abc123"}, "captchaHidden": {"ABC123"}}
		req := httptest.NewRequest("POST", "/admin/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "10.0.0.3:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid CAPTCHA. Please try again.")
		assert.Contains(t, rec.Body.String(), `value="admin"`, "username kept")
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("missing captcha", func(t *testing.T) {
		form := url.Values{"username": {testAdmin}, "password": {testPassword}}
		req := httptest.NewRequest("POST", "/admin/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "10.0.0.4:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid CAPTCHA. Please try again.")
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, loginForm(testAdmin, "bad", "10.0.0.5:1234"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid username or password")
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("wrong username", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, loginForm("root", testPassword, "10.0.0.6:1234"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid username or password")
	})

	t.Run("cross-site post rejected", func(t *testing.T) {
		req := loginForm(testAdmin, testPassword, "10.0.0.7:1234")
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("session error", func(t *testing.T) {
		srv, _ := testServer(t, func(c *Config) { c.Sessions = &failingSessions{err: errors.New("redis down")} })
		rec := httptest.NewRecorder()
		srv.routes().ServeHTTP(rec, loginForm(testAdmin, testPassword, "10.0.0.8:1234"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Login failed, please try again later")
	})
}

func TestServer_LoginRotatesSession(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.routes()
	first := adminCookie(t, h)

	req := loginForm(testAdmin, testPassword, "10.0.1.1:1234")
	req.AddCookie(first)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, rec.Result().Cookies(), 1)
	second := rec.Result().Cookies()[0]
	assert.NotEqual(t, first.Value, second.Value)

	assert.Equal(t, http.StatusSeeOther, dashboardStatus(h, first), "previous session dropped")
	assert.Equal(t, http.StatusOK, dashboardStatus(h, second))
}

func TestServer_LoginRateLimit(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.routes()

	var limited *httptest.ResponseRecorder
	for range 10 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, loginForm(testAdmin, "bad", "10.20.30.40:1234"))
		if rec.Code == http.StatusTooManyRequests {
			limited = rec
			break
		}
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	require.NotNil(t, limited, "login attempts throttled")
	assert.Contains(t, limited.Body.String(), "Too many login attempts")

	// other address is not affected
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, loginForm(testAdmin, testPassword, "10.20.30.41:1234"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestServer_Logout(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.routes()
	cookie := adminCookie(t, h)
	require.Equal(t, http.StatusOK, dashboardStatus(h, cookie))

	req := httptest.NewRequest("GET", "/admin/logout", http.NoBody)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/login", rec.Header().Get("Location"))
	require.Len(t, rec.Result().Cookies(), 1)
	assert.Equal(t, sessionCookie, rec.Result().Cookies()[0].Name)
	assert.Empty(t, rec.Result().Cookies()[0].Value)
	assert.Negative(t, rec.Result().Cookies()[0].MaxAge)

	assert.Equal(t, http.StatusSeeOther, dashboardStatus(h, cookie), "old cookie no longer valid")

	t.Run("without session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", "/admin/logout", http.NoBody))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin/login", rec.Header().Get("Location"))
	})
}

func TestServer_AdminRoutesRequireSession(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.routes()

	tests := []struct {
		method, path string
	}{
		{"GET", "/admin/dashboard"},
		{"GET", "/admin/post-job"},
		{"POST", "/admin/post-job"},
		{"POST", "/admin/delete-job/1"},
		{"GET", "/admin/status"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, http.NoBody))
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/admin/login", rec.Header().Get("Location"))
		})
	}

	t.Run("forged cookie", func(t *testing.T) {
		assert.Equal(t, http.StatusSeeOther, dashboardStatus(h, &http.Cookie{Name: sessionCookie, Value: "abc.def"}))
	})

	t.Run("expired session", func(t *testing.T) {
		auth := session.NewAuthenticator(session.Credentials{Username: testAdmin, Password: testPassword})
		srv, _ := testServer(t, func(c *Config) {
			c.Sessions = session.NewManager(auth, session.NewMemoryStore(time.Millisecond, 0), "secret", time.Millisecond)
		})
		h := srv.routes()
		cookie := adminCookie(t, h)
		time.Sleep(10 * time.Millisecond)
		assert.Equal(t, http.StatusSeeOther, dashboardStatus(h, cookie))
	})
}

// dashboardStatus returns response code of the dashboard request made with the given cookie
func dashboardStatus(h http.Handler, c *http.Cookie) int {
	req := httptest.NewRequest("GET", "/admin/dashboard", http.NoBody)
	req.AddCookie(c)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

// failingSessions fails login with a non-auth error
type failingSessions struct {
	Sessions
	err error
}

func (f *failingSessions) Login(_ context.Context, _, _, _, _ string) (string, error) { return "", f.err }
func (f *failingSessions) Lookup(context.Context, string) session.State         { return session.Anonymous }
