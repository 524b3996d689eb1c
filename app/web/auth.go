package web

import (
	"errors"
	"net/http"

	log "github.com/go-pkgz/lgr"

	"github.com/umputun/jobboard/app/captcha"
	"github.com/umputun/jobboard/app/session"
)

const sessionCookie = "jobboard-admin"

// handleLoginForm displays the login form with a fresh captcha, logged in admin goes to the dashboard
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if s.isAdmin(r) {
		http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
		return
	}
	s.renderLogin(w, http.StatusOK, "", "")
}

// handleLogin processes the login form submission
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	username := r.FormValue("username")
	cookie, err := s.sessions.Login(r.Context(), username, r.FormValue("password"),
		r.FormValue("captcha"), r.FormValue("captchaHidden"))
	switch {
	case errors.Is(err, session.ErrCaptchaMismatch):
		s.renderLogin(w, http.StatusUnauthorized, "Invalid CAPTCHA. Please try again.", username)
		return
	case errors.Is(err, session.ErrInvalidCredentials):
		log.Printf("[WARN] failed admin login for %q from %s", username, r.RemoteAddr)
		s.renderLogin(w, http.StatusUnauthorized, "Invalid username or password", username)
		return
	case err != nil:
		log.Printf("[ERROR] login failed: %v", err)
		s.renderLogin(w, http.StatusInternalServerError, "Login failed, please try again later", username)
		return
	}

	// drop the previous session if any, the new one replaces it
	if old, cerr := r.Cookie(sessionCookie); cerr == nil {
		if err := s.sessions.Logout(r.Context(), old.Value); err != nil {
			log.Printf("[WARN] failed to drop previous session: %v", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    cookie,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(r),
	})
	http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
}

// handleLogout destroys the session, clears the cookie and redirects to login
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if err := s.sessions.Logout(r.Context(), c.Value); err != nil {
			log.Printf("[WARN] failed to logout: %v", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // delete cookie
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   isSecure(r),
	})
	http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
}

// renderLogin renders the login form with a new captcha challenge
func (s *Server) renderLogin(w http.ResponseWriter, status int, errMsg, username string) {
	s.render(w, status, "login", TemplateData{
		Title:     "Admin Login",
		Error:     errMsg,
		Captcha:   captcha.Generate(),
		LoginName: username,
	})
}

// requireAdmin passes only requests with an active admin session, others are sent to login
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.isAdmin(r) {
			http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// adminState returns session state of the request
func (s *Server) adminState(r *http.Request) session.State {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return session.Anonymous
	}
	return s.sessions.Lookup(r.Context(), c.Value)
}

func (s *Server) isAdmin(r *http.Request) bool {
	return s.adminState(r).Authenticated
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
