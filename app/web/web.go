// Package web implements the job board web server: public listing pages, admin panel and JSON API
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/didip/tollbooth/v8/limiter"
	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"
	"github.com/robfig/cron/v3"

	"github.com/umputun/jobboard/app/query"
	"github.com/umputun/jobboard/app/session"
	"github.com/umputun/jobboard/app/store"
	"github.com/umputun/jobboard/app/store/enums"
	"github.com/umputun/jobboard/app/sysinfo"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// JobStore defines job persistence used by the server
type JobStore interface {
	Create(ctx context.Context, in store.JobInput) (store.Job, error)
	ListActive(ctx context.Context) ([]store.Job, error)
	Get(ctx context.Context, id int64) (store.Job, error)
	SoftDelete(ctx context.Context, id int64) error
	String() string
}

// Sessions defines admin session management
type Sessions interface {
	Login(ctx context.Context, username, password, submittedCaptcha, expectedCaptcha string) (string, error)
	Lookup(ctx context.Context, cookie string) session.State
	Logout(ctx context.Context, cookie string) error
	Cleanup(ctx context.Context) error
	TTL() time.Duration
}

// Announcer is notified about every new job
type Announcer interface {
	Announce(ctx context.Context, job store.Job) error
}

// Config holds server configuration
type Config struct {
	Store         JobStore
	Sessions      Sessions
	Announcer     Announcer          // optional
	SysInfo       *sysinfo.Collector // optional, host metrics for the admin status
	PageSize      int                // jobs per page, query.DefaultPageSize if not set
	SiteURL       string             // public site url
	WhatsAppURL   string             // community group link for /whatsapp
	Version       string
	LoginBurst    int    // login attempts allowed per IP before throttling, default 5
	PruneSchedule string // cron spec for expired sessions cleanup, default "@every 10m"
}

// Server represents the web server
type Server struct {
	store         JobStore
	sessions      Sessions
	announcer     Announcer
	sysInfo       *sysinfo.Collector
	templates     map[string]*template.Template
	pageSize      int
	siteURL       string
	whatsAppURL   string
	version       string
	loginBurst    int
	pruneSchedule string
	startedAt     time.Time
	csrf          *http.CrossOriginProtection // csrf protection for POST endpoints
}

// TemplateData holds data for templates
type TemplateData struct {
	Title       string
	Version     string
	CurrentYear int
	Admin       bool   // admin session is active
	Username    string // admin username
	Error       string
	Success     string

	// listing pages
	Page     query.Page
	Query    string
	Filters  query.Filters
	IsSearch bool
	PrevURL  string
	NextURL  string
	JobTypes []string

	// job detail
	Job store.Job

	// admin pages
	Captcha     string
	LoginName   string // entered username, kept on failed login
	Form        store.JobInput
	TotalActive int
	RecentJobs  []store.Job

	// error and info pages
	Message string
}

// New creates a new web server
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("web server initialization failed: job store is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("web server initialization failed: session manager is required")
	}

	s := &Server{
		store:         cfg.Store,
		sessions:      cfg.Sessions,
		announcer:     cfg.Announcer,
		sysInfo:       cfg.SysInfo,
		pageSize:      cfg.PageSize,
		siteURL:       cfg.SiteURL,
		whatsAppURL:   cfg.WhatsAppURL,
		version:       cfg.Version,
		loginBurst:    cfg.LoginBurst,
		pruneSchedule: cfg.PruneSchedule,
		startedAt:     time.Now(),
		csrf:          http.NewCrossOriginProtection(),
	}
	if s.pageSize < 1 {
		s.pageSize = query.DefaultPageSize
	}
	if s.loginBurst < 1 {
		s.loginBurst = 5
	}
	if s.pruneSchedule == "" {
		s.pruneSchedule = "@every 10m"
	}

	templates, err := s.parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("web server initialization failed: failed to parse HTML templates: %w", err)
	}
	s.templates = templates
	return s, nil
}

// Run starts the web server and the session cleanup schedule, blocks until ctx is canceled
func (s *Server) Run(ctx context.Context, address string) error {
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(s.pruneSchedule, func() { s.pruneSessions(ctx) }); err != nil {
		return fmt.Errorf("invalid session cleanup schedule %q: %w", s.pruneSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:              address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] failed to shutdown server: %v", err)
		}
	}()

	log.Printf("[INFO] starting web server on %s, store %s", address, s.store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server failed: %w", err)
	}
	return nil
}

func (s *Server) pruneSessions(ctx context.Context) {
	if err := s.sessions.Cleanup(ctx); err != nil {
		log.Printf("[WARN] failed to cleanup sessions: %v", err)
		return
	}
	log.Printf("[DEBUG] expired sessions cleaned")
}

// routes returns the http.Handler with all routes configured
func (s *Server) routes() http.Handler {
	router := routegroup.New(http.NewServeMux())

	// global middleware - applied to all routes
	router.Use(
		rest.RealIP,
		rest.Recoverer(log.Default()),
		rest.Throttle(1000),
		rest.AppInfo("jobboard", "umputun", s.version),
		rest.Ping,
		rest.SizeLimit(64*1024), // 64KB max request size
		logger.New(logger.Log(log.Default()), logger.Prefix("[DEBUG]")).Handler,
	)

	// public pages
	router.HandleFunc("GET /{$}", s.handleIndex)
	router.HandleFunc("GET /search", s.handleSearch)
	router.HandleFunc("GET /job/{id}", s.handleJob)
	router.HandleFunc("GET /whatsapp", s.handleWhatsApp)
	router.HandleFunc("GET /health", s.handleHealth)
	router.HandleFunc("GET /privacy-policy", s.handleInfoPage("Privacy Policy"))
	router.HandleFunc("GET /terms", s.handleInfoPage("Terms of Service"))

	// admin panel
	router.Mount("/admin").Route(func(admin *routegroup.Bundle) {
		admin.Use(rest.NoCache)
		admin.HandleFunc("GET /login", s.handleLoginForm)
		admin.With(s.csrf.Handler, tollbooth.HTTPMiddleware(s.loginLimiter())).HandleFunc("POST /login", s.handleLogin)
		admin.HandleFunc("GET /logout", s.handleLogout)

		admin.Group().Route(func(gated *routegroup.Bundle) {
			gated.Use(s.requireAdmin)
			gated.HandleFunc("GET /dashboard", s.handleDashboard)
			gated.HandleFunc("GET /post-job", s.handlePostJobForm)
			gated.With(s.csrf.Handler).HandleFunc("POST /post-job", s.handlePostJob)
			gated.With(s.csrf.Handler).HandleFunc("POST /delete-job/{id}", s.handleDeleteJob)
			gated.HandleFunc("GET /status", s.handleStatus)
		})
	})

	// JSON API, posting requires admin session
	router.Mount("/api/v1").Route(func(api *routegroup.Bundle) {
		api.Use(rest.NoCache)
		api.HandleFunc("GET /jobs", s.handleAPIJobs)
		api.With(s.csrf.Handler, s.requireAdminAPI).HandleFunc("POST /jobs", s.handleAPICreateJob)
		api.HandleFunc("GET /jobs/{id}", s.handleAPIJob)
		api.HandleFunc("GET /search", s.handleAPISearch)
		api.HandleFunc("GET /schema/job", s.handleAPIJobSchema)
	})

	// static files with proper error handling
	fsys, err := fs.Sub(staticFS, "static")
	if err != nil {
		log.Printf("[ERROR] failed to create static file system: %v", err)
		router.Handle("GET /static/", http.FileServer(http.FS(staticFS)))
	} else {
		router.HandleFiles("/static/", http.FS(fsys))
	}

	// everything else is not found
	router.NotFoundHandler(s.handleNotFound)

	return router
}

// loginLimiter allows loginBurst attempts per IP, then one more every 12 seconds
func (s *Server) loginLimiter() *limiter.Limiter {
	lmt := tollbooth.NewLimiter(5.0/60.0, &limiter.ExpirableOptions{DefaultExpirationTTL: time.Hour})
	lmt.SetBurst(s.loginBurst)
	lmt.SetIPLookup(limiter.IPLookup{Name: "RemoteAddr"})
	lmt.SetMessage("Too many login attempts, please try again later")
	return lmt
}

// render renders a page template with the given status code
func (s *Server) render(w http.ResponseWriter, status int, page string, data TemplateData) {
	tmpl, ok := s.templates[page]
	if !ok {
		log.Printf("[WARN] template %s not found", page)
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}

	data.Version = s.version
	data.CurrentYear = time.Now().Year()

	buf := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(buf, "base", data); err != nil {
		log.Printf("[WARN] failed to execute template %s: %v", page, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// renderError renders the error page
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, title, msg string) {
	s.render(w, status, "error", TemplateData{Title: title, Message: msg, Admin: s.isAdmin(r)})
}

// pages maps page name to its template file, every page is parsed together with base.html
var pages = map[string]string{
	"index":     "templates/index.html",
	"job":       "templates/job.html",
	"error":     "templates/error.html",
	"info":      "templates/info.html",
	"login":     "templates/login.html",
	"dashboard": "templates/dashboard.html",
	"post-job":  "templates/post-job.html",
}

// parseTemplates parses all page templates
func (s *Server) parseTemplates() (map[string]*template.Template, error) {
	funcMap := template.FuncMap{
		"humanDate": humanDate,
		"isoDate":   func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
		"truncate":  truncate,
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		tmpl, err := template.New("base.html").Funcs(funcMap).ParseFS(templatesFS, "templates/base.html", file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		templates[name] = tmpl
	}
	return templates, nil
}

// template helper functions

// humanDate formats posting date relative to now: "Today", "N days ago" within a week,
// otherwise "2 Jan 2006"
func humanDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	days := int(time.Since(t).Abs().Hours() / 24)
	switch {
	case days < 1:
		return "Today"
	case days == 1:
		return "1 day ago"
	case days <= 7:
		return strconv.Itoa(days) + " days ago"
	default:
		return t.Format("2 Jan 2006")
	}
}

func truncate(str string, n int) string {
	runes := []rune(str)
	if len(runes) <= n {
		return str
	}
	return string(runes[:n]) + "..."
}

// jobTypeNames lists job types for filter and form selectors
func jobTypeNames() []string {
	res := make([]string, 0, len(enums.JobTypeValues))
	for _, v := range enums.JobTypeValues {
		res = append(res, v.String())
	}
	return res
}

// pageParam returns the 1-based page from the query, invalid or missing values give 1
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// pageLink makes a link to the given page keeping the other query parameters
func pageLink(path string, q url.Values, page int) string {
	params := url.Values{}
	for k, v := range q {
		if k != "page" && len(v) > 0 && v[0] != "" {
			params.Set(k, v[0])
		}
	}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}
