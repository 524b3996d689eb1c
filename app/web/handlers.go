package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"

	"github.com/umputun/jobboard/app/query"
	"github.com/umputun/jobboard/app/store"
	"github.com/umputun/jobboard/app/sysinfo"
)

// recentJobsLimit is the number of latest jobs shown on the admin dashboard
const recentJobsLimit = 5

// handleIndex renders a page of active jobs
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListActive(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to list jobs: %v", err)
		s.renderError(w, r, http.StatusInternalServerError, "Server Error", "Error loading jobs")
		return
	}

	page := query.Paginate(jobs, pageParam(r), s.pageSize)
	s.render(w, http.StatusOK, "index", s.listingData(r, "/", page))
}

// handleSearch renders a page of active jobs matching text and filters
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	text, filters := searchParams(r)
	jobs, err := s.store.ListActive(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to list jobs for search: %v", err)
		s.renderError(w, r, http.StatusInternalServerError, "Server Error", "Error searching jobs")
		return
	}

	page := query.Paginate(query.Search(jobs, text, filters), pageParam(r), s.pageSize)
	data := s.listingData(r, "/search", page)
	data.Title = "Search Jobs"
	data.Query = text
	data.Filters = filters
	data.IsSearch = true
	s.render(w, http.StatusOK, "index", data)
}

// listingData makes template data for a listing page with prev/next links
func (s *Server) listingData(r *http.Request, path string, page query.Page) TemplateData {
	data := TemplateData{
		Title:    "Latest Jobs",
		Page:     page,
		JobTypes: jobTypeNames(),
		Admin:    s.isAdmin(r),
	}
	if page.HasPrev {
		data.PrevURL = pageLink(path, r.URL.Query(), min(page.CurrentPage-1, max(page.TotalPages, 1)))
	}
	if page.HasNext {
		data.NextURL = pageLink(path, r.URL.Query(), max(page.CurrentPage+1, 1))
	}
	return data
}

// handleJob renders a single active job
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.renderError(w, r, http.StatusNotFound, "Job Not Found", "The job you are looking for does not exist.")
		return
	}

	job, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.renderError(w, r, http.StatusNotFound, "Job Not Found", "The job you are looking for does not exist.")
		return
	}
	if err != nil {
		log.Printf("[ERROR] failed to get job %d: %v", id, err)
		s.renderError(w, r, http.StatusInternalServerError, "Server Error", "Error loading job details")
		return
	}

	s.render(w, http.StatusOK, "job", TemplateData{Title: job.Title + " - " + job.Company, Job: job, Admin: s.isAdmin(r)})
}

// handleWhatsApp redirects to the community group
func (s *Server) handleWhatsApp(w http.ResponseWriter, r *http.Request) {
	if s.whatsAppURL == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	http.Redirect(w, r, s.whatsAppURL, http.StatusFound)
}

// handleHealth reports service liveness
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	rest.RenderJSON(w, struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}{Status: "OK", Timestamp: time.Now().UTC()})
}

// handleInfoPage makes a handler for a static informational page
func (s *Server) handleInfoPage(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, "info", TemplateData{Title: title, Message: "Coming soon.", Admin: s.isAdmin(r)})
	}
}

// handleNotFound renders 404 page for unknown routes
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.renderError(w, r, http.StatusNotFound, "Page Not Found", "The page you are looking for does not exist.")
}

// handleDashboard renders the admin dashboard
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListActive(r.Context())
	if err != nil {
		log.Printf("[ERROR] failed to load dashboard: %v", err)
		s.renderError(w, r, http.StatusInternalServerError, "Server Error", "Error loading dashboard")
		return
	}

	st := s.adminState(r)
	s.render(w, http.StatusOK, "dashboard", TemplateData{
		Title:       "Admin Dashboard",
		Admin:       true,
		Username:    st.Username,
		TotalActive: len(jobs),
		RecentJobs:  jobs[:min(len(jobs), recentJobsLimit)],
		Success:     r.URL.Query().Get("success"),
		Error:       r.URL.Query().Get("error"),
	})
}

// handlePostJobForm renders an empty job form
func (s *Server) handlePostJobForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "post-job", s.postJobData(r, store.JobInput{}))
}

// handlePostJob creates a job from the submitted form
func (s *Server) handlePostJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	in := store.JobInput{
		Title:            r.FormValue("title"),
		Company:          r.FormValue("company"),
		Location:         r.FormValue("location"),
		Type:             r.FormValue("type"),
		Experience:       r.FormValue("experience"),
		Salary:           r.FormValue("salary"),
		ApplyLink:        r.FormValue("applyLink"),
		ShortDescription: r.FormValue("shortDescription"),
		FullDescription:  r.FormValue("fullDescription"),
	}

	job, err := s.store.Create(r.Context(), in)
	if err != nil {
		data := s.postJobData(r, in)
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			data.Error = validationMessage(verr)
			s.render(w, http.StatusBadRequest, "post-job", data)
			return
		}
		log.Printf("[ERROR] failed to create job: %v", err)
		data.Error = "Error posting job, please try again"
		s.render(w, http.StatusInternalServerError, "post-job", data)
		return
	}

	log.Printf("[INFO] job %d %q posted by %s", job.ID, job.Title, s.adminState(r).Username)
	if s.announcer != nil {
		if err := s.announcer.Announce(r.Context(), job); err != nil {
			log.Printf("[WARN] failed to announce job %d: %v", job.ID, err)
		}
	}

	data := s.postJobData(r, store.JobInput{})
	data.Success = "Job posted successfully! You can post another job or go back to dashboard."
	data.Job = job
	s.render(w, http.StatusOK, "post-job", data)
}

func (s *Server) postJobData(r *http.Request, form store.JobInput) TemplateData {
	return TemplateData{
		Title:    "Post New Job",
		Admin:    true,
		Username: s.adminState(r).Username,
		Form:     form,
		JobTypes: jobTypeNames(),
	}
}

// validationMessage makes a user facing message for rejected job input
func validationMessage(verr *store.ValidationError) string {
	if verr.Msg != "" {
		return verr.Msg
	}
	return "Please fill all required fields (Title, Company, Location, and both descriptions)"
}

// handleDeleteJob soft-deletes a job and returns to the dashboard with a flash message
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	flash := func(key, msg string) {
		http.Redirect(w, r, "/admin/dashboard?"+url.Values{key: {msg}}.Encode(), http.StatusSeeOther)
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		flash("error", "Job not found")
		return
	}

	err = s.store.SoftDelete(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		flash("error", "Job not found")
	case err != nil:
		log.Printf("[ERROR] failed to delete job %d: %v", id, err)
		flash("error", "Error deleting job")
	default:
		log.Printf("[INFO] job %d deleted by %s", id, s.adminState(r).Username)
		flash("success", "Job deleted successfully!")
	}
}

// statusResponse is the admin status report
type statusResponse struct {
	Version    string        `json:"version"`
	Store      string        `json:"store"`
	ActiveJobs int           `json:"activeJobs"`
	Uptime     string        `json:"uptime"`
	Host       *sysinfo.Info `json:"host,omitempty"`
}

// handleStatus reports store and host state for the admin
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListActive(r.Context())
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to list jobs")
		return
	}

	resp := statusResponse{
		Version:    s.version,
		Store:      s.store.String(),
		ActiveJobs: len(jobs),
		Uptime:     sysinfo.Uptime(s.startedAt),
	}
	if s.sysInfo != nil {
		info := s.sysInfo.Collect()
		resp.Host = &info
	}
	rest.RenderJSON(w, resp)
}
