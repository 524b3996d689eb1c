package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/invopop/jsonschema"

	"github.com/umputun/jobboard/app/query"
	"github.com/umputun/jobboard/app/store"
)

// APISearchResponse is the JSON response for /api/v1/search
type APISearchResponse struct {
	query.Page
	Query   string        `json:"query,omitempty"`
	Filters query.Filters `json:"filters"`
}

// handleAPIJobs returns a page of active jobs
func (s *Server) handleAPIJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListActive(r.Context())
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to list jobs")
		return
	}
	rest.RenderJSON(w, query.Paginate(jobs, pageParam(r), s.pageSize))
}

// handleAPISearch returns a page of active jobs matching text and filters
func (s *Server) handleAPISearch(w http.ResponseWriter, r *http.Request) {
	text, filters := searchParams(r)
	jobs, err := s.store.ListActive(r.Context())
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to list jobs")
		return
	}
	page := query.Paginate(query.Search(jobs, text, filters), pageParam(r), s.pageSize)
	rest.RenderJSON(w, APISearchResponse{Page: page, Query: text, Filters: filters})
}

// handleAPIJob returns a single active job
func (s *Server) handleAPIJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusNotFound, err, "job not found")
		return
	}
	job, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusNotFound, err, "job not found")
		return
	}
	if err != nil {
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to get job")
		return
	}
	rest.RenderJSON(w, job)
}

// handleAPICreateJob creates a job from JSON input, unknown fields are rejected
func (s *Server) handleAPICreateJob(w http.ResponseWriter, r *http.Request) {
	var in store.JobInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		verr := &store.ValidationError{Msg: fmt.Sprintf("invalid job input: %v", err)}
		rest.SendErrorJSON(w, r, log.Default(), http.StatusBadRequest, verr, verr.Msg)
		return
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		verr := &store.ValidationError{Msg: "invalid job input: unexpected data after json object"}
		rest.SendErrorJSON(w, r, log.Default(), http.StatusBadRequest, verr, verr.Msg)
		return
	}

	job, err := s.store.Create(r.Context(), in)
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			rest.SendErrorJSON(w, r, log.Default(), http.StatusBadRequest, err, verr.Error())
			return
		}
		rest.SendErrorJSON(w, r, log.Default(), http.StatusInternalServerError, err, "failed to create job")
		return
	}

	log.Printf("[INFO] job %d %q posted via api by %s", job.ID, job.Title, s.adminState(r).Username)
	if s.announcer != nil {
		if err := s.announcer.Announce(r.Context(), job); err != nil {
			log.Printf("[WARN] failed to announce job %d: %v", job.ID, err)
		}
	}
	w.Header().Set("Location", "/api/v1/jobs/"+strconv.FormatInt(job.ID, 10))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(job); err != nil {
		log.Printf("[WARN] failed to write response: %v", err)
	}
}

// handleAPIJobSchema returns JSON schema of the job input
func (s *Server) handleAPIJobSchema(w http.ResponseWriter, _ *http.Request) {
	rest.RenderJSON(w, jsonschema.Reflect(&store.JobInput{}))
}

// requireAdminAPI rejects requests without an admin session with 401 JSON error
func (s *Server) requireAdminAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.isAdmin(r) {
			rest.SendErrorJSON(w, r, log.Default(), http.StatusUnauthorized, errors.New("no admin session"), "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// searchParams extracts search text and filters from the query string
func searchParams(r *http.Request) (string, query.Filters) {
	q := r.URL.Query()
	return q.Get("q"), query.Filters{
		Location:   q.Get("location"),
		Experience: q.Get("experience"),
		Type:       q.Get("type"),
	}
}
