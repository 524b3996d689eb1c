// Package query implements pagination and search over job snapshots. Functions are pure,
// they never modify the input slice and preserve its order.
package query

import (
	"strings"

	"github.com/umputun/jobboard/app/store"
)

// DefaultPageSize used when page size is not positive
const DefaultPageSize = 10

// Page is a single page of results
type Page struct {
	Items       []store.Job `json:"items"`
	CurrentPage int         `json:"currentPage"`
	TotalPages  int         `json:"totalPages"`
	Total       int         `json:"total"`
	HasNext     bool        `json:"hasNext"`
	HasPrev     bool        `json:"hasPrev"`
}

// Filters narrow search results, empty fields are ignored
type Filters struct {
	Location   string `json:"location,omitempty"`
	Experience string `json:"experience,omitempty"`
	Type       string `json:"type,omitempty"`
}

// IsEmpty reports whether no filter is set
func (f Filters) IsEmpty() bool {
	return strings.TrimSpace(f.Location) == "" && strings.TrimSpace(f.Experience) == "" &&
		strings.TrimSpace(f.Type) == ""
}

// Paginate returns the page-th (1-indexed) slice of jobs. The page is not clamped,
// a page outside of [1, TotalPages] gives empty items.
func Paginate(jobs []store.Job, page, pageSize int) Page {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	total := len(jobs)
	totalPages := (total + pageSize - 1) / pageSize

	res := Page{
		Items:       []store.Job{},
		CurrentPage: page,
		TotalPages:  totalPages,
		Total:       total,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
	if page < 1 || page > totalPages {
		return res
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, total)
	res.Items = append(res.Items, jobs[start:end]...)
	return res
}

// Search returns jobs matching text and all non-empty filters. Text is a case-insensitive
// substring of title, company, short or full description; location is a case-insensitive
// substring; experience and type are case-insensitive exact matches. Text is not trimmed,
// any non-empty value is matched literally.
func Search(jobs []store.Job, text string, f Filters) []store.Job {
	text = strings.ToLower(text)
	location := strings.ToLower(strings.TrimSpace(f.Location))
	experience := strings.TrimSpace(f.Experience)
	jobType := strings.TrimSpace(f.Type)

	res := make([]store.Job, 0, len(jobs))
	for _, j := range jobs {
		if text != "" && !containsAny(text, j.Title, j.Company, j.ShortDescription, j.FullDescription) {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(j.Location), location) {
			continue
		}
		if experience != "" && !strings.EqualFold(j.Experience, experience) {
			continue
		}
		if jobType != "" && !strings.EqualFold(j.Type.String(), jobType) {
			continue
		}
		res = append(res, j)
	}
	return res
}

// containsAny checks if lower-cased needle is a substring of any of the fields
func containsAny(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}
