// Package store provides job listing persistence. Job records are never removed, deletion
// only flips the status to deleted, and all read operations ignore deleted records.
// Backends are interchangeable: Memory, File (JSON), SQLite and Redis.
package store

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/umputun/jobboard/app/store/enums"
)

// defaults applied to optional fields on creation
const (
	DefaultExperience = "Fresher"
	DefaultSalary     = "Not disclosed"
)

// ErrNotFound returned for unknown ids and for soft-deleted records
var ErrNotFound = errors.New("job not found")

// Job is a listing record
type Job struct {
	ID               int64           `json:"id" yaml:"id"`
	Title            string          `json:"title" yaml:"title"`
	Company          string          `json:"company" yaml:"company"`
	Location         string          `json:"location" yaml:"location"`
	Type             enums.JobType   `json:"type" yaml:"type"`
	Experience       string          `json:"experience" yaml:"experience"`
	Salary           string          `json:"salary" yaml:"salary"`
	ApplyLink        string          `json:"applyLink" yaml:"applyLink"`
	ShortDescription string          `json:"shortDescription" yaml:"shortDescription"`
	FullDescription  string          `json:"fullDescription" yaml:"fullDescription"`
	PostedDate       time.Time       `json:"postedDate" yaml:"postedDate"`
	Status           enums.JobStatus `json:"status" yaml:"status"`
}

// IsActive reports whether the job is visible to the public
func (j Job) IsActive() bool { return j.Status == enums.JobStatusActive }

// JobInput is the explicit input schema for job creation
type JobInput struct {
	Title            string `json:"title" jsonschema:"minLength=1,description=job title"`
	Company          string `json:"company" jsonschema:"minLength=1"`
	Location         string `json:"location" jsonschema:"minLength=1"`
	Type             string `json:"type,omitempty" jsonschema:"enum=Full-time,enum=Part-time,enum=Remote,enum=Hybrid,enum=Internship,enum=Contract,enum=Freelance,default=Full-time"`
	Experience       string `json:"experience,omitempty" jsonschema:"default=Fresher,example=2-4 years"`
	Salary           string `json:"salary,omitempty" jsonschema:"default=Not disclosed"`
	ApplyLink        string `json:"applyLink,omitempty" jsonschema:"format=uri"`
	ShortDescription string `json:"shortDescription" jsonschema:"minLength=1"`
	FullDescription  string `json:"fullDescription" jsonschema:"minLength=1"`
}

// ValidationError reports rejected input, nothing is persisted when it is returned
type ValidationError struct {
	Fields []string // offending fields
	Msg    string   // optional explanation, used instead of the default message
}

func (e *ValidationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "required fields missing: " + strings.Join(e.Fields, ", ")
}

// Normalize trims all fields, checks required ones and fills defaults.
// Returns *ValidationError if a required field is empty or the apply link is not a http(s) URL.
func (in JobInput) Normalize() (JobInput, error) {
	res := JobInput{
		Title:            strings.TrimSpace(in.Title),
		Company:          strings.TrimSpace(in.Company),
		Location:         strings.TrimSpace(in.Location),
		Type:             strings.TrimSpace(in.Type),
		Experience:       strings.TrimSpace(in.Experience),
		Salary:           strings.TrimSpace(in.Salary),
		ApplyLink:        strings.TrimSpace(in.ApplyLink),
		ShortDescription: strings.TrimSpace(in.ShortDescription),
		FullDescription:  strings.TrimSpace(in.FullDescription),
	}

	var missing []string
	for _, f := range []struct{ name, val string }{
		{"title", res.Title}, {"company", res.Company}, {"location", res.Location},
		{"shortDescription", res.ShortDescription}, {"fullDescription", res.FullDescription},
	} {
		if f.val == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return JobInput{}, &ValidationError{Fields: missing}
	}

	if res.ApplyLink != "" {
		u, err := url.Parse(res.ApplyLink)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return JobInput{}, &ValidationError{Fields: []string{"applyLink"},
				Msg: fmt.Sprintf("apply link %q is not a valid http(s) URL", res.ApplyLink)}
		}
	}

	jt, err := enums.ParseJobType(res.Type)
	if err != nil {
		jt = enums.JobTypeFullTime
	}
	res.Type = jt.String()
	if res.Experience == "" {
		res.Experience = DefaultExperience
	}
	if res.Salary == "" {
		res.Salary = DefaultSalary
	}
	return res, nil
}

// newJob makes an active job from normalized input
func newJob(id int64, in JobInput, posted time.Time) Job {
	jt, err := enums.ParseJobType(in.Type)
	if err != nil {
		jt = enums.JobTypeFullTime
	}
	return Job{
		ID:               id,
		Title:            in.Title,
		Company:          in.Company,
		Location:         in.Location,
		Type:             jt,
		Experience:       in.Experience,
		Salary:           in.Salary,
		ApplyLink:        in.ApplyLink,
		ShortDescription: in.ShortDescription,
		FullDescription:  in.FullDescription,
		PostedDate:       posted,
		Status:           enums.JobStatusActive,
	}
}

// stamp returns the posting time, truncated to milliseconds so every backend round-trips it exactly
func stamp() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// nextID returns max id + 1, or 1 for an empty list. Deleted records count.
func nextID(jobs []Job) int64 {
	var maxID int64
	for _, j := range jobs {
		maxID = max(maxID, j.ID)
	}
	return maxID + 1
}

// activeNewestFirst returns a copy of active jobs ordered by descending id
func activeNewestFirst(jobs []Job) []Job {
	res := make([]Job, 0, len(jobs))
	for _, j := range jobs {
		if j.IsActive() {
			res = append(res, j)
		}
	}
	slices.SortFunc(res, func(a, b Job) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		default:
			return 0
		}
	})
	return res
}

func markDeleted(j Job) Job {
	j.Status = enums.JobStatusDeleted
	return j
}

func activate(j Job) Job {
	j.Status = enums.JobStatusActive
	return j
}
