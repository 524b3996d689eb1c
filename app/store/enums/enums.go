// Package enums provides type-safe enumeration types for job records.
//
// Each enum is a small struct with a display name and an ordinal value. The zero value is
// not a valid member, use the exported constants or the Parse functions.
//
// For each enum type the package provides:
//   - String() for the display representation
//   - Parse functions (e.g., ParseJobType) for case-insensitive string-to-enum conversion
//   - MarshalText/UnmarshalText for JSON and YAML
//   - Scan/Value for SQL storage, enums are stored as their display strings
//
// Usage:
//
//	t, err := enums.ParseJobType("part-time")
//	if err != nil {
//	    t = enums.JobTypeFullTime
//	}
//	fmt.Println(t) // "Part-time"
package enums

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// JobType is the employment type of a job listing
type JobType struct {
	name  string
	value int
}

// job types, in the order they are offered in the post-job form
var (
	JobTypeFullTime   = JobType{name: "Full-time", value: 1}
	JobTypePartTime   = JobType{name: "Part-time", value: 2}
	JobTypeRemote     = JobType{name: "Remote", value: 3}
	JobTypeHybrid     = JobType{name: "Hybrid", value: 4}
	JobTypeInternship = JobType{name: "Internship", value: 5}
	JobTypeContract   = JobType{name: "Contract", value: 6}
	JobTypeFreelance  = JobType{name: "Freelance", value: 7}
)

// JobTypeValues lists all job types
var JobTypeValues = []JobType{
	JobTypeFullTime, JobTypePartTime, JobTypeRemote, JobTypeHybrid,
	JobTypeInternship, JobTypeContract, JobTypeFreelance,
}

// ParseJobType converts a string to JobType, case-insensitive
func ParseJobType(v string) (JobType, error) {
	for _, t := range JobTypeValues {
		if strings.EqualFold(t.name, strings.TrimSpace(v)) {
			return t, nil
		}
	}
	return JobType{}, fmt.Errorf("invalid job type: %q", v)
}

// String returns the display name
func (e JobType) String() string { return e.name }

// IsZero reports whether the value is unset
func (e JobType) IsZero() bool { return e.value == 0 }

// MarshalText implements encoding.TextMarshaler
func (e JobType) MarshalText() ([]byte, error) {
	return []byte(e.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (e *JobType) UnmarshalText(text []byte) error {
	val, err := ParseJobType(string(text))
	if err != nil {
		return err
	}
	*e = val
	return nil
}

// Value implements driver.Valuer
func (e JobType) Value() (driver.Value, error) {
	return e.name, nil
}

// Scan implements sql.Scanner
func (e *JobType) Scan(value any) error {
	s, err := scanString(value)
	if err != nil {
		return fmt.Errorf("scan job type: %w", err)
	}
	return e.UnmarshalText([]byte(s))
}

// JobStatus is the lifecycle state of a job listing, only active -> deleted is allowed
type JobStatus struct {
	name  string
	value int
}

// job statuses
var (
	JobStatusActive  = JobStatus{name: "active", value: 1}
	JobStatusDeleted = JobStatus{name: "deleted", value: 2}
)

// JobStatusValues lists all job statuses
var JobStatusValues = []JobStatus{JobStatusActive, JobStatusDeleted}

// ParseJobStatus converts a string to JobStatus, case-insensitive
func ParseJobStatus(v string) (JobStatus, error) {
	for _, s := range JobStatusValues {
		if strings.EqualFold(s.name, strings.TrimSpace(v)) {
			return s, nil
		}
	}
	return JobStatus{}, fmt.Errorf("invalid job status: %q", v)
}

// String returns the status name
func (e JobStatus) String() string { return e.name }

// MarshalText implements encoding.TextMarshaler
func (e JobStatus) MarshalText() ([]byte, error) {
	return []byte(e.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (e *JobStatus) UnmarshalText(text []byte) error {
	val, err := ParseJobStatus(string(text))
	if err != nil {
		return err
	}
	*e = val
	return nil
}

// Value implements driver.Valuer
func (e JobStatus) Value() (driver.Value, error) {
	return e.name, nil
}

// Scan implements sql.Scanner
func (e *JobStatus) Scan(value any) error {
	s, err := scanString(value)
	if err != nil {
		return fmt.Errorf("scan job status: %w", err)
	}
	return e.UnmarshalText([]byte(s))
}

func scanString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("nil value")
	default:
		return "", fmt.Errorf("unsupported type %T", value)
	}
}
