package store

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed sample_jobs.yml
var sampleJobsData []byte

// SampleJobs returns the demo listings used to seed the memory store
func SampleJobs() ([]Job, error) {
	var jobs []Job
	if err := yaml.Unmarshal(sampleJobsData, &jobs); err != nil {
		return nil, fmt.Errorf("failed to parse sample jobs: %w", err)
	}
	for i := range jobs {
		if jobs[i].Status.String() == "" {
			jobs[i] = activate(jobs[i])
		}
	}
	return jobs, nil
}
