package enums

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobType(t *testing.T) {
	tests := []struct {
		in      string
		want    JobType
		wantErr bool
	}{
		{"Full-time", JobTypeFullTime, false},
		{"full-time", JobTypeFullTime, false},
		{" Remote ", JobTypeRemote, false},
		{"INTERNSHIP", JobTypeInternship, false},
		{"Freelance", JobTypeFreelance, false},
		{"", JobType{}, true},
		{"permanent", JobType{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseJobType(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobType_DisplayNames(t *testing.T) {
	names := make([]string, 0, len(JobTypeValues))
	for _, v := range JobTypeValues {
		names = append(names, v.String())
		text, err := v.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, v.String(), string(text))
	}
	assert.Equal(t, []string{"Full-time", "Part-time", "Remote", "Hybrid", "Internship", "Contract", "Freelance"}, names)
	assert.Equal(t, "active", JobStatusActive.String())
	assert.Equal(t, "deleted", JobStatusDeleted.String())
}

func TestJobType_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Type JobType `json:"type"`
	}{Type: JobTypePartTime})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Part-time"}`, string(data))

	var res struct {
		Type   JobType   `json:"type"`
		Status JobStatus `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"type":"hybrid","status":"deleted"}`), &res))
	assert.Equal(t, JobTypeHybrid, res.Type)
	assert.Equal(t, JobStatusDeleted, res.Status)

	err = json.Unmarshal([]byte(`{"type":"bad"}`), &res)
	assert.Error(t, err)
}

func TestJobStatus_Scan(t *testing.T) {
	var s JobStatus
	require.NoError(t, s.Scan("active"))
	assert.Equal(t, JobStatusActive, s)
	require.NoError(t, s.Scan([]byte("deleted")))
	assert.Equal(t, JobStatusDeleted, s)
	assert.Error(t, s.Scan(nil))
	assert.Error(t, s.Scan(42))

	v, err := JobStatusActive.Value()
	require.NoError(t, err)
	assert.Equal(t, "active", v)
}

func TestJobType_Scan(t *testing.T) {
	var jt JobType
	require.NoError(t, jt.Scan("Contract"))
	assert.Equal(t, JobTypeContract, jt)
	assert.Error(t, jt.Scan("unknown"))
}
