package model

import (
	"time"
)

// JobState is the lifecycle state of a fetch run
type JobState string

const (
	JobRunning   JobState = "Running"
	JobCompleted JobState = "Completed"
	JobFailed    JobState = "Failed"
)

// Terminal reports whether the state can no longer change
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobStatus represents the status of a fetch run
type JobStatus struct {
	JobID        string            `json:"job_id"`
	JobType      string            `json:"job_type"`
	Kind         DataKind          `json:"kind"`
	State        JobState          `json:"status"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      *time.Time        `json:"end_time,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy safe to hand to readers
func (s *JobStatus) Clone() JobStatus {
	out := *s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	if s.Metadata != nil {
		out.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
