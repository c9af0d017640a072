package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"interview-intel/internal/domain"
)

type JobState string

const (
	JobStateWaiting   JobState = "waiting"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateDelayed   JobState = "delayed"
)

type JobKind string

const (
	JobKindNextPending   JobKind = "next_pending"
	JobKindSpecificPosts JobKind = "specific_posts"
)

const (
	DefaultBatchSize   = 100
	DefaultJobPriority = 1
	// Explicit post lists jump ahead of scheduled batches.
	SpecificPostsPriority = 0
)

// JobSpec is the caller's request for an embedding job.
type JobSpec struct {
	BatchSize *int     `json:"batchSize,omitempty"`
	PostIDs   []string `json:"postIds,omitempty"`
	Priority  *int     `json:"priority,omitempty"`
}

type JobResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// EmbeddingJob is a queued unit of embedding work.
type EmbeddingJob struct {
	ID          string     `json:"id"`
	Key         string     `json:"key"`
	Kind        JobKind    `json:"kind"`
	BatchSize   int        `json:"batch_size"`
	PostIDs     []string   `json:"post_ids,omitempty"`
	Priority    int        `json:"priority"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	State       JobState   `json:"state"`
	Result      *JobResult `json:"result,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	RunAt       time.Time  `json:"run_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// NewEmbeddingJob validates spec and derives kind, priority and dedup key.
// A job naming posts is keyed by its sorted id set so identical requests
// collapse; a batch job gets a fresh key per enqueue.
func NewEmbeddingJob(id string, spec JobSpec, maxAttempts int, now time.Time) (*EmbeddingJob, error) {
	batch := DefaultBatchSize
	if spec.BatchSize != nil {
		if *spec.BatchSize <= 0 {
			return nil, domain.NewInvalidInput("batchSize", "must be positive")
		}
		batch = *spec.BatchSize
	}
	prio := DefaultJobPriority
	if spec.Priority != nil {
		if *spec.Priority < 0 {
			return nil, domain.NewInvalidInput("priority", "must not be negative")
		}
		prio = *spec.Priority
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	job := &EmbeddingJob{
		ID:          id,
		BatchSize:   batch,
		Priority:    prio,
		MaxAttempts: maxAttempts,
		State:       JobStateWaiting,
		CreatedAt:   now,
		RunAt:       now,
	}

	ids := normalizeIDs(spec.PostIDs)
	if len(ids) > 0 {
		job.Kind = JobKindSpecificPosts
		job.PostIDs = ids
		job.Priority = SpecificPostsPriority
		job.Key = "posts:" + strings.Join(ids, ",")
	} else {
		job.Kind = JobKindNextPending
		job.Key = fmt.Sprintf("pending:%d", now.UnixNano())
	}
	return job, nil
}

func normalizeIDs(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Live reports whether the job still owns its dedup key.
func (j *EmbeddingJob) Live() bool {
	switch j.State {
	case JobStateWaiting, JobStateActive, JobStateDelayed:
		return true
	}
	return false
}

type QueueStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Delayed   int `json:"delayed"`
}
