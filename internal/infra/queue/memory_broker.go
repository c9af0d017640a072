package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/adapter"
)

var _ adapter.JobBroker = (*MemoryBroker)(nil)

// MemoryBroker is a process-local JobBroker for dev runs and tests.
type MemoryBroker struct {
	mu   sync.Mutex
	jobs map[string]*model.EmbeddingJob
	keys map[string]string // dedup key -> live job id
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		jobs: make(map[string]*model.EmbeddingJob),
		keys: make(map[string]string),
	}
}

func clone(j *model.EmbeddingJob) *model.EmbeddingJob {
	c := *j
	c.PostIDs = append([]string(nil), j.PostIDs...)
	if j.Result != nil {
		r := *j.Result
		c.Result = &r
	}
	return &c
}

func (b *MemoryBroker) Add(_ context.Context, job *model.EmbeddingJob) (*model.EmbeddingJob, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id, ok := b.keys[job.Key]; ok {
		return clone(b.jobs[id]), false, nil
	}
	b.jobs[job.ID] = clone(job)
	b.keys[job.Key] = job.ID
	return job, true, nil
}

func (b *MemoryBroker) ClaimNext(_ context.Context, now time.Time) (*model.EmbeddingJob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var best *model.EmbeddingJob
	for _, j := range b.jobs {
		if j.State == model.JobStateDelayed && !j.RunAt.After(now) {
			j.State = model.JobStateWaiting
		}
		if j.State != model.JobStateWaiting {
			continue
		}
		if best == nil || less(j, best) {
			best = j
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	best.State = model.JobStateActive
	return clone(best), nil
}

func less(a, b *model.EmbeddingJob) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (b *MemoryBroker) Update(_ context.Context, job *model.EmbeddingJob) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	b.jobs[job.ID] = clone(job)
	if !job.Live() && b.keys[job.Key] == job.ID {
		delete(b.keys, job.Key)
	}
	return nil
}

func (b *MemoryBroker) Get(_ context.Context, id string) (*model.EmbeddingJob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	j, ok := b.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(j), nil
}

func (b *MemoryBroker) Stalled(_ context.Context, startedBefore time.Time) ([]*model.EmbeddingJob, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*model.EmbeddingJob
	for _, j := range b.jobs {
		if j.State != model.JobStateActive {
			continue
		}
		started := j.CreatedAt
		if j.ProcessedAt != nil {
			started = *j.ProcessedAt
		}
		if started.Before(startedBefore) {
			out = append(out, clone(j))
		}
	}
	sort.Slice(out, func(i, k int) bool { return less(out[i], out[k]) })
	return out, nil
}

func (b *MemoryBroker) Counts(_ context.Context) (model.QueueStats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var s model.QueueStats
	for _, j := range b.jobs {
		switch j.State {
		case model.JobStateWaiting:
			s.Waiting++
		case model.JobStateActive:
			s.Active++
		case model.JobStateCompleted:
			s.Completed++
		case model.JobStateFailed:
			s.Failed++
		case model.JobStateDelayed:
			s.Delayed++
		}
	}
	return s, nil
}

func (b *MemoryBroker) Prune(_ context.Context, state model.JobState, keep int, olderThan time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var finished []*model.EmbeddingJob
	for _, j := range b.jobs {
		if j.State == state {
			finished = append(finished, j)
		}
	}
	// newest first
	sort.Slice(finished, func(i, k int) bool {
		return finishedAt(finished[i]).After(finishedAt(finished[k]))
	})

	removed := 0
	for i, j := range finished {
		tooMany := keep >= 0 && i >= keep
		tooOld := !olderThan.IsZero() && finishedAt(j).Before(olderThan)
		if tooMany || tooOld {
			delete(b.jobs, j.ID)
			removed++
		}
	}
	return removed, nil
}

func finishedAt(j *model.EmbeddingJob) time.Time {
	if j.FinishedAt != nil {
		return *j.FinishedAt
	}
	return j.CreatedAt
}
