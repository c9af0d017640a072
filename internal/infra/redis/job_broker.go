package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"interview-intel/internal/domain"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/adapter"
)

var _ adapter.JobBroker = (*JobBroker)(nil)

// JobBroker keeps embedding jobs in Redis:
//
//	{prefix}:job:{id}     job JSON
//	{prefix}:key:{key}    id of the live job holding a dedup key
//	{prefix}:score        hash id -> waiting score
//	{prefix}:{state}      sorted set of ids per state
//
// State moves run as Lua scripts so concurrent workers never claim the same job.
type JobBroker struct {
	cli    *redis.Client
	prefix string
}

func NewJobBroker(c *Client, prefix string) *JobBroker {
	return &JobBroker{cli: c.cli, prefix: prefix}
}

func (b *JobBroker) jobKey(id string) string { return b.prefix + ":job:" + id }
func (b *JobBroker) dedupKey(key string) string { return b.prefix + ":key:" + key }
func (b *JobBroker) scoreKey() string { return b.prefix + ":score" }
func (b *JobBroker) stateKey(s model.JobState) string { return b.prefix + ":" + string(s) }

// waitingScore orders by priority, then by creation time.
func waitingScore(j *model.EmbeddingJob) float64 {
	return float64(j.Priority)*1e13 + float64(j.CreatedAt.UnixMilli())
}

var luaAdd = redis.NewScript(`
local existing = redis.call("GET", KEYS[1])
if existing then
	return existing
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SET", KEYS[2], ARGV[2])
redis.call("HSET", KEYS[3], ARGV[1], ARGV[3])
redis.call("ZADD", KEYS[4], ARGV[3], ARGV[1])
return ""`)

func (b *JobBroker) Add(ctx context.Context, job *model.EmbeddingJob) (*model.EmbeddingJob, bool, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, false, err
	}
	score := strconv.FormatFloat(waitingScore(job), 'f', 0, 64)
	res, err := luaAdd.Run(ctx, b.cli,
		[]string{b.dedupKey(job.Key), b.jobKey(job.ID), b.scoreKey(), b.stateKey(model.JobStateWaiting)},
		job.ID, raw, score,
	).Text()
	if err != nil {
		return nil, false, err
	}
	if res == "" {
		return job, true, nil
	}
	existing, err := b.Get(ctx, res)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

var luaClaim = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
for _, id in ipairs(due) do
	redis.call("ZREM", KEYS[1], id)
	local score = redis.call("HGET", KEYS[4], id)
	if score then
		redis.call("ZADD", KEYS[2], score, id)
	end
end
local next = redis.call("ZRANGE", KEYS[2], 0, 0)
if #next == 0 then
	return ""
end
redis.call("ZREM", KEYS[2], next[1])
redis.call("ZADD", KEYS[3], ARGV[1], next[1])
return next[1]`)

func (b *JobBroker) ClaimNext(ctx context.Context, now time.Time) (*model.EmbeddingJob, error) {
	id, err := luaClaim.Run(ctx, b.cli,
		[]string{
			b.stateKey(model.JobStateDelayed),
			b.stateKey(model.JobStateWaiting),
			b.stateKey(model.JobStateActive),
			b.scoreKey(),
		},
		now.UnixMilli(),
	).Text()
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, domain.ErrNotFound
	}
	job, err := b.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	job.State = model.JobStateActive
	return job, nil
}

var luaUpdate = redis.NewScript(`
redis.call("SET", KEYS[1], ARGV[2])
for i = 4, 8 do
	redis.call("ZREM", KEYS[i], ARGV[1])
end
redis.call("ZADD", KEYS[3], ARGV[3], ARGV[1])
if ARGV[4] == "0" and redis.call("GET", KEYS[2]) == ARGV[1] then
	redis.call("DEL", KEYS[2])
end
return 1`)

func (b *JobBroker) Update(ctx context.Context, job *model.EmbeddingJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	var score float64
	switch job.State {
	case model.JobStateWaiting:
		score = waitingScore(job)
	case model.JobStateDelayed:
		score = float64(job.RunAt.UnixMilli())
	case model.JobStateActive:
		score = float64(time.Now().UnixMilli())
		if job.ProcessedAt != nil {
			score = float64(job.ProcessedAt.UnixMilli())
		}
	case model.JobStateCompleted, model.JobStateFailed:
		score = float64(time.Now().UnixMilli())
		if job.FinishedAt != nil {
			score = float64(job.FinishedAt.UnixMilli())
		}
	default:
		return fmt.Errorf("unknown job state %q", job.State)
	}
	live := "0"
	if job.Live() {
		live = "1"
	}
	return luaUpdate.Run(ctx, b.cli,
		[]string{
			b.jobKey(job.ID),
			b.dedupKey(job.Key),
			b.stateKey(job.State),
			b.stateKey(model.JobStateWaiting),
			b.stateKey(model.JobStateDelayed),
			b.stateKey(model.JobStateActive),
			b.stateKey(model.JobStateCompleted),
			b.stateKey(model.JobStateFailed),
		},
		job.ID, raw, strconv.FormatFloat(score, 'f', 0, 64), live,
	).Err()
}

func (b *JobBroker) Get(ctx context.Context, id string) (*model.EmbeddingJob, error) {
	raw, err := b.cli.Get(ctx, b.jobKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var job model.EmbeddingJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (b *JobBroker) Stalled(ctx context.Context, startedBefore time.Time) ([]*model.EmbeddingJob, error) {
	ids, err := b.cli.ZRangeByScore(ctx, b.stateKey(model.JobStateActive), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(startedBefore.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.EmbeddingJob, 0, len(ids))
	for _, id := range ids {
		job, err := b.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		job.State = model.JobStateActive
		out = append(out, job)
	}
	return out, nil
}

func (b *JobBroker) Counts(ctx context.Context) (model.QueueStats, error) {
	var cmds [5]*redis.IntCmd
	states := []model.JobState{
		model.JobStateWaiting, model.JobStateActive, model.JobStateCompleted,
		model.JobStateFailed, model.JobStateDelayed,
	}
	_, err := b.cli.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, s := range states {
			cmds[i] = p.ZCard(ctx, b.stateKey(s))
		}
		return nil
	})
	if err != nil {
		return model.QueueStats{}, err
	}
	return model.QueueStats{
		Waiting:   int(cmds[0].Val()),
		Active:    int(cmds[1].Val()),
		Completed: int(cmds[2].Val()),
		Failed:    int(cmds[3].Val()),
		Delayed:   int(cmds[4].Val()),
	}, nil
}

func (b *JobBroker) Prune(ctx context.Context, state model.JobState, keep int, olderThan time.Time) (int, error) {
	set := b.stateKey(state)
	victims := map[string]struct{}{}

	if keep >= 0 {
		ids, err := b.cli.ZRange(ctx, set, 0, int64(-keep-1)).Result()
		if err != nil {
			return 0, err
		}
		for _, id := range ids {
			victims[id] = struct{}{}
		}
	}
	if !olderThan.IsZero() {
		ids, err := b.cli.ZRangeByScore(ctx, set, &redis.ZRangeBy{
			Min: "-inf",
			Max: "(" + strconv.FormatInt(olderThan.UnixMilli(), 10),
		}).Result()
		if err != nil {
			return 0, err
		}
		for _, id := range ids {
			victims[id] = struct{}{}
		}
	}
	if len(victims) == 0 {
		return 0, nil
	}

	_, err := b.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for id := range victims {
			p.ZRem(ctx, set, id)
			p.HDel(ctx, b.scoreKey(), id)
			p.Del(ctx, b.jobKey(id))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(victims), nil
}
