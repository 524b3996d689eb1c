package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	log "github.com/go-pkgz/lgr"
	"github.com/redis/go-redis/v9"
)

// maxTxRetries limits optimistic transaction retries on concurrent modification
const maxTxRetries = 20

// getter is satisfied by both *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Redis stores every job as a JSON document. Keys (with prefix p):
//
//	p:job:seq     - last assigned id
//	p:job:<id>    - job document
//	p:jobs:active - sorted set of active ids, score is the id
//
// Create and SoftDelete are WATCH/MULTI transactions, so id assignment is max+1 and
// status updates are never lost.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redis with the given options and checks the connection
func NewRedisStore(ctx context.Context, opts *redis.Options, prefix string) (*Redis, error) {
	if prefix == "" {
		prefix = "jobboard"
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", opts.Addr, err)
	}
	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) seqKey() string         { return r.prefix + ":job:seq" }
func (r *Redis) activeKey() string      { return r.prefix + ":jobs:active" }
func (r *Redis) jobKey(id int64) string { return r.prefix + ":job:" + strconv.FormatInt(id, 10) }

// Create validates input and stores a new active job
func (r *Redis) Create(ctx context.Context, in JobInput) (Job, error) {
	norm, err := in.Normalize()
	if err != nil {
		return Job{}, err
	}

	var job Job
	txf := func(tx *redis.Tx) error {
		last, err := tx.Get(ctx, r.seqKey()).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to read job sequence: %w", err)
		}
		job = newJob(last+1, norm, stamp())
		doc, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.seqKey(), job.ID, 0)
			pipe.Set(ctx, r.jobKey(job.ID), doc, 0)
			pipe.ZAdd(ctx, r.activeKey(), redis.Z{Score: float64(job.ID), Member: job.ID})
			return nil
		})
		return err
	}

	if err := r.watch(ctx, txf, r.seqKey()); err != nil {
		return Job{}, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// ListActive returns active jobs, newest first
func (r *Redis) ListActive(ctx context.Context) ([]Job, error) {
	ids, err := r.client.ZRevRange(ctx, r.activeKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active ids: %w", err)
	}
	if len(ids) == 0 {
		return []Job{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.prefix+":job:"+id)
	}
	docs, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}

	res := make([]Job, 0, len(docs))
	for i, d := range docs {
		s, ok := d.(string)
		if !ok {
			log.Printf("[WARN] job document %s is missing", keys[i])
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(s), &job); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", keys[i], err)
		}
		if job.IsActive() {
			res = append(res, job)
		}
	}
	return res, nil
}

// Get returns an active job by id
func (r *Redis) Get(ctx context.Context, id int64) (Job, error) {
	job, err := r.load(ctx, r.client, id)
	if err != nil {
		return Job{}, err
	}
	if !job.IsActive() {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// SoftDelete marks an active job as deleted
func (r *Redis) SoftDelete(ctx context.Context, id int64) error {
	key := r.jobKey(id)
	txf := func(tx *redis.Tx) error {
		job, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !job.IsActive() {
			return ErrNotFound
		}
		doc, err := json.Marshal(markDeleted(job))
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, doc, 0)
			pipe.ZRem(ctx, r.activeKey(), id)
			return nil
		})
		return err
	}

	err := r.watch(ctx, txf, key)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete job %d: %w", id, err)
	}
	return nil
}

// Close closes the redis client
func (r *Redis) Close() error {
	return r.client.Close()
}

// String returns store kind and location
func (r *Redis) String() string { return "redis:" + r.client.Options().Addr + "/" + r.prefix }

// load reads a job document regardless of status
func (r *Redis) load(ctx context.Context, c getter, id int64) (Job, error) {
	data, err := c.Get(ctx, r.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("failed to get job %d: %w", id, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("failed to parse job %d: %w", id, err)
	}
	return job, nil
}

// watch runs optimistic transaction txf, retrying when the watched keys change underneath
func (r *Redis) watch(ctx context.Context, txf func(tx *redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := r.client.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("transaction on %v retried %d times: %w", keys, maxTxRetries, redis.TxFailedErr)
}
