package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	jobsKey  = "deliveries"
	queueKey = "delivery_queue"
)

// Queue schedules jobs in a Redis sorted set scored by deliver-at time, so
// staggered sends fall due in order without the dispatcher tracking timers.
type Queue struct {
	client *redis.Client
	ctx    context.Context
}

func NewQueue(redisAddr string) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Queue{
		client: client,
		ctx:    ctx,
	}, nil
}

func (q *Queue) Enqueue(job *Job) error {
	jobJSON, err := job.ToJSON()
	if err != nil {
		return err
	}

	if err := q.client.HSet(q.ctx, jobsKey, job.ID, jobJSON).Err(); err != nil {
		return err
	}

	return q.client.ZAdd(q.ctx, queueKey, redis.Z{
		Score:  float64(job.DeliverAt.UnixMilli()),
		Member: job.ID,
	}).Err()
}

// Dequeue pops the next job that is due, or nil when nothing is ready.
func (q *Queue) Dequeue() (*Job, error) {
	maxScore := float64(time.Now().UnixMilli())

	results, err := q.client.ZRangeByScore(q.ctx, queueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", maxScore),
		Count: 1,
	}).Result()

	if err != nil || len(results) == 0 {
		return nil, err
	}

	jobID := results[0]

	q.client.ZRem(q.ctx, queueKey, jobID)

	jobJSON, err := q.client.HGet(q.ctx, jobsKey, jobID).Result()
	if err != nil {
		return nil, err
	}
	q.client.HDel(q.ctx, jobsKey, jobID)

	return JobFromJSON(jobJSON)
}

func (q *Queue) Depth() (int, error) {
	n, err := q.client.ZCard(q.ctx, queueKey).Result()
	return int(n), err
}

func (q *Queue) Close() error {
	return q.client.Close()
}
