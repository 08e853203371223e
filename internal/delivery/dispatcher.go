package delivery

import (
	"context"
	"fmt"
	"log"
	"time"
)

type Handler func(ctx context.Context, job *Job) error

// Dispatcher drains the delivery queue and routes each job to the handler
// registered for its kind. Failed jobs are re-enqueued with a backoff delay
// until their retry budget runs out; delivery is at-least-once.
type Dispatcher struct {
	queue        *Queue
	handlers     map[string]Handler
	stop         chan bool
	pollInterval time.Duration
}

func NewDispatcher(q *Queue) *Dispatcher {
	return &Dispatcher{
		queue:        q,
		handlers:     make(map[string]Handler),
		stop:         make(chan bool),
		pollInterval: time.Second,
	}
}

func (d *Dispatcher) RegisterHandler(kind string, handler Handler) {
	d.handlers[kind] = handler
}

func (d *Dispatcher) SetPollInterval(interval time.Duration) {
	d.pollInterval = interval
}

func (d *Dispatcher) Start(ctx context.Context) {
	log.Printf("Delivery dispatcher started")

	for {
		select {
		case <-d.stop:
			log.Printf("Delivery dispatcher stopped")
			return
		default:
			job, err := d.queue.Dequeue()
			if err != nil || job == nil {
				time.Sleep(d.pollInterval)
				continue
			}

			d.process(ctx, job)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, job *Job) {
	handler, exists := d.handlers[job.Kind]
	if !exists {
		log.Printf("Dropping delivery %s: no handler for kind %q", job.ID, job.Kind)
		return
	}

	if err := handler(ctx, job); err != nil {
		job.Attempts++
		if job.Attempts < job.MaxRetries {
			job.DeliverAt = time.Now().Add(time.Duration(job.Attempts) * 10 * time.Second)
			if err := d.queue.Enqueue(job); err != nil {
				log.Printf("Failed to re-enqueue delivery %s: %v", job.ID, err)
			}
			log.Printf("Delivery %s (%s) failed, will retry (%d/%d): %v", job.ID, job.Kind, job.Attempts, job.MaxRetries, err)
		} else {
			log.Printf("Delivery %s (%s) dropped after %d attempts: %v", job.ID, job.Kind, job.Attempts, err)
		}
		return
	}

	log.Printf("Delivery %s (%s) completed", job.ID, job.Kind)
}

func (d *Dispatcher) Stop() {
	d.stop <- true
}

// StringField extracts a required string field from a job payload.
func StringField(job *Job, key string) (string, error) {
	v, ok := job.Payload[key].(string)
	if !ok {
		return "", fmt.Errorf("delivery %s: missing %q field", job.ID, key)
	}
	return v, nil
}
