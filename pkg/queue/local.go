package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"FinCast/pkg/logger"
)

// LocalQueue runs jobs on in-process workers. It has the same retry
// semantics as RedisQueue but loses pending messages on shutdown.
type LocalQueue struct {
	logger *logger.Logger
	config QueueConfig
	ch     chan Message

	mu      sync.RWMutex
	jobs    map[string]Job
	dead    []Message
	running bool
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewLocalQueue creates an in-process queue holding up to size pending messages.
func NewLocalQueue(lgr *logger.Logger, config QueueConfig, size int) *LocalQueue {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if size <= 0 {
		size = 256
	}
	return &LocalQueue{
		logger: lgr,
		config: config,
		ch:     make(chan Message, size),
		jobs:   make(map[string]Job),
	}
}

// RegisterJob routes messages of job.Type() to job.
func (q *LocalQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.Type()] = job
}

// Start launches the workers.
func (q *LocalQueue) Start(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("queue already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.running = true
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.logger.Info("local queue started", logger.Int("workers", q.config.Workers))
	return nil
}

// Stop cancels workers and waits for them until ctx expires.
func (q *LocalQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		return nil
	}
}

// Enqueue schedules payload for the job registered under msgType.
func (q *LocalQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	q.mu.RLock()
	_, known := q.jobs[msgType]
	q.mu.RUnlock()
	if !known {
		return "", fmt.Errorf("no job registered for type: %s", msgType)
	}
	msg, err := newMessage(uuid.NewString(), msgType, payload)
	if err != nil {
		return "", err
	}
	select {
	case q.ch <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// DeadLetters returns messages that exhausted their retries.
func (q *LocalQueue) DeadLetters() []Message {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]Message(nil), q.dead...)
}

func (q *LocalQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-q.ch:
			q.handle(ctx, msg)
		}
	}
}

func (q *LocalQueue) handle(ctx context.Context, msg Message) {
	q.mu.RLock()
	job := q.jobs[msg.Type]
	q.mu.RUnlock()

	err := job.Handle(ctx, msg.Payload)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	q.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Error(err))
	if msg.Attempts >= q.config.RetryLimit {
		q.mu.Lock()
		q.dead = append(q.dead, msg)
		q.mu.Unlock()
		if dl, ok := job.(DeadLetterer); ok {
			dl.DeadLetter(ctx, msg.Payload, err)
		}
		return
	}
	msg.Attempts++
	delay := retryDelay(q.config.RetryDelay, msg.Attempts)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		select {
		case <-ctx.Done():
		case <-time.After(delay):
			select {
			case q.ch <- msg:
			case <-ctx.Done():
			}
		}
	}()
}
