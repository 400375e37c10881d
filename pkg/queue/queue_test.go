package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"FinCast/pkg/logger"
)

type payload struct {
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
}

func TestParsePayload(t *testing.T) {
	raw := json.RawMessage(`{"user_id":4,"name":"x"}`)
	p, err := ParsePayload[payload](raw)
	if err != nil || p.UserID != 4 || p.Name != "x" {
		t.Fatalf("raw = %+v, %v", p, err)
	}
	p, err = ParsePayload[payload](map[string]interface{}{"user_id": 5})
	if err != nil || p.UserID != 5 {
		t.Fatalf("map = %+v, %v", p, err)
	}
	if _, err := ParsePayload[payload](42); err == nil {
		t.Fatalf("expected error for int payload")
	}
}

func TestRetryDelayDoubles(t *testing.T) {
	base := time.Second
	if retryDelay(base, 1) != time.Second || retryDelay(base, 3) != 4*time.Second {
		t.Fatalf("unexpected backoff")
	}
	if retryDelay(base, 50) != retryDelay(base, 10) {
		t.Fatalf("backoff not capped")
	}
}

type flakyJob struct {
	mu       sync.Mutex
	failures int
	calls    int
	done     chan payload
}

func (j *flakyJob) Name() string { return "flaky" }
func (j *flakyJob) Type() string { return "flaky" }
func (j *flakyJob) Handle(_ context.Context, raw interface{}) error {
	j.mu.Lock()
	j.calls++
	fail := j.calls <= j.failures
	j.mu.Unlock()
	if fail {
		return errors.New("transient")
	}
	p, err := ParsePayload[payload](raw)
	if err != nil {
		return err
	}
	j.done <- *p
	return nil
}

func TestLocalQueueRetriesThenSucceeds(t *testing.T) {
	q := NewLocalQueue(logger.Nop(), QueueConfig{Workers: 2, RetryLimit: 3, RetryDelay: time.Millisecond}, 4)
	job := &flakyJob{failures: 2, done: make(chan payload, 1)}
	q.RegisterJob(job)
	if err := q.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	if _, err := q.Enqueue(context.Background(), "flaky", payload{UserID: 9}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case p := <-job.done:
		if p.UserID != 9 {
			t.Fatalf("payload = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("job never succeeded")
	}
}

func TestLocalQueueDeadLetters(t *testing.T) {
	q := NewLocalQueue(logger.Nop(), QueueConfig{RetryLimit: 1, RetryDelay: time.Millisecond}, 4)
	job := &flakyJob{failures: 100, done: make(chan payload, 1)}
	q.RegisterJob(job)
	_ = q.Start(context.Background())
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	_, _ = q.Enqueue(context.Background(), "flaky", payload{UserID: 1})
	deadline := time.Now().Add(2 * time.Second)
	for len(q.DeadLetters()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("message never dead-lettered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := q.DeadLetters()[0].Attempts; got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
}

type notifiedJob struct {
	flakyJob
	gaveUp chan error
}

func (j *notifiedJob) DeadLetter(_ context.Context, _ interface{}, err error) { j.gaveUp <- err }

func TestLocalQueueNotifiesDeadLetterOnce(t *testing.T) {
	q := NewLocalQueue(logger.Nop(), QueueConfig{RetryLimit: 2, RetryDelay: time.Millisecond}, 4)
	job := &notifiedJob{flakyJob: flakyJob{failures: 100}, gaveUp: make(chan error, 4)}
	q.RegisterJob(job)
	_ = q.Start(context.Background())
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	_, _ = q.Enqueue(context.Background(), "flaky", payload{UserID: 1})
	select {
	case err := <-job.gaveUp:
		if err == nil || err.Error() != "transient" {
			t.Fatalf("dead letter err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("DeadLetter never called")
	}
	job.mu.Lock()
	calls := job.calls
	job.mu.Unlock()
	if calls != 3 {
		t.Fatalf("calls before giving up = %d, want 3", calls)
	}
	time.Sleep(20 * time.Millisecond)
	if n := len(job.gaveUp); n != 0 {
		t.Fatalf("DeadLetter called %d more times", n)
	}
}

func TestEnqueueUnknownType(t *testing.T) {
	q := NewLocalQueue(logger.Nop(), QueueConfig{}, 1)
	if _, err := q.Enqueue(context.Background(), "nope", nil); err == nil {
		t.Fatalf("expected error for unregistered type")
	}
}
