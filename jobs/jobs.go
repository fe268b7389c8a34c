package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/wfunc/getroasted/logger"
)

// TypeBattleCompleted carries a models.BattleResult.
const TypeBattleCompleted = "battle:completed"

var ErrNoHandler = errors.New("jobs: no handler registered")

type Task struct {
	Type    string
	Payload []byte
}

type Handler func(ctx context.Context, t Task) error

// Client 任务投递
type Client interface {
	Enqueue(ctx context.Context, t Task) (string, error)
	Close() error
}

// Server 任务消费
type Server interface {
	Register(taskType string, h Handler)
	Run(ctx context.Context) error
}

// NewTask marshals payload as JSON.
func NewTask(taskType string, payload interface{}) (Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("jobs: marshal %s: %w", taskType, err)
	}
	return Task{Type: taskType, Payload: data}, nil
}

// Inline runs tasks in-process on their own goroutine. It serves as both Client and
// Server when no Redis is configured.
type Inline struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	seq      int
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

var (
	_ Client = (*Inline)(nil)
	_ Server = (*Inline)(nil)
)

func NewInline() *Inline {
	ctx, cancel := context.WithCancel(context.Background())
	return &Inline{
		handlers: make(map[string]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (q *Inline) Register(taskType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = h
}

func (q *Inline) Enqueue(ctx context.Context, t Task) (string, error) {
	if t.Type == "" {
		return "", errors.New("jobs: task type is required")
	}
	q.mu.Lock()
	h, ok := q.handlers[t.Type]
	q.seq++
	id := fmt.Sprintf("inline-%d", q.seq)
	q.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoHandler, t.Type)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := h(q.ctx, t); err != nil {
			logger.Log.Errorf("jobs: task %s (%s) failed: %v", id, t.Type, err)
		}
	}()
	return id, nil
}

// Wait blocks until every enqueued task has returned.
func (q *Inline) Wait() {
	q.wg.Wait()
}

// Run blocks until ctx is done, then waits for in-flight tasks.
func (q *Inline) Run(ctx context.Context) error {
	<-ctx.Done()
	q.wg.Wait()
	return nil
}

func (q *Inline) Close() error {
	q.cancel()
	q.wg.Wait()
	return nil
}
