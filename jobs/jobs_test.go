package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInline_RunsRegisteredHandler(t *testing.T) {
	q := NewInline()
	defer q.Close()

	var got atomic.Value
	q.Register(TypeBattleCompleted, func(ctx context.Context, task Task) error {
		var payload map[string]string
		if err := json.Unmarshal(task.Payload, &payload); err != nil {
			return err
		}
		got.Store(payload["battle_id"])
		return nil
	})

	task, err := NewTask(TypeBattleCompleted, map[string]string{"battle_id": "b1"})
	require.NoError(t, err)
	id, err := q.Enqueue(context.Background(), task)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	q.Wait()
	assert.Equal(t, "b1", got.Load())
}

func TestInline_UnknownType(t *testing.T) {
	q := NewInline()
	defer q.Close()

	_, err := q.Enqueue(context.Background(), Task{Type: "nope"})
	assert.True(t, errors.Is(err, ErrNoHandler))

	_, err = q.Enqueue(context.Background(), Task{})
	assert.Error(t, err)
}

func TestInline_HandlerErrorIsNotFatal(t *testing.T) {
	q := NewInline()
	defer q.Close()

	var calls int32
	q.Register("fail", func(ctx context.Context, task Task) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	})

	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(context.Background(), Task{Type: "fail"})
		require.NoError(t, err)
	}
	q.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestInline_RunReturnsOnCancel(t *testing.T) {
	q := NewInline()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
