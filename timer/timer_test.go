package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerManager_Every(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	var count int32
	cancel := m.Every(10*time.Millisecond, func() { atomic.AddInt32(&count, 1) })

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&count) < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := atomic.LoadInt32(&count); got < 3 {
		t.Fatalf("expected at least 3 runs, got %d", got)
	}

	cancel()
	if m.Len() != 0 {
		t.Errorf("expected empty queue after cancel, got %d", m.Len())
	}
}

func TestTimerManager_RemoveBeforeFire(t *testing.T) {
	m := NewTimerManager(5 * time.Millisecond)
	defer m.Stop()

	fired := make(chan struct{}, 1)
	id := m.AddTimer(50*time.Millisecond, 0, func() { fired <- struct{}{} })
	m.RemoveTimer(id)

	select {
	case <-fired:
		t.Fatal("removed timer fired")
	case <-time.After(100 * time.Millisecond):
	}
}
