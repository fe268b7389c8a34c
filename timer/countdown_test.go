package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountdown_TickMonotonic(t *testing.T) {
	c := NewCountdown(3)
	assert.Equal(t, 3, c.Remaining())

	// inactive countdowns do not move
	assert.Equal(t, 3, c.Tick())

	c.Start()
	for want := 2; want >= 0; want-- {
		assert.Equal(t, want, c.Tick())
	}
	assert.False(t, c.Active())

	for i := 0; i < 5; i++ {
		assert.Equal(t, 0, c.Tick())
	}
}

func TestCountdown_SetInitialResetsExactly(t *testing.T) {
	c := NewCountdown(60)
	c.Start()
	c.Tick()
	c.Tick()

	for _, n := range []int{90, 5, 60, 0} {
		c.SetInitial(n)
		assert.Equal(t, n, c.Remaining())
	}

	c.Reset()
	assert.Equal(t, 60, c.Remaining())
}

func TestCountdown_PercentageAndDisplay(t *testing.T) {
	c := NewCountdown(60)
	c.SetInitial(30)
	assert.InDelta(t, 50.0, c.Percentage(), 0.001)
	assert.Equal(t, "0:30", c.Display())
}

func TestFormatTime(t *testing.T) {
	cases := map[int]string{0: "0:00", 5: "0:05", 60: "1:00", 125: "2:05", -3: "0:00"}
	for in, want := range cases {
		assert.Equal(t, want, FormatTime(in), "seconds=%d", in)
	}
}

func TestCountdown_HandleTimerUpdate(t *testing.T) {
	c := NewCountdown(60)
	var sent []int
	c.OnPublish(func(n int) { sent = append(sent, n) })

	c.HandleTimerUpdate(42, false)
	assert.Equal(t, 42, c.Remaining())
	assert.Empty(t, sent)

	c.HandleTimerUpdate(41, true)
	assert.Equal(t, 41, c.Remaining())
	assert.Equal(t, []int{41}, sent)
}
