package clock

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/hostlink/internal/frame"
	"codeberg.org/mutker/hostlink/internal/link"
	"codeberg.org/mutker/hostlink/internal/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// steppedClock replays fixed instants, repeating the last one
type steppedClock struct {
	mu    sync.Mutex
	times []time.Time
	reads int
}

func (c *steppedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.reads
	c.reads++
	if i >= len(c.times) {
		i = len(c.times) - 1
	}

	return c.times[i]
}

func (c *steppedClock) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.reads
}

func at(hour, minute, second int) time.Time {
	return time.Date(2026, 10, 17, hour, minute, second, 0, time.Local)
}

func TestSourceRead(t *testing.T) {
	src := &Source{now: func() time.Time { return at(23, 59, 59) }}

	r, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, Reading{Hour: 23, Minute: 59}, r)
}

func TestSentinelIsNotALegitimateReading(t *testing.T) {
	assert.Greater(t, int(unset.Hour), 23)
	assert.Greater(t, int(unset.Minute), 59)
}

func TestClockMinuteRollover(t *testing.T) {
	stepped := &steppedClock{times: []time.Time{
		at(14, 5, 10), at(14, 5, 40), at(14, 6, 0), at(14, 6, 30),
	}}
	src := &Source{now: stepped.now}

	out := outbound.New(16, outbound.DropNewest, 0)
	signal := link.New()
	run := New(src, time.Millisecond, out, signal).Start(context.Background())

	require.Eventually(t, func() bool { return stepped.Reads() > 6 }, time.Second, time.Millisecond)
	signal.Disconnect()
	<-run.Done()
	out.Close()

	var got []frame.Frame
	for f := range out.Frames() {
		got = append(got, f)
	}

	assert.Equal(t, []frame.Frame{
		{byte(frame.Clock), 14, 5},
		{byte(frame.Clock), 14, 6},
	}, got)
}
