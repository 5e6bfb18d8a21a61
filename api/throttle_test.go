package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func newFakeThrottle(interval time.Duration) (*Throttle, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	th := NewThrottle(interval)
	th.now = clock.Now
	th.sleep = clock.Sleep
	return th, clock
}

func TestThrottle_FirstCallDoesNotWait(t *testing.T) {
	th, clock := newFakeThrottle(time.Second)

	th.Wait()

	assert.Empty(t, clock.sleeps)
}

func TestThrottle_WaitsForRemainder(t *testing.T) {
	th, clock := newFakeThrottle(time.Second)

	th.Wait()
	clock.now = clock.now.Add(300 * time.Millisecond)
	th.Wait()

	assert.Equal(t, []time.Duration{700 * time.Millisecond}, clock.sleeps)
}

func TestThrottle_NoWaitAfterInterval(t *testing.T) {
	th, clock := newFakeThrottle(500 * time.Millisecond)

	th.Wait()
	clock.now = clock.now.Add(2 * time.Second)
	th.Wait()

	assert.Empty(t, clock.sleeps)
}

func TestThrottle_BackToBackCalls(t *testing.T) {
	th, clock := newFakeThrottle(500 * time.Millisecond)

	th.Wait()
	th.Wait()
	th.Wait()

	assert.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, clock.sleeps)
}

func TestThrottle_ZeroIntervalAndNil(t *testing.T) {
	th, clock := newFakeThrottle(0)
	th.Wait()
	th.Wait()
	assert.Empty(t, clock.sleeps)

	var nilThrottle *Throttle
	assert.NotPanics(t, nilThrottle.Wait)
}
