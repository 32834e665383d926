package permitjoin

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

// changeRecorder collects every window-changed notification.
type changeRecorder struct {
	mu   sync.Mutex
	seen []int
}

func (cr *changeRecorder) record(remaining int) {
	cr.mu.Lock()
	cr.seen = append(cr.seen, remaining)
	cr.mu.Unlock()
}

func (cr *changeRecorder) values() []int {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return append([]int(nil), cr.seen...)
}

func TestSetDurationNegative(t *testing.T) {
	c := New(time.Second, nil, quietLogger())
	assert.ErrorIs(t, c.SetDuration(-1), ErrNegativeDuration)
	assert.Equal(t, 0, c.Duration())
	assert.False(t, c.Open())
}

func TestSetDurationZeroStillNotifies(t *testing.T) {
	rec := &changeRecorder{}
	c := New(time.Second, rec.record, quietLogger())

	require.NoError(t, c.SetDuration(0))
	assert.Equal(t, []int{0}, rec.values())
	assert.False(t, c.Open())
}

func TestCountdownExpires(t *testing.T) {
	rec := &changeRecorder{}
	c := New(5*time.Millisecond, rec.record, quietLogger())

	require.NoError(t, c.SetDuration(2))
	assert.True(t, c.Open())

	require.Eventually(t, func() bool { return c.Duration() == 0 }, time.Second, time.Millisecond)
	assert.False(t, c.Open())

	// Opening notification plus one per elapsed second down to zero.
	assert.Equal(t, []int{2, 1, 0}, rec.values())
}

func TestSetDurationSupersedesRunningTimer(t *testing.T) {
	c := New(5*time.Millisecond, nil, quietLogger())

	require.NoError(t, c.SetDuration(1000))
	require.NoError(t, c.SetDuration(2))

	require.Eventually(t, func() bool { return c.Duration() == 0 }, time.Second, time.Millisecond)

	// The first countdown is dead; the window must stay closed.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, c.Duration())
}

func TestManualTick(t *testing.T) {
	rec := &changeRecorder{}
	// Huge tick keeps the background countdown out of the way.
	c := New(time.Hour, rec.record, quietLogger())

	require.NoError(t, c.SetDuration(2))
	c.Tick()
	assert.Equal(t, 1, c.Duration())
	c.Tick()
	assert.Equal(t, 0, c.Duration())
	c.Tick() // closed window, no effect and no notification
	assert.Equal(t, 0, c.Duration())

	assert.Equal(t, []int{2, 1, 0}, rec.values())
}

func TestManualTickDisarmsLiveTimer(t *testing.T) {
	c := New(5*time.Millisecond, nil, quietLogger())

	require.NoError(t, c.SetDuration(1000))
	for c.Duration() > 0 {
		c.Tick()
	}

	// The countdown shares the tick path; draining the window by hand must
	// kill its timer too.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, c.Duration())
	assert.False(t, c.Open())
}

func TestCloseSilently(t *testing.T) {
	rec := &changeRecorder{}
	c := New(time.Hour, rec.record, quietLogger())

	require.NoError(t, c.SetDuration(60))
	c.Close()

	assert.Equal(t, 0, c.Duration())
	assert.Equal(t, []int{60}, rec.values(), "teardown must not notify")
}
