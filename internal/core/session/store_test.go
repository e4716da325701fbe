package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStoreCreateGet(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Close()

	require.NoError(t, store.Create(NewCallSession("a", time.Now())))
	assert.ErrorIs(t, store.Create(NewCallSession("a", time.Now())), ErrCallExists)

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrCallNotFound)
}

func TestStoreGracePeriod(t *testing.T) {
	clock := &testClock{now: time.Unix(5000, 0)}
	store := NewStore(60*time.Second, WithClock(clock.Now))
	defer store.Close()

	cs := NewCallSession("a", clock.Now())
	require.NoError(t, store.Create(cs))
	cs.Complete("done", clock.Now())
	store.ScheduleRemoval("a")

	clock.Advance(30 * time.Second)
	_, err := store.Get("a")
	assert.NoError(t, err)
	assert.Len(t, store.List(), 1)

	clock.Advance(60 * time.Second)
	_, err = store.Get("a")
	assert.ErrorIs(t, err, ErrCallNotFound)
	assert.Empty(t, store.List())
}

func TestStoreScheduleRemovalKeepsFirstDeadline(t *testing.T) {
	clock := &testClock{now: time.Unix(5000, 0)}
	store := NewStore(60*time.Second, WithClock(clock.Now))
	defer store.Close()

	require.NoError(t, store.Create(NewCallSession("a", clock.Now())))
	store.ScheduleRemoval("a")
	clock.Advance(50 * time.Second)
	store.ScheduleRemoval("a")
	clock.Advance(20 * time.Second)

	_, err := store.Get("a")
	assert.ErrorIs(t, err, ErrCallNotFound)
}

func TestStoreRemovalTimerDeletesEntry(t *testing.T) {
	removed := make(chan string, 1)
	store := NewStore(10*time.Millisecond, WithOnRemove(func(id string) { removed <- id }))
	defer store.Close()

	require.NoError(t, store.Create(NewCallSession("a", time.Now())))
	store.ScheduleRemoval("a")

	select {
	case id := <-removed:
		assert.Equal(t, "a", id)
	case <-time.After(2 * time.Second):
		t.Fatal("session was not removed")
	}
	assert.Equal(t, 0, store.Len())
}

func TestStoreReplacedSessionOutlivesOldTimer(t *testing.T) {
	clock := &testClock{now: time.Unix(5000, 0)}
	var removed []string
	store := NewStore(60*time.Second, WithClock(clock.Now), WithOnRemove(func(id string) { removed = append(removed, id) }))
	defer store.Close()

	var fire func()
	store.afterFunc = func(d time.Duration, f func()) *time.Timer {
		fire = f
		return time.NewTimer(time.Hour)
	}

	require.NoError(t, store.Create(NewCallSession("a", clock.Now())))
	store.ScheduleRemoval("a")
	require.NotNil(t, fire)
	clock.Advance(61 * time.Second)

	replacement := NewCallSession("a", clock.Now())
	require.NoError(t, store.Create(replacement))

	// A stale timer that already fired must not evict the replacement.
	fire()

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Same(t, replacement, got)
	assert.Empty(t, removed)

	clock.Advance(61 * time.Second)
	again, created := store.GetOrCreate("a", func() *CallSession { return NewCallSession("a", clock.Now()) })
	assert.False(t, created)
	assert.Same(t, replacement, again)
}

func TestStoreGetOrCreate(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Close()

	var wg sync.WaitGroup
	created := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := store.GetOrCreate("a", func() *CallSession { return NewCallSession("a", time.Now()) })
			created <- ok
		}()
	}
	wg.Wait()
	close(created)

	count := 0
	for ok := range created {
		if ok {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestStoreListOrdersByStart(t *testing.T) {
	store := NewStore(time.Minute)
	defer store.Close()

	require.NoError(t, store.Create(NewCallSession("late", time.Unix(200, 0))))
	require.NoError(t, store.Create(NewCallSession("early", time.Unix(100, 0))))

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "early", list[0].ID)
	assert.Equal(t, "late", list[1].ID)
}
