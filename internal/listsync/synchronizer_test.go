package listsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ytakahashi/quicklist/internal/clock"
	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/models"
	"github.com/ytakahashi/quicklist/internal/remote"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *remote.Memory {
	t.Helper()
	mem := remote.NewMemory()
	mem.Seed(models.ShoppingItem{ID: "1", Text: "牛乳", CreatedAt: base})
	mem.Seed(models.ShoppingItem{ID: "2", Text: "卵", CreatedAt: base.Add(time.Minute), IsCompleted: true})
	mem.Seed(models.ShoppingItem{ID: "3", Text: "納豆", CreatedAt: base.Add(2 * time.Minute)})
	return mem
}

func ids(items []models.ShoppingItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestMount_FetchesNewestFirstAndPartitions(t *testing.T) {
	mem := seeded(t)
	s := New(mem, logging.Discard())
	require.NoError(t, s.Mount(context.Background()))
	defer s.Unmount()

	assert.Equal(t, []string{"3", "2", "1"}, ids(s.Items()))
	assert.Equal(t, []string{"3", "1"}, ids(s.Active()))
	assert.Equal(t, []string{"2"}, ids(s.Completed()))
}

func TestPartition_CompleteAndDisjoint(t *testing.T) {
	items := []models.ShoppingItem{
		{ID: "a"}, {ID: "b", IsCompleted: true}, {ID: "c"}, {ID: "d", IsCompleted: true}, {ID: "e"},
	}
	active, completed := Partition(items)

	seen := map[string]int{}
	for _, it := range append(append([]models.ShoppingItem{}, active...), completed...) {
		seen[it.ID]++
	}
	assert.Len(t, seen, len(items))
	for id, n := range seen {
		assert.Equal(t, 1, n, "item %s appears %d times", id, n)
	}
	assert.Equal(t, []string{"a", "c", "e"}, ids(active))
	assert.Equal(t, []string{"b", "d"}, ids(completed))
}

func TestChangeNotification_RefetchesAndRaisesSyncing(t *testing.T) {
	mem := seeded(t)
	fake := clock.NewFake()
	s := New(mem, logging.Discard(), WithAfterFunc(fake.AfterFunc))
	require.NoError(t, s.Mount(context.Background()))
	defer s.Unmount()

	require.NoError(t, mem.InsertItem(context.Background(), models.NewItem{Text: "豆腐"}))

	require.Eventually(t, func() bool { return len(s.Items()) == 4 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, s.Syncing, time.Second, 5*time.Millisecond)
	assert.Equal(t, []time.Duration{SyncIndicatorDelay}, fake.Pending())

	fake.Advance(SyncIndicatorDelay - time.Millisecond)
	assert.True(t, s.Syncing())
	fake.Advance(time.Millisecond)
	assert.False(t, s.Syncing())
}

func TestSyncing_LaterNotificationRestartsWindow(t *testing.T) {
	mem := seeded(t)
	fake := clock.NewFake()
	s := New(mem, logging.Discard(), WithAfterFunc(fake.AfterFunc))
	require.NoError(t, s.Mount(context.Background()))
	defer s.Unmount()

	s.markSyncing()
	fake.Advance(500 * time.Millisecond)
	s.markSyncing()
	fake.Advance(500 * time.Millisecond)
	assert.True(t, s.Syncing(), "second notification restarted the window")
	fake.Advance(300 * time.Millisecond)
	assert.False(t, s.Syncing())
}

func TestFetchError_KeepsLastSnapshot(t *testing.T) {
	mem := seeded(t)
	s := New(mem, logging.Discard())
	require.NoError(t, s.Mount(context.Background()))
	defer s.Unmount()

	mem.FailNext("list", errors.New("unavailable"))
	err := s.FetchAll(context.Background())
	require.Error(t, err)
	assert.Len(t, s.Items(), 3)
}

func TestMount_FirstFetchFailureIsNotFatal(t *testing.T) {
	mem := seeded(t)
	mem.FailNext("list", errors.New("unavailable"))
	s := New(mem, logging.Discard())
	require.NoError(t, s.Mount(context.Background()))
	defer s.Unmount()
	assert.Empty(t, s.Items())
}

func TestMount_WatchFailure(t *testing.T) {
	mem := seeded(t)
	mem.FailNext("watch", errors.New("denied"))
	s := New(mem, logging.Discard())
	require.Error(t, s.Mount(context.Background()))
	s.Unmount()
}

func TestUnmount_ReleasesSubscriptionEveryCycle(t *testing.T) {
	mem := seeded(t)
	for i := 0; i < 5; i++ {
		s := New(mem, logging.Discard())
		require.NoError(t, s.Mount(context.Background()))
		require.Equal(t, 1, mem.Watchers())
		s.Unmount()
		require.Eventually(t, func() bool { return mem.Watchers() == 0 }, time.Second, 5*time.Millisecond)
	}

	s := New(mem, logging.Discard())
	s.Unmount()
	require.ErrorIs(t, s.Mount(context.Background()), ErrUnmounted)
}

func TestUnmount_LateFetchIsDropped(t *testing.T) {
	mem := seeded(t)
	s := New(mem, logging.Discard())
	require.NoError(t, s.Mount(context.Background()))
	before := s.Items()
	s.Unmount()

	require.NoError(t, mem.InsertItem(context.Background(), models.NewItem{Text: "豆腐"}))
	require.NoError(t, s.FetchAll(context.Background()))
	assert.Equal(t, before, s.Items())
}

func TestFindAndMatchText(t *testing.T) {
	mem := seeded(t)
	mem.Seed(models.ShoppingItem{ID: "4", Text: "牛乳", CreatedAt: base.Add(3 * time.Minute), IsCompleted: true})
	s := New(mem, logging.Discard())
	require.NoError(t, s.Mount(context.Background()))
	defer s.Unmount()

	it, ok := s.Find("2")
	require.True(t, ok)
	assert.Equal(t, "卵", it.Text)
	_, ok = s.Find("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"4", "1"}, ids(s.MatchText("牛乳")))
	assert.Empty(t, s.MatchText("牛"))
}

func TestChanges_NotifiesOnFetch(t *testing.T) {
	mem := seeded(t)
	s := New(mem, logging.Discard())
	ch, cancel := s.Changes()
	defer cancel()

	require.NoError(t, s.Mount(context.Background()))
	defer s.Unmount()

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification after first fetch")
	}
}
