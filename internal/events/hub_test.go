package events_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vodpipe/internal/events"
)

func TestHubFanOutAndDropNew(t *testing.T) {
	hub := events.NewHub(8)
	fast := make(chan events.Event, 4)
	slow := make(chan events.Event, 1)
	require.NoError(t, hub.Subscribe("fast", fast))
	require.NoError(t, hub.Subscribe("slow", slow))

	for i := 0; i < 3; i++ {
		hub.Publish(events.Event{Name: events.NameLog, Payload: []byte(`{}`)})
	}

	fastStats, err := hub.Stats("fast")
	require.NoError(t, err)
	assert.Equal(t, events.SubscriberStats{Sent: 3}, fastStats)

	slowStats, err := hub.Stats("slow")
	require.NoError(t, err)
	assert.Equal(t, events.SubscriberStats{Sent: 1, Dropped: 2}, slowStats)

	first := <-slow
	assert.Equal(t, uint64(1), first.Sequence)
	assert.False(t, first.ReceivedAt.IsZero())
	assert.Equal(t, uint64(3), hub.Published())
}

func TestHubSubscriptionErrors(t *testing.T) {
	hub := events.NewHub(0)
	ch := make(chan events.Event, 1)

	assert.ErrorIs(t, hub.Subscribe("a", nil), events.ErrNilChannel)
	require.NoError(t, hub.Subscribe("a", ch))
	assert.ErrorIs(t, hub.Subscribe("a", ch), events.ErrSubscriberExists)
	require.NoError(t, hub.Unsubscribe("a"))
	assert.ErrorIs(t, hub.Unsubscribe("a"), events.ErrSubscriberNotFound)
	_, err := hub.Stats("a")
	assert.ErrorIs(t, err, events.ErrSubscriberNotFound)

	hub.Close()
	hub.Close()
	assert.ErrorIs(t, hub.Subscribe("b", ch), events.ErrHubClosed)
	hub.Publish(events.Event{Name: "ignored"})
	assert.Empty(t, hub.Recent(0))
	assert.Zero(t, hub.Published())
}

func TestHubRecentKeepsNewest(t *testing.T) {
	hub := events.NewHub(3)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		hub.Publish(events.Event{Name: name})
	}

	all := hub.Recent(0)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "d", "e"}, names(all))
	assert.Equal(t, []string{"d", "e"}, names(hub.Recent(2)))
	assert.Equal(t, uint64(5), all[2].Sequence)
}

func TestHubConcurrentPublish(t *testing.T) {
	hub := events.NewHub(1000)
	ch := make(chan events.Event, 1000)
	require.NoError(t, hub.Subscribe("sink", ch))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Publish(events.Event{Name: events.NameLog})
			}
		}()
	}
	wg.Wait()

	stats, err := hub.Stats("sink")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), stats.Sent+stats.Dropped)
	assert.Len(t, hub.Recent(0), 500)
}

func names(evts []events.Event) []string {
	out := make([]string, 0, len(evts))
	for _, evt := range evts {
		out = append(out, evt.Name)
	}
	return out
}
