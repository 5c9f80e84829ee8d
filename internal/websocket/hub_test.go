package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekhub/translator/internal/model"
)

func event(subjectID string, status model.JobStatus, progress int) model.ProgressEvent {
	return model.NewProgressEvent(&model.TranslationJob{
		ID:        "job-1",
		SubjectID: subjectID,
		Status:    status,
		Progress:  progress,
	}, time.Now())
}

func drain(sub *Subscription) []model.ProgressEvent {
	var out []model.ProgressEvent
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func isClosed(sub *Subscription) bool {
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return true
			}
		default:
			return false
		}
	}
}

func TestHub_FanOutPerSubject(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := hub.Subscribe("d1")
	b := hub.Subscribe("d1")
	other := hub.Subscribe("d2")

	hub.Publish("d1", event("d1", model.JobStatusProcessing, 30))

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, drain(other))
	assert.Equal(t, 2, hub.SubscriberCount("d1"))
}

func TestHub_TerminalDeliveredOnceThenClosed(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := hub.Subscribe("d1")
	b := hub.Subscribe("d1")

	hub.Publish("d1", event("d1", model.JobStatusTranslating, 60))
	hub.Publish("d1", event("d1", model.JobStatusCompleted, 100))
	hub.Publish("d1", event("d1", model.JobStatusCompleted, 100))

	for _, sub := range []*Subscription{a, b} {
		var got []model.ProgressEvent
		for ev := range sub.Events() {
			got = append(got, ev)
		}
		require.Len(t, got, 2)
		assert.Equal(t, model.JobStatusCompleted, got[1].Status)
	}
	assert.Equal(t, 0, hub.SubscriberCount("d1"))
}

func TestHub_LateSubscriberGetsNoReplay(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	early := hub.Subscribe("d1")

	hub.Publish("d1", event("d1", model.JobStatusProcessing, 10))
	hub.Publish("d1", event("d1", model.JobStatusProcessing, 30))

	late := hub.Subscribe("d1")
	hub.Publish("d1", event("d1", model.JobStatusTranslating, 60))
	hub.Publish("d1", event("d1", model.JobStatusFailed, 60))

	assert.Len(t, drain(early), 4)

	var got []model.ProgressEvent
	for ev := range late.Events() {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	assert.Equal(t, 60, got[0].Progress)
	assert.Equal(t, model.JobStatusFailed, got[1].Status)

	// Subscribing after the terminal event yields nothing further.
	after := hub.Subscribe("d1")
	assert.Empty(t, drain(after))
	after.Close()
}

func TestHub_SlowSubscriberDropsOldest(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	slow := hub.Subscribe("d1")

	done := make(chan struct{})
	go func() {
		for p := 0; p <= 99; p++ {
			hub.Publish("d1", event("d1", model.JobStatusProcessing, p))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	got := drain(slow)
	require.Len(t, got, SubscriberBuffer)
	assert.Equal(t, 100-SubscriberBuffer, got[0].Progress)
	assert.Equal(t, 99, got[len(got)-1].Progress)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].Progress, got[i-1].Progress)
	}
	assert.Equal(t, int64(100-SubscriberBuffer), hub.Dropped())
}

func TestHub_TerminalSurvivesFullBuffer(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	slow := hub.Subscribe("d1")

	for p := 0; p < SubscriberBuffer*2; p++ {
		hub.Publish("d1", event("d1", model.JobStatusProcessing, p))
	}
	hub.Publish("d1", event("d1", model.JobStatusCancelled, 50))

	var last model.ProgressEvent
	for ev := range slow.Events() {
		last = ev
	}
	assert.Equal(t, model.JobStatusCancelled, last.Status)
}

func TestSubscription_CloseIdempotent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sub := hub.Subscribe("d1")

	sub.Close()
	sub.Close()

	assert.True(t, isClosed(sub))
	assert.Equal(t, 0, hub.SubscriberCount("d1"))

	// Publishing to a subject without subscribers is a no-op.
	hub.Publish("d1", event("d1", model.JobStatusCompleted, 100))
}

func TestRedisRelay_CrossProcessDelivery(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		return rdb
	}

	apiHub := NewHub(zerolog.Nop())
	workerHub := NewHub(zerolog.Nop())
	apiRelay := NewRedisRelay(newClient(), apiHub, zerolog.Nop())
	workerRelay := NewRedisRelay(newClient(), workerHub, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = apiRelay.Run(ctx) }()
	go func() { _ = workerRelay.Run(ctx) }()
	require.Eventually(t, func() bool { return mr.PubSubNumPat() == 2 }, 2*time.Second, 10*time.Millisecond)

	apiSub := apiHub.Subscribe("d1")
	workerSub := workerHub.Subscribe("d1")

	workerRelay.Publish("d1", event("d1", model.JobStatusProcessing, 30))

	select {
	case ev := <-apiSub.Events():
		assert.Equal(t, 30, ev.Progress)
	case <-time.After(2 * time.Second):
		t.Fatal("event not relayed to the api process")
	}

	// The publishing process sees its own event exactly once.
	select {
	case ev := <-workerSub.Events():
		assert.Equal(t, 30, ev.Progress)
	case <-time.After(time.Second):
		t.Fatal("local delivery missing")
	}
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, drain(workerSub))
}
