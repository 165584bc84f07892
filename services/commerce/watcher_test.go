package commerce

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherTranslatesEvents(t *testing.T) {
	var connects atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := connects.Add(1)
		if n > 1 {
			// Second connect: tell the watcher to stop for good.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		require.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "id: 1\nevent: commerce_session.created\ndata: {\"id\":\"cs_9\",\"status\":\"requires_amount\"}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "id: 2\nevent: commerce_session.updated\ndata: {\"id\":\"cs_9\",\"status\":\"requires_approval\"}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "id: 3\nevent: commerce_session.completed\ndata: {\"id\":\"cs_9\",\"status\":\"completed\"}\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	repo, _ := newRepository(t, "http://127.0.0.1:0")
	watcher := NewWatcher(repo, activeTokens(), server.Client(), server.URL)

	events, err := watcher.Start(context.Background())
	require.NoError(t, err)
	defer watcher.Stop()

	expect := []EventType{EventCreated, EventUpdated, EventCompleted}
	for i, want := range expect {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "channel closed early at event %d", i)
			require.Equal(t, want, ev.Type)
			require.Equal(t, "cs_9", ev.Session.ID)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	// The completed snapshot must have cleared the tracked session.
	_, ok := repo.Current()
	require.False(t, ok)

	// After the 204 the channel closes without further reconnects.
	select {
	case _, ok := <-events:
		require.False(t, ok, "expected channel close after server stop")
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not end after 204")
	}
	require.LessOrEqual(t, connects.Load(), int32(2))
}

func TestWatcherStop(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	repo, _ := newRepository(t, "http://127.0.0.1:0")
	watcher := NewWatcher(repo, activeTokens(), server.Client(), server.URL)

	events, err := watcher.Start(context.Background())
	require.NoError(t, err)

	// Starting again while running is rejected.
	_, err = watcher.Start(context.Background())
	require.ErrorIs(t, err, ErrAlreadyWatching)

	done := make(chan struct{})
	go func() {
		watcher.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not return")
	}

	select {
	case _, ok := <-events:
		require.False(t, ok, "expected channel close after Stop")
	case <-time.After(time.Second):
		t.Fatal("event channel not closed after Stop")
	}

	// A stopped watcher can be started again.
	events2, err := watcher.Start(context.Background())
	require.NoError(t, err)
	watcher.Stop()
	select {
	case _, ok := <-events2:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("second watch did not close")
	}
}

func TestWatcherResumesWithLastEventID(t *testing.T) {
	var connects atomic.Int32
	lastIDs := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastIDs <- r.Header.Get("Last-Event-ID")
		if connects.Add(1) == 1 {
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "id: 41\nevent: commerce_session.updated\ndata: {\"id\":\"cs_1\",\"status\":\"requires_amount\"}\n\n")
			w.(http.Flusher).Flush()
			// Stream drops here; the watcher should reconnect.
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	repo, _ := newRepository(t, "http://127.0.0.1:0")
	watcher := NewWatcher(repo, activeTokens(), server.Client(), server.URL)

	events, err := watcher.Start(context.Background())
	require.NoError(t, err)
	defer watcher.Stop()

	require.Equal(t, "", <-lastIDs, "first connect carries no Last-Event-ID")

	select {
	case ev := <-events:
		require.Equal(t, EventUpdated, ev.Type)
	case <-time.After(3 * time.Second):
		t.Fatal("no event before drop")
	}

	select {
	case id := <-lastIDs:
		require.Equal(t, "41", id, "reconnect must resume from the last seen event")
	case <-time.After(10 * time.Second):
		t.Fatal("no reconnect happened")
	}
}
