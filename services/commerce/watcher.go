package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"flexa/internal/sse"
	"flexa/models"
	"flexa/services/api"
)

// EventType is the kind of session transition pushed by the server.
type EventType string

const (
	EventCreated   EventType = "created"
	EventUpdated   EventType = "updated"
	EventCompleted EventType = "completed"
)

// Wire event names on the stream.
const (
	streamEventCreated   = "commerce_session.created"
	streamEventUpdated   = "commerce_session.updated"
	streamEventCompleted = "commerce_session.completed"
)

// Event is one session transition. Session is the full snapshot at that
// point, not a diff.
type Event struct {
	Type    EventType
	Session models.CommerceSession
}

var (
	ErrAlreadyWatching = errors.New("commerce: watcher already running")

	errStreamEnded = errors.New("commerce: event stream ended")
)

// Watcher holds a long-lived SSE connection to the session event stream,
// translating wire events into typed Events and keeping the repository's
// local session in sync. The watcher owns the reconnect decision: stream
// drops reconnect with jittered backoff, a server stop (204) ends the
// watch.
type Watcher struct {
	log        *slog.Logger
	repo       *Repository
	tokens     api.TokenProvider
	httpClient *http.Client
	streamURL  string

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	events      chan Event
	lastEventID string

	wg sync.WaitGroup
}

// NewWatcher creates a watcher for the given stream URL. A nil httpClient
// gets a timeout-free client suitable for streaming.
func NewWatcher(repo *Repository, tokens api.TokenProvider, httpClient *http.Client, streamURL string) *Watcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Watcher{
		log:        slog.Default().With("component", "commerce-watcher"),
		repo:       repo,
		tokens:     tokens,
		httpClient: httpClient,
		streamURL:  streamURL,
	}
}

// Start begins watching and returns the event channel. The channel closes
// when the watch ends, whether by Stop or by the server ending the
// stream.
func (w *Watcher) Start(ctx context.Context) (<-chan Event, error) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil, ErrAlreadyWatching
	}
	w.running = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.events = make(chan Event, 16)
	events := w.events
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)
	return events, nil
}

// Stop disconnects and waits for the watch loop to exit. In-flight
// completions observe the cancellation and do not trigger a reconnect.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		close(w.events)
		w.mu.Unlock()
		w.wg.Done()
	}()

	err := retry.Do(
		func() error { return w.stream(ctx) },
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil && !errors.Is(err, errStreamEnded) && ctx.Err() == nil {
		w.log.Error("watch ended", "error", err)
	}
}

type completion struct {
	status    int
	reconnect bool
	err       error
}

// stream runs one connection to exhaustion. A returned plain error asks
// the retry loop for another attempt; retry.Unrecoverable ends the watch.
func (w *Watcher) stream(ctx context.Context) error {
	headers := http.Header{}
	if token, ok := w.tokens.Current(); ok {
		headers.Set("Authorization", api.BasicAuth(token.Value))
	}

	client := sse.NewClient(w.httpClient, w.streamURL, headers)
	done := make(chan completion, 1)
	client.OnComplete(func(status int, reconnect bool, err error) {
		done <- completion{status: status, reconnect: reconnect, err: err}
	})

	for wire, typ := range map[string]EventType{
		streamEventCreated:   EventCreated,
		streamEventUpdated:   EventUpdated,
		streamEventCompleted: EventCompleted,
	} {
		eventType := typ
		client.AddListener(wire, func(ev sse.Event) {
			w.handle(ctx, eventType, ev)
		})
	}

	w.mu.Lock()
	lastEventID := w.lastEventID
	w.mu.Unlock()

	if err := client.Connect(ctx, lastEventID); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		client.Disconnect()
		<-done
		return retry.Unrecoverable(errStreamEnded)
	case comp := <-done:
		w.mu.Lock()
		w.lastEventID = client.LastEventID()
		w.mu.Unlock()
		if comp.err != nil {
			return comp.err
		}
		if comp.reconnect {
			return errStreamEnded
		}
		return retry.Unrecoverable(errStreamEnded)
	}
}

// handle decodes a wire event's session snapshot, updates the repository,
// and delivers the typed event in arrival order.
func (w *Watcher) handle(ctx context.Context, typ EventType, ev sse.Event) {
	var session models.CommerceSession
	if err := json.Unmarshal([]byte(ev.Data), &session); err != nil {
		w.log.Warn("undecodable session event", "type", typ, "error", err)
		return
	}

	w.repo.apply(session)

	select {
	case w.events <- Event{Type: typ, Session: session}:
	case <-ctx.Done():
	}
}
