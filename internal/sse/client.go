package sse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// State is the lifecycle state of a streaming connection.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// CompleteFunc receives the terminal report for one connection: the HTTP
// status (0 when no response arrived), whether reconnecting is advisable,
// and the transport error if any. The caller owns the reconnect decision
// and its backoff; the client never reconnects on its own.
type CompleteFunc func(status int, shouldReconnect bool, err error)

// Client is a single-direction streaming connection that parses
// text/event-stream responses and routes events to registered listeners.
type Client struct {
	log        *slog.Logger
	httpClient *http.Client
	url        string
	headers    http.Header

	mu          sync.Mutex
	state       State
	lastEventID string
	listeners   map[string]func(Event)
	cancel      context.CancelFunc

	onOpen     func()
	onMessage  func(Event)
	onComplete CompleteFunc
}

// NewClient creates a client for the given stream URL. The extra headers
// (typically authorization) are sent on every connect. A nil httpClient
// gets a fresh client with no timeout, which a long-lived stream requires.
func NewClient(httpClient *http.Client, url string, headers http.Header) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		log:        slog.Default().With("component", "sse"),
		httpClient: httpClient,
		url:        url,
		headers:    headers,
		listeners:  make(map[string]func(Event)),
	}
}

// OnOpen registers a callback fired when response headers arrive.
func (c *Client) OnOpen(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOpen = fn
}

// OnMessage registers a callback for unnamed ("message") events.
func (c *Client) OnMessage(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
}

// OnComplete registers the terminal report callback.
func (c *Client) OnComplete(fn CompleteFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = fn
}

// AddListener registers a handler for one event type. Registering again
// for the same type replaces the previous handler.
func (c *Client) AddListener(eventType string, fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[eventType] = fn
}

// RemoveListener removes the handler for one event type.
func (c *Client) RemoveListener(eventType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners, eventType)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastEventID returns the most recent event id seen on the stream, updated
// as events are drained. Pass it back to Connect when reconnecting.
func (c *Client) LastEventID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEventID
}

// Connect opens the stream and returns once response headers arrive (or
// the request fails). Events are then delivered on a background goroutine
// until the stream ends; the terminal report goes to the OnComplete
// callback.
func (c *Client) Connect(ctx context.Context, lastEventID string) error {
	c.mu.Lock()
	if c.state != StateClosed {
		c.mu.Unlock()
		return fmt.Errorf("sse: connect while %s", c.state)
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateConnecting
	if lastEventID != "" {
		c.lastEventID = lastEventID
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		c.finish(0, fmt.Errorf("sse: build request: %w", err))
		return err
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.finish(0, fmt.Errorf("sse: connect: %w", err))
		return err
	}

	c.mu.Lock()
	if c.state == StateClosed {
		// Disconnected while the request was in flight.
		c.mu.Unlock()
		resp.Body.Close()
		c.report(resp.StatusCode, false, nil)
		return nil
	}
	c.state = StateOpen
	onOpen := c.onOpen
	c.mu.Unlock()

	if onOpen != nil {
		onOpen()
	}

	go c.readLoop(resp)
	return nil
}

// Disconnect force-closes the connection regardless of in-flight data.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.state = StateClosed
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (c *Client) readLoop(resp *http.Response) {
	defer resp.Body.Close()

	var parser Parser
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range parser.Append(buf[:n]) {
				c.dispatch(ev)
			}
		}
		if err != nil {
			for _, ev := range parser.Flush() {
				c.dispatch(ev)
			}
			if err == io.EOF {
				err = nil
			}
			c.finish(resp.StatusCode, err)
			return
		}
	}
}

func (c *Client) dispatch(ev Event) {
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	if ev.ID != "" {
		c.lastEventID = ev.ID
	}
	if ev.IsRetryOnly() {
		c.mu.Unlock()
		return
	}
	onMessage := c.onMessage
	listener := c.listeners[ev.Event]
	if ev.IsMessage() {
		listener = c.listeners["message"]
	}
	c.mu.Unlock()

	if ev.IsMessage() && onMessage != nil {
		onMessage(ev)
	}
	if listener != nil {
		listener(ev)
	}
}

// finish records the terminal state and reports it. Completions that race
// an explicit Disconnect must not advise reconnecting.
func (c *Client) finish(status int, err error) {
	c.mu.Lock()
	wasClosed := c.state == StateClosed
	c.state = StateClosed
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	if wasClosed {
		// The cancellation we triggered ourselves is not an error worth
		// reporting upstream.
		err = nil
	}
	reconnect := shouldReconnect(status, wasClosed)
	if err != nil {
		c.log.Debug("stream ended", "status", status, "reconnect", reconnect, "error", err)
	}
	c.report(status, reconnect, err)
}

func (c *Client) report(status int, reconnect bool, err error) {
	c.mu.Lock()
	onComplete := c.onComplete
	c.mu.Unlock()
	if onComplete != nil {
		onComplete(status, reconnect, err)
	}
}

// shouldReconnect classifies a stream end. A 204 is the server telling us
// to stop; an end after a local Disconnect already has its explanation.
// Everything else is worth reconnecting.
func shouldReconnect(status int, locallyClosed bool) bool {
	if locallyClosed {
		return false
	}
	return status != http.StatusNoContent
}
