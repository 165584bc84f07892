// Package sse implements the client half of Server-Sent Events: an
// incremental wire parser and a streaming connection with per-event-type
// listeners.
package sse

import (
	"bytes"
	"strings"
)

// Event is one server-sent event. Fields left empty were not present on
// the wire.
type Event struct {
	ID    string
	Event string
	Data  string
	Retry string
}

// IsMessage reports whether the event is an unnamed (default "message")
// event.
func (e Event) IsMessage() bool {
	return e.Event == "" || e.Event == "message"
}

// IsRetryOnly reports whether the event carries nothing but a retry hint.
func (e Event) IsRetryOnly() bool {
	return e.Retry != "" && e.ID == "" && e.Event == "" && e.Data == ""
}

func (e Event) isEmpty() bool {
	return e.ID == "" && e.Event == "" && e.Data == "" && e.Retry == ""
}

// Parser extracts events from an arbitrarily chunked byte stream. Partial
// trailing data is buffered, so event boundaries do not need to line up
// with transport chunks.
type Parser struct {
	buf bytes.Buffer
}

// Append feeds a chunk into the parser and returns every event completed
// by it, in wire order.
func (p *Parser) Append(chunk []byte) []Event {
	p.buf.Write(chunk)

	var events []Event
	for {
		raw := p.buf.Bytes()
		// Events end at a blank line. Accept \n\n and \r\n\r\n.
		idx, sep := findBoundary(raw)
		if idx < 0 {
			break
		}
		block := string(raw[:idx])
		p.buf.Next(idx + sep)

		if ev, ok := parseBlock(block); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush parses whatever is left in the buffer as a final, unterminated
// event block. Useful when the stream ends without a trailing blank line.
func (p *Parser) Flush() []Event {
	block := p.buf.String()
	p.buf.Reset()
	if strings.TrimSpace(block) == "" {
		return nil
	}
	if ev, ok := parseBlock(block); ok {
		return []Event{ev}
	}
	return nil
}

func findBoundary(raw []byte) (idx, width int) {
	lf := bytes.Index(raw, []byte("\n\n"))
	crlf := bytes.Index(raw, []byte("\r\n\r\n"))
	switch {
	case lf < 0 && crlf < 0:
		return -1, 0
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return crlf, 4
	default:
		return lf, 2
	}
}

// parseBlock parses one blank-line-delimited block of lines. Returns false
// when the block contains no recognized fields at all.
func parseBlock(block string) (Event, bool) {
	var ev Event
	var dataLines []string

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		// Lines starting with a colon are comments (heartbeats).
		if strings.HasPrefix(line, ":") {
			continue
		}

		key := line
		value := ""
		if i := strings.Index(line, ":"); i >= 0 {
			key = line[:i]
			value = strings.TrimSpace(line[i+1:])
		}

		switch key {
		case "id":
			ev.ID = value
		case "event":
			ev.Event = value
		case "data":
			dataLines = append(dataLines, value)
		case "retry":
			ev.Retry = value
		}
		// Unrecognized fields are ignored.
	}

	ev.Data = strings.Join(dataLines, "\n")
	if ev.isEmpty() {
		return Event{}, false
	}
	return ev, true
}
