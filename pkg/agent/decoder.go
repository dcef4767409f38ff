package agent

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
)

// Decoder turns arbitrarily chunked NDJSON bytes into events.
//
// Records are split on '\n' over raw bytes. A chunk boundary may fall
// anywhere, including inside a multi-byte UTF-8 sequence: the newline byte
// never appears inside one, so reassembly is exact. The trailing incomplete
// segment is retained until more bytes arrive or Flush is called.
type Decoder struct {
	buf []byte

	// OnMalformed, if set, is called for every record that fails to parse.
	OnMalformed func(line []byte, err error)
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends a chunk and returns the events completed by it, in order.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.buf = append(d.buf, chunk...)

	var events []Event
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		if ev, ok := d.parse(d.buf[:i]); ok {
			events = append(events, ev)
		}
		d.buf = d.buf[i+1:]
	}

	// Compact so the retained tail does not pin an ever-growing backing array.
	if len(d.buf) == 0 {
		d.buf = nil
	} else if cap(d.buf) > 4*len(d.buf) && cap(d.buf) > 4096 {
		d.buf = append([]byte(nil), d.buf...)
	}
	return events
}

// Flush parses whatever remains buffered at end of stream.
func (d *Decoder) Flush() []Event {
	rest := d.buf
	d.buf = nil
	if ev, ok := d.parse(rest); ok {
		return []Event{ev}
	}
	return nil
}

// Buffered returns the number of bytes awaiting a newline.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) parse(line []byte) (Event, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Event{}, false
	}
	ev, err := ParseEvent(line)
	if err != nil {
		slog.Warn("skipping malformed stream record", "error", err, "bytes", len(line))
		if d.OnMalformed != nil {
			d.OnMalformed(append([]byte(nil), line...), err)
		}
		return Event{}, false
	}
	return ev, true
}

// Decode reads r to the end, calling fn for every event in arrival order.
// It stops early, returning nil, when fn returns false. A done ctx stops the
// loop with ctx.Err(). A read error other than io.EOF is returned as is.
func (d *Decoder) Decode(ctx context.Context, r io.Reader, fn func(Event) bool) error {
	chunk := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := r.Read(chunk)
		if n > 0 {
			for _, ev := range d.Feed(chunk[:n]) {
				if !fn(ev) {
					return nil
				}
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				return readErr
			}
			for _, ev := range d.Flush() {
				if !fn(ev) {
					return nil
				}
			}
			return nil
		}
	}
}
