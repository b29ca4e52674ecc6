package client

import (
	"bytes"
	"fmt"
	"time"

	"github.com/armon/circbuf"

	"github.com/Wa4h1h/go-tftp-client/pkg/types"
)

type Direction uint8

const (
	Sent Direction = iota
	Received
)

func (d Direction) String() string {
	if d == Sent {
		return "sent"
	}

	return "received"
}

// Tracer observes every packet a transfer sends and every packet it accepts.
type Tracer interface {
	Trace(dir Direction, p types.Packet)
}

// TraceBuffer keeps the most recent trace lines within a fixed number of bytes.
type TraceBuffer struct {
	buf *circbuf.Buffer
	now func() time.Time
}

func NewTraceBuffer(size int64) (*TraceBuffer, error) {
	buf, err := circbuf.NewBuffer(size)
	if err != nil {
		return nil, fmt.Errorf("error while creating trace buffer: %w", err)
	}

	return &TraceBuffer{buf: buf, now: time.Now}, nil
}

func (t *TraceBuffer) Trace(dir Direction, p types.Packet) {
	fmt.Fprintf(t.buf, "%s %-8s %s\n", t.now().Format("15:04:05.000"), dir, p)
}

// String returns the buffered lines, dropping a line cut by wraparound.
func (t *TraceBuffer) String() string {
	b := t.buf.Bytes()

	if t.buf.TotalWritten() > t.buf.Size() {
		if i := bytes.IndexByte(b, '\n'); i >= 0 {
			b = b[i+1:]
		}
	}

	return string(b)
}

func (t *TraceBuffer) Reset() {
	t.buf.Reset()
}
