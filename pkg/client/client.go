package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Wa4h1h/go-tftp-client/pkg/types"
	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
)

// PacketHook receives every DAT packet accepted into the sink.
type PacketHook func(d *types.Data)

// Client downloads files from one TFTP server. Its host is resolved and its
// options validated once, by NewClient.
type Client struct {
	l       *zap.SugaredLogger
	tracer  Tracer
	addr    *net.UDPAddr
	host    string
	options types.Options
	port    int
}

// Stats describes a finished, or aborted, download.
type Stats struct {
	Duration   time.Duration
	Bytes      int64
	Blocks     int
	Duplicates int
	Errors     int
	State      State
}

// Kbps is the average rate in kilobits per second.
func (s *Stats) Kbps() float64 {
	secs := s.Duration.Seconds()
	if secs <= 0 {
		return 0
	}

	return float64(s.Bytes) * 8 / 1024 / secs
}

// NewClient resolves host and validates options. blksize must be an integer in
// [MinBlockSize, MaxBlockSize] and defaults to DefaultBlockSize. The options
// are copied, so the caller may reuse its value.
func NewClient(l *zap.SugaredLogger, host string, port int, options types.Options) (*Client, error) {
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("error while resolving %s: %w", host, err)
	}

	opts := options.Clone()

	if v, ok := opts.Get(types.OptBlockSize); ok {
		size, ok := v.Int()
		if !ok {
			return nil, fmt.Errorf("%w: %q is not an integer", utils.ErrInvalidBlockSize, v)
		}

		if size < types.MinBlockSize || size > types.MaxBlockSize {
			return nil, fmt.Errorf("%w: %d", utils.ErrInvalidBlockSize, size)
		}

		opts.Set(types.OptBlockSize, types.IntValue(size))
	} else {
		opts.Set(types.OptBlockSize, types.IntValue(types.DefaultBlockSize))
	}

	return &Client{l: l, host: host, port: port, addr: addr, options: opts}, nil
}

func (c *Client) SetTracer(t Tracer) {
	c.tracer = t
}

func (c *Client) Host() string {
	return c.host
}

func (c *Client) Port() int {
	return c.port
}

func (c *Client) Addr() *net.UDPAddr {
	return c.addr
}

func (c *Client) Options() types.Options {
	return c.options.Clone()
}

// Download fetches filename into sink. It returns once the final short block
// has been accepted or on the first fatal error; the socket and the sink are
// closed either way. Stats is returned even on failure so callers can see how
// far the transfer got. Cancelling ctx closes the socket and aborts the
// transfer with a *utils.TransportError.
func (c *Client) Download(ctx context.Context, filename string, sink io.WriteCloser,
	hook PacketHook, timeout time.Duration,
) (stats *Stats, err error) {
	if timeout <= 0 {
		timeout = types.DefaultClientTimeout
	}

	session := newSession(c.host, c.addr, c.options)
	stats = &Stats{}
	start := time.Now()

	conn, errListen := net.ListenUDP("udp", nil)
	if errListen != nil {
		session.setState(StateErr)
		stats.State = session.State()

		return stats, multierr.Append(
			&utils.TransportError{Reason: "error while opening socket", Err: errListen},
			sink.Close())
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})

	t := &transfer{
		l:       c.l,
		conn:    conn,
		session: session,
		sink:    sink,
		hook:    hook,
		tracer:  c.tracer,
		timeout: timeout,
		stats:   stats,
	}

	defer func() {
		if stop() {
			err = multierr.Append(err, conn.Close())
		}

		err = multierr.Append(err, sink.Close())

		stats.Duration = time.Since(start)
		stats.Duplicates = session.duplicates()
		stats.Errors = session.errors
		stats.State = session.State()
	}()

	if err := t.request(filename); err != nil {
		if ctx.Err() != nil {
			return stats, canceled(ctx)
		}

		return stats, err
	}

	if err := t.receive(ctx); err != nil {
		return stats, err
	}

	elapsed := &Stats{Bytes: stats.Bytes, Duration: time.Since(start)}

	c.l.Infof("downloaded %d bytes in %s", elapsed.Bytes, elapsed.Duration)
	c.l.Infof("average rate: %.2f kbps", elapsed.Kbps())
	c.l.Infof("received %d duplicate packets", session.duplicates())

	return stats, nil
}
