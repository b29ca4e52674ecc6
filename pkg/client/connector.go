package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Wa4h1h/go-tftp-client/pkg/types"
	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
)

const traceBufferSize = 64 * 1024

type Connector interface {
	Connect(host string, port int) error
	Get(ctx context.Context, remote, local string) (*Stats, error)
	SetTimeout(timeout uint)
	SetBlockSize(size int) error
	SetTrace() bool
	Trace() string
	Status() string
}

// Connection keeps the interactive settings and builds a fresh Client, with
// its own options, for every change of remote or block size.
type Connection struct {
	l       *zap.SugaredLogger
	client  *Client
	traces  *TraceBuffer
	baseDir string
	timeout time.Duration
	blksize int
	trace   bool
}

func NewConnection(l *zap.SugaredLogger, baseDir string, timeout time.Duration, blksize int) (*Connection, error) {
	traces, err := NewTraceBuffer(traceBufferSize)
	if err != nil {
		return nil, err
	}

	if blksize < types.MinBlockSize || blksize > types.MaxBlockSize {
		return nil, fmt.Errorf("%w: %d", utils.ErrInvalidBlockSize, blksize)
	}

	return &Connection{
		l:       l,
		traces:  traces,
		baseDir: baseDir,
		timeout: timeout,
		blksize: blksize,
	}, nil
}

func (c *Connection) options() types.Options {
	opts := types.NewOptions()
	opts.Set(types.OptBlockSize, types.IntValue(c.blksize))

	return opts
}

func (c *Connection) Connect(host string, port int) error {
	client, err := NewClient(c.l, host, port, c.options())
	if err != nil {
		return err
	}

	c.client = client

	return nil
}

func (c *Connection) SetTimeout(timeout uint) {
	c.timeout = time.Duration(timeout) * time.Second
}

func (c *Connection) SetBlockSize(size int) error {
	if size < types.MinBlockSize || size > types.MaxBlockSize {
		return fmt.Errorf("%w: %d", utils.ErrInvalidBlockSize, size)
	}

	c.blksize = size

	if c.client == nil {
		return nil
	}

	return c.Connect(c.client.Host(), c.client.Port())
}

func (c *Connection) SetTrace() bool {
	c.trace = !c.trace

	return c.trace
}

// Trace returns the packets of the last get, or nothing while tracing is off.
func (c *Connection) Trace() string {
	if !c.trace {
		return ""
	}

	return c.traces.String()
}

func (c *Connection) Status() string {
	remote := "not connected"
	if c.client != nil {
		remote = fmt.Sprintf("connected to %s", c.client.Addr())
	}

	return fmt.Sprintf("%s\nblksize: %d\ntimeout: %s\ntrace: %t\ndownload dir: %s",
		remote, c.blksize, c.timeout, c.trace, c.baseDir)
}

// Get downloads remote into local, which defaults to the base name of remote
// inside the download directory.
func (c *Connection) Get(ctx context.Context, remote, local string) (*Stats, error) {
	if c.client == nil {
		return nil, utils.ErrNotConnected
	}

	if local == "" {
		local = filepath.Base(remote)
	}

	if !filepath.IsAbs(local) {
		local = filepath.Join(c.baseDir, local)
	}

	f, err := os.OpenFile(local, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("error while opening %s: %w", local, err)
	}

	c.client.SetTracer(nil)

	if c.trace {
		c.traces.Reset()
		c.client.SetTracer(c.traces)
	}

	stats, err := c.client.Download(ctx, remote, f, nil, c.timeout)
	if err != nil {
		return stats, fmt.Errorf("error while downloading %s: %w", remote, err)
	}

	return stats, nil
}
