package client

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Wa4h1h/go-tftp-client/internal/tftptest"
	"github.com/Wa4h1h/go-tftp-client/pkg/types"
	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
)

const testTimeout = 500 * time.Millisecond

type memSink struct {
	bytes.Buffer
	closed bool
}

func (m *memSink) Close() error {
	m.closed = true

	return nil
}

type result struct {
	stats *Stats
	err   error
}

func newTestClient(t *testing.T, peer *tftptest.Peer, opts types.Options) *Client {
	t.Helper()

	c, err := NewClient(zap.NewNop().Sugar(), peer.Host(), peer.Port(), opts)
	require.NoError(t, err)

	return c
}

func blksize(n int) types.Options {
	opts := types.NewOptions()
	opts.Set(types.OptBlockSize, types.IntValue(n))

	return opts
}

func start(ctx context.Context, c *Client, sink *memSink, hook PacketHook, timeout time.Duration) <-chan result {
	done := make(chan result, 1)

	go func() {
		stats, err := c.Download(ctx, "file.bin", sink, hook, timeout)
		done <- result{stats: stats, err: err}
	}()

	return done
}

func wait(t *testing.T, done <-chan result) result {
	t.Helper()

	select {
	case r := <-done:
		return r
	case <-time.After(10 * time.Second):
		t.Fatal("download did not finish")
	}

	return result{}
}

func TestNewClient(t *testing.T) {
	l := zap.NewNop().Sugar()

	tests := []struct {
		name    string
		value   *types.OptionValue
		want    int
		wantErr bool
	}{
		{name: "default", want: types.DefaultBlockSize},
		{name: "int", value: ptr(types.IntValue(1024)), want: 1024},
		{name: "decimal string", value: ptr(types.StringValue("1428")), want: 1428},
		{name: "minimum", value: ptr(types.IntValue(types.MinBlockSize)), want: types.MinBlockSize},
		{name: "maximum", value: ptr(types.IntValue(types.MaxBlockSize)), want: types.MaxBlockSize},
		{name: "too small", value: ptr(types.IntValue(7)), wantErr: true},
		{name: "too large", value: ptr(types.IntValue(65537)), wantErr: true},
		{name: "not a number", value: ptr(types.StringValue("big")), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := types.NewOptions()
			if tt.value != nil {
				opts.Set(types.OptBlockSize, *tt.value)
			}

			c, err := NewClient(l, "127.0.0.1", 69, opts)
			if tt.wantErr {
				require.ErrorIs(t, err, utils.ErrInvalidBlockSize)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Options().BlockSize())
			assert.Equal(t, "127.0.0.1", c.Addr().IP.String())
		})
	}
}

func TestNewClientOwnsOptions(t *testing.T) {
	l := zap.NewNop().Sugar()
	opts := types.NewOptions()

	first, err := NewClient(l, "127.0.0.1", 69, opts)
	require.NoError(t, err)

	opts.Set(types.OptBlockSize, types.IntValue(2048))

	second, err := NewClient(l, "127.0.0.1", 69, opts)
	require.NoError(t, err)

	assert.Equal(t, types.DefaultBlockSize, first.Options().BlockSize())
	assert.Equal(t, 2048, second.Options().BlockSize())
}

func TestNewClientInvalidPort(t *testing.T) {
	_, err := NewClient(zap.NewNop().Sugar(), "127.0.0.1", 0, types.NewOptions())
	require.Error(t, err)
}

func TestDownloadDuplicateBlock(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, types.NewOptions())
	sink := &memSink{}

	done := start(context.Background(), c, sink, nil, testTimeout)

	req := peer.ExpectRequest()
	assert.Equal(t, types.OpCodeRRQ, req.Opcode)
	assert.Equal(t, "file.bin", req.Filename)
	assert.Equal(t, types.ModeOctet, req.Mode)
	assert.Equal(t, types.DefaultBlockSize, req.Options.BlockSize())

	first := bytes.Repeat([]byte{'a'}, 512)
	last := bytes.Repeat([]byte{'b'}, 100)

	peer.SendData(1, first)
	peer.ExpectAck(1)
	peer.SendData(1, first)
	peer.ExpectAck(1)
	peer.SendData(2, last)
	peer.ExpectAck(2)

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, int64(612), r.stats.Bytes)
	assert.Equal(t, 2, r.stats.Blocks)
	assert.Equal(t, 1, r.stats.Duplicates)
	assert.Equal(t, StateFin, r.stats.State)
	assert.Equal(t, append(first, last...), sink.Bytes())
	assert.True(t, sink.closed)
}

func TestDownloadNegotiatesBlockSize(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, blksize(1024))
	sink := &memSink{}

	done := start(context.Background(), c, sink, nil, testTimeout)

	req := peer.ExpectRequest()
	v, ok := req.Options.Get(types.OptBlockSize)
	require.True(t, ok)
	assert.Equal(t, "1024", v.String())

	peer.Send(&types.OAck{Opcode: types.OpCodeOACK, Options: blksize(1024)})
	peer.ExpectAck(0)
	peer.SendData(1, bytes.Repeat([]byte{1}, 1024))
	peer.ExpectAck(1)
	peer.SendData(2, bytes.Repeat([]byte{2}, 512))
	peer.ExpectAck(2)

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, int64(1536), r.stats.Bytes)
	assert.Equal(t, StateFin, r.stats.State)
}

func TestDownloadAdoptsSmallerBlockSize(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, blksize(1024))
	sink := &memSink{}

	done := start(context.Background(), c, sink, nil, testTimeout)

	peer.ExpectRequest()
	peer.Send(&types.OAck{Opcode: types.OpCodeOACK, Options: blksize(16)})
	peer.ExpectAck(0)
	peer.SendData(1, bytes.Repeat([]byte{1}, 16))
	peer.ExpectAck(1)
	peer.SendData(2, []byte{2})
	peer.ExpectAck(2)

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, int64(17), r.stats.Bytes)
}

func TestDownloadNegotiationFails(t *testing.T) {
	tests := []struct {
		name    string
		offered types.Options
	}{
		{name: "blksize below minimum", offered: blksize(7)},
		{name: "blksize above maximum", offered: blksize(65537)},
		{name: "unrequested option", offered: func() types.Options {
			o := types.NewOptions()
			o.Set("tsize", types.StringValue("100"))

			return o
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peer := tftptest.NewPeer(t)
			c := newTestClient(t, peer, blksize(1024))
			sink := &memSink{}

			done := start(context.Background(), c, sink, nil, testTimeout)

			peer.ExpectRequest()
			peer.Send(&types.OAck{Opcode: types.OpCodeOACK, Options: tt.offered})
			peer.ExpectError(types.ErrOptionNegotiation)

			r := wait(t, done)

			var negErr *utils.NegotiationError
			require.ErrorAs(t, r.err, &negErr)
			assert.Equal(t, StateErr, r.stats.State)
			assert.True(t, sink.closed)
		})
	}
}

func TestDownloadTimeouts(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, types.NewOptions())
	sink := &memSink{}

	began := time.Now()
	done := start(context.Background(), c, sink, nil, 20*time.Millisecond)

	peer.ExpectRequest()

	r := wait(t, done)

	var transportErr *utils.TransportError
	require.ErrorAs(t, r.err, &transportErr)
	require.ErrorIs(t, r.err, utils.ErrMaxTimeouts)
	assert.GreaterOrEqual(t, time.Since(began), types.TimeoutRetries*20*time.Millisecond)
	assert.Equal(t, StateErr, r.stats.State)
	assert.Zero(t, sink.Len())
	assert.True(t, sink.closed)
}

func TestDownloadTimeoutCounterResets(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, types.NewOptions())
	sink := &memSink{}

	done := start(context.Background(), c, sink, nil, 40*time.Millisecond)

	peer.ExpectRequest()
	time.Sleep(100 * time.Millisecond)
	peer.SendData(1, bytes.Repeat([]byte{1}, 512))
	peer.ExpectAck(1)
	time.Sleep(100 * time.Millisecond)
	peer.SendData(2, []byte{2})
	peer.ExpectAck(2)

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, int64(513), r.stats.Bytes)
}

func TestDownloadUnexpectedBlock(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, types.NewOptions())
	sink := &memSink{}

	done := start(context.Background(), c, sink, nil, testTimeout)

	peer.ExpectRequest()
	peer.SendData(5, []byte("late"))

	r := wait(t, done)

	var seqErr *utils.SequenceError
	require.ErrorAs(t, r.err, &seqErr)
	assert.Equal(t, StateErr, r.stats.State)
	assert.Zero(t, sink.Len())

	peer.ExpectNothing(100 * time.Millisecond)
}

func TestDownloadMaxDuplicates(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, types.NewOptions())
	sink := &memSink{}

	done := start(context.Background(), c, sink, nil, testTimeout)

	peer.ExpectRequest()

	block := bytes.Repeat([]byte{'x'}, 512)
	for i := uint16(1); i <= 3; i++ {
		peer.SendData(i, block)
		peer.ExpectAck(i)
	}

	for i := 0; i < types.MaxDuplicates; i++ {
		peer.SendData(3, block)
		peer.ExpectAck(3)
	}

	peer.SendData(3, block)

	r := wait(t, done)
	require.ErrorIs(t, r.err, utils.ErrMaxDuplicates)

	var transportErr *utils.TransportError
	require.ErrorAs(t, r.err, &transportErr)
	assert.Equal(t, StateErr, r.stats.State)
	assert.Equal(t, types.MaxDuplicates+1, r.stats.Duplicates)
	assert.Equal(t, 3*512, sink.Len())

	peer.ExpectNothing(100 * time.Millisecond)
}

func TestDownloadPeerError(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, types.NewOptions())
	sink := &memSink{}

	done := start(context.Background(), c, sink, nil, testTimeout)

	peer.ExpectRequest()
	// code 1 with a message that is not the table text
	peer.SendRaw(append([]byte{0, 5, 0, 1}, []byte("no such file: file.bin\x00")...))

	r := wait(t, done)

	var peerErr *utils.PeerError
	require.ErrorAs(t, r.err, &peerErr)
	assert.Equal(t, uint16(types.ErrFileNotFound), peerErr.Code)
	assert.Equal(t, "no such file: file.bin", peerErr.Msg)
	assert.Equal(t, StateErr, r.stats.State)
}

func TestDownloadProtocolViolations(t *testing.T) {
	tests := []struct {
		name   string
		packet types.Packet
	}{
		{name: "ack", packet: &types.Ack{Opcode: types.OpCodeACK, BlockNum: 1}},
		{name: "wrq", packet: &types.Request{Opcode: types.OpCodeWRQ, Filename: "f", Mode: types.ModeOctet}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peer := tftptest.NewPeer(t)
			c := newTestClient(t, peer, types.NewOptions())
			sink := &memSink{}

			done := start(context.Background(), c, sink, nil, testTimeout)

			peer.ExpectRequest()
			peer.Send(tt.packet)

			r := wait(t, done)

			var seqErr *utils.SequenceError
			require.ErrorAs(t, r.err, &seqErr)
			assert.Equal(t, StateErr, r.stats.State)
		})
	}
}

func TestDownloadUnsupportedOpcode(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, types.NewOptions())
	sink := &memSink{}

	done := start(context.Background(), c, sink, nil, testTimeout)

	peer.ExpectRequest()
	peer.SendRaw([]byte{0, 9, 0, 1})

	r := wait(t, done)

	var protoErr *utils.ProtocolError
	require.ErrorAs(t, r.err, &protoErr)
	assert.Equal(t, StateErr, r.stats.State)
}

func TestDownloadDiscardsStrayTraffic(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, types.NewOptions())
	sink := &memSink{}

	done := start(context.Background(), c, sink, nil, testTimeout)

	peer.ExpectRequest()
	peer.SendData(1, bytes.Repeat([]byte{1}, 512))
	peer.ExpectAck(1)

	// neither of these come from the transfer port
	peer.SendStray([]byte{0, 9, 'j', 'u', 'n', 'k'})
	peer.SendStray([]byte{0, 3, 0, 7, 's'})

	peer.SendData(2, []byte("end"))
	peer.ExpectAck(2)

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, int64(515), r.stats.Bytes)
	assert.Zero(t, r.stats.Errors)
}

func TestDownloadIgnoresLateOAck(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, types.NewOptions())
	sink := &memSink{}

	done := start(context.Background(), c, sink, nil, testTimeout)

	peer.ExpectRequest()
	peer.SendData(1, bytes.Repeat([]byte{1}, 512))
	peer.ExpectAck(1)
	peer.Send(&types.OAck{Opcode: types.OpCodeOACK, Options: blksize(1024)})
	peer.SendData(2, []byte{2})
	peer.ExpectAck(2)

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, 1, r.stats.Errors)
	assert.Equal(t, StateFin, r.stats.State)
}

func TestDownloadEmptyFinalBlock(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, types.NewOptions())
	sink := &memSink{}

	done := start(context.Background(), c, sink, nil, testTimeout)

	peer.ExpectRequest()
	peer.SendData(1, bytes.Repeat([]byte{1}, 512))
	peer.ExpectAck(1)
	peer.SendData(2, nil)
	peer.ExpectAck(2)

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, int64(512), r.stats.Bytes)
	assert.Equal(t, 2, r.stats.Blocks)
}

func TestDownloadHookAndTracer(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, types.NewOptions())

	traces, err := NewTraceBuffer(4096)
	require.NoError(t, err)
	c.SetTracer(traces)

	var blocks []uint16
	hook := func(d *types.Data) {
		blocks = append(blocks, d.BlockNum)
	}

	sink := &memSink{}
	done := start(context.Background(), c, sink, hook, testTimeout)

	peer.ExpectRequest()
	peer.SendData(1, bytes.Repeat([]byte{1}, 512))
	peer.ExpectAck(1)
	peer.SendData(2, []byte{2})
	peer.ExpectAck(2)

	r := wait(t, done)
	require.NoError(t, r.err)
	assert.Equal(t, []uint16{1, 2}, blocks)

	trace := traces.String()
	assert.Contains(t, trace, "RRQ file=file.bin mode=octet blksize=512")
	assert.Contains(t, trace, "DAT block=1 len=512")
	assert.Contains(t, trace, "ACK block=2")
}

func TestDownloadCanceled(t *testing.T) {
	peer := tftptest.NewPeer(t)
	c := newTestClient(t, peer, types.NewOptions())
	sink := &memSink{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := start(ctx, c, sink, nil, 5*time.Second)

	peer.ExpectRequest()
	cancel()

	r := wait(t, done)

	var transportErr *utils.TransportError
	require.ErrorAs(t, r.err, &transportErr)
	assert.True(t, errors.Is(r.err, context.Canceled))
	assert.Equal(t, StateErr, r.stats.State)
	assert.True(t, sink.closed)
}

func ptr[T any](v T) *T {
	return &v
}
