// Package tftptest provides a scripted TFTP server for exercising clients
// over loopback UDP.
package tftptest

import (
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Wa4h1h/go-tftp-client/pkg/types"
)

const readTimeout = 2 * time.Second

// Peer answers a request from a second socket, the way a server hands each
// transfer its own transfer ID. Tests drive it step by step from the test
// goroutine.
type Peer struct {
	t        testing.TB
	listener *net.UDPConn
	conn     *net.UDPConn
	client   *net.UDPAddr
}

func NewPeer(t testing.TB) *Peer {
	t.Helper()

	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = listener.Close()
		_ = conn.Close()
	})

	return &Peer{t: t, listener: listener, conn: conn}
}

func (p *Peer) Host() string {
	return "127.0.0.1"
}

// Port is the request port clients send their RRQ to.
func (p *Peer) Port() int {
	return p.listener.LocalAddr().(*net.UDPAddr).Port
}

// TransferPort is the port every reply is sent from.
func (p *Peer) TransferPort() int {
	return p.conn.LocalAddr().(*net.UDPAddr).Port
}

func read(t testing.TB, conn *net.UDPConn, d time.Duration) ([]byte, *net.UDPAddr) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(d)))

	datagram := make([]byte, types.DatagramSize)

	n, addr, err := conn.ReadFromUDP(datagram)
	require.NoError(t, err)

	return datagram[:n], addr
}

// ExpectRequest waits for a request on the request port and remembers its
// sender as the client.
func (p *Peer) ExpectRequest() *types.Request {
	p.t.Helper()

	b, addr := read(p.t, p.listener, readTimeout)

	pkt, err := types.Parse(b)
	require.NoError(p.t, err)

	req, ok := pkt.(*types.Request)
	require.Truef(p.t, ok, "expected a request, got %s", pkt)

	p.client = addr

	return req
}

func (p *Peer) Send(pkt types.Packet) {
	p.t.Helper()

	b, err := pkt.MarshalBinary()
	require.NoError(p.t, err)

	p.SendRaw(b)
}

func (p *Peer) SendRaw(b []byte) {
	p.t.Helper()
	require.NotNil(p.t, p.client, "no request received yet")

	_, err := p.conn.WriteToUDP(b, p.client)
	require.NoError(p.t, err)
}

// SendStray sends b to the client from a socket that is not part of the
// transfer.
func (p *Peer) SendStray(b []byte) {
	p.t.Helper()
	require.NotNil(p.t, p.client, "no request received yet")

	stray, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(p.t, err)

	defer stray.Close()

	_, err = stray.WriteToUDP(b, p.client)
	require.NoError(p.t, err)
}

func (p *Peer) SendData(block uint16, payload []byte) {
	p.t.Helper()
	p.Send(&types.Data{Opcode: types.OpCodeDATA, BlockNum: block, Payload: payload})
}

// Expect reads the next packet sent to the transfer port.
func (p *Peer) Expect() types.Packet {
	p.t.Helper()

	b, addr := read(p.t, p.conn, readTimeout)
	require.Equal(p.t, p.client.Port, addr.Port, "packet from unexpected port")

	pkt, err := types.Parse(b)
	require.NoError(p.t, err)

	return pkt
}

func (p *Peer) ExpectAck(block uint16) {
	p.t.Helper()

	pkt := p.Expect()

	ack, ok := pkt.(*types.Ack)
	require.Truef(p.t, ok, "expected ACK %d, got %s", block, pkt)
	require.Equal(p.t, block, ack.BlockNum)
}

func (p *Peer) ExpectError(code types.ErrCode) {
	p.t.Helper()

	pkt := p.Expect()

	e, ok := pkt.(*types.Error)
	require.Truef(p.t, ok, "expected ERR %d, got %s", code, pkt)
	require.Equal(p.t, code, e.ErrorCode)
}

// ExpectNothing fails if anything reaches the transfer port within d.
func (p *Peer) ExpectNothing(d time.Duration) {
	p.t.Helper()

	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(d)))

	datagram := make([]byte, types.DatagramSize)

	n, _, err := p.conn.ReadFromUDP(datagram)
	if err == nil {
		p.t.Fatalf("unexpected datagram of %d bytes", n)
	}

	require.True(p.t, errors.Is(err, os.ErrDeadlineExceeded), "unexpected read error: %v", err)
}
