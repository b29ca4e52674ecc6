package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Wa4h1h/go-tftp-client/pkg/types"
	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
)

// transfer drives the receive loop of one download.
type transfer struct {
	l         *zap.SugaredLogger
	conn      *net.UDPConn
	session   *Session
	sink      io.Writer
	hook      PacketHook
	tracer    Tracer
	stats     *Stats
	timeout   time.Duration
	timeouts  int
	lastAcked uint16
}

func canceled(ctx context.Context) error {
	return &utils.TransportError{Reason: "transfer canceled", Err: ctx.Err()}
}

func (t *transfer) fail(err error) error {
	t.session.setState(StateErr)

	return err
}

func (t *transfer) send(p types.Packet, to *net.UDPAddr) error {
	b, err := p.MarshalBinary()
	if err != nil {
		return fmt.Errorf("error while marshalling %s: %w", p, err)
	}

	if _, err := t.conn.WriteToUDP(b, to); err != nil {
		return &utils.TransportError{Reason: fmt.Sprintf("error while sending %s", p), Err: err}
	}

	if t.tracer != nil {
		t.tracer.Trace(Sent, p)
	}

	t.l.Debugf("sent %s to %s", p, to)

	return nil
}

func (t *transfer) ack(block uint16) error {
	return t.send(&types.Ack{Opcode: types.OpCodeACK, BlockNum: block}, t.session.peer())
}

func (t *transfer) request(filename string) error {
	rrq := &types.Request{
		Opcode:   types.OpCodeRRQ,
		Filename: filename,
		Mode:     types.ModeOctet,
		Options:  t.session.Options(),
	}

	t.l.Infof("sending download request for %s to %s", filename, t.session.addr)

	if err := t.send(rrq, t.session.addr); err != nil {
		return t.fail(err)
	}

	t.session.setState(StateRRQ)

	return nil
}

func (t *transfer) receive(ctx context.Context) error {
	datagram := make([]byte, types.DatagramSize)

	for {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
			if ctx.Err() != nil {
				return t.fail(canceled(ctx))
			}

			return t.fail(&utils.TransportError{Reason: "can not set read timeout", Err: err})
		}

		n, src, err := t.conn.ReadFromUDP(datagram)
		if err != nil {
			if ctx.Err() != nil {
				return t.fail(canceled(ctx))
			}

			if !errors.Is(err, os.ErrDeadlineExceeded) {
				return t.fail(&utils.TransportError{Reason: "error while reading datagram", Err: err})
			}

			t.timeouts++

			if t.timeouts >= types.TimeoutRetries {
				return t.fail(&utils.TransportError{
					Reason: fmt.Sprintf("no reply after %d timeouts", t.timeouts),
					Err:    utils.ErrMaxTimeouts,
				})
			}

			t.l.Warnf("timeout waiting for traffic, retrying (%d/%d)", t.timeouts, types.TimeoutRetries)

			continue
		}

		if !t.session.accepts(src) {
			t.l.Warnf("received traffic from %s, expected %s, discarding", src, t.session.peer())

			continue
		}

		p, err := types.Parse(bytes.Clone(datagram[:n]))
		if err != nil {
			return t.fail(err)
		}

		t.timeouts = 0

		if t.session.bind(src) {
			t.l.Debugf("set remote transfer port to %d", src.Port)
		}

		if t.tracer != nil {
			t.tracer.Trace(Received, p)
		}

		t.l.Debugf("received %s from %s", p, src)

		done, err := t.handle(p)
		if err != nil {
			return t.fail(err)
		}

		if done {
			t.session.setState(StateFin)

			return nil
		}
	}
}

func (t *transfer) handle(p types.Packet) (bool, error) {
	switch pkt := p.(type) {
	case *types.Data:
		return t.handleData(pkt)
	case *types.OAck:
		return false, t.handleOAck(pkt)
	case *types.Ack:
		return false, &utils.SequenceError{
			Reason: fmt.Sprintf("received ACK block %d from server while downloading", pkt.BlockNum),
		}
	case *types.Request:
		return false, &utils.SequenceError{Reason: fmt.Sprintf("received %s from server", pkt.Opcode)}
	case *types.Error:
		return false, &utils.PeerError{Code: uint16(pkt.ErrorCode), Msg: pkt.ErrMsg}
	default:
		return false, &utils.SequenceError{Reason: fmt.Sprintf("received unknown packet type %T", p)}
	}
}

func (t *transfer) handleData(d *types.Data) (bool, error) {
	switch int(d.BlockNum) {
	case int(t.lastAcked) + 1:
		t.lastAcked = d.BlockNum
		t.session.setState(StateDAT)

		if err := t.ack(t.lastAcked); err != nil {
			return false, err
		}

		if _, err := t.sink.Write(d.Payload); err != nil {
			return false, fmt.Errorf("error while writing block %d to sink: %w", d.BlockNum, err)
		}

		if t.hook != nil {
			t.hook(d)
		}

		t.stats.Bytes += int64(len(d.Payload))
		t.stats.Blocks++

		if len(d.Payload) < t.session.BlockSize() {
			t.l.Infof("end of file detected at block %d", d.BlockNum)

			return true, nil
		}

		return false, nil
	case int(t.lastAcked):
		dups := t.session.duplicate(d.BlockNum)
		if dups > types.MaxDuplicates {
			return false, &utils.TransportError{
				Reason: fmt.Sprintf("block %d received %d times", d.BlockNum, dups+1),
				Err:    utils.ErrMaxDuplicates,
			}
		}

		t.l.Warnf("dropping duplicate block %d, acking again", d.BlockNum)

		return false, t.ack(t.lastAcked)
	default:
		return false, &utils.SequenceError{
			Reason: fmt.Sprintf("received block %d but expected %d", d.BlockNum, int(t.lastAcked)+1),
		}
	}
}

func (t *transfer) handleOAck(o *types.OAck) error {
	if t.session.State() != StateRRQ {
		t.session.errors++
		t.l.Errorf("received OACK in state %s, ignoring", t.session.State())

		return nil
	}

	t.session.setState(StateOACK)

	negotiated, err := types.MatchOptions(t.session.options, o.Options)
	if err != nil {
		if errSend := t.send(types.NewError(types.ErrOptionNegotiation), t.session.peer()); errSend != nil {
			t.l.Errorf("error while rejecting options: %s", errSend.Error())
		}

		return fmt.Errorf("failed to negotiate options: %w", err)
	}

	t.session.options = negotiated
	t.l.Infof("negotiated options: %s", negotiated)

	if err := t.ack(0); err != nil {
		return err
	}

	t.session.setState(StateACK)

	return nil
}
