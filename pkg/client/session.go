package client

import (
	"net"

	"github.com/Wa4h1h/go-tftp-client/pkg/types"
)

// State is the phase a download is in.
//
//	nil  - nothing sent yet
//	rrq  - read request sent, waiting for OACK or DAT
//	wrq  - write request sent (not used by downloads)
//	dat  - transferring data
//	oack - OACK received, negotiating options
//	ack  - OACK acknowledged, waiting for the first block
//	err  - fatal problem, transfer aborted
//	fin  - transfer completed
type State uint8

const (
	StateNil State = iota
	StateRRQ
	StateWRQ
	StateDAT
	StateOACK
	StateACK
	StateErr
	StateFin
	numStates
)

var stateNames = [numStates]string{"nil", "rrq", "wrq", "dat", "oack", "ack", "err", "fin"}

func (s State) Valid() bool {
	return s < numStates
}

func (s State) Terminal() bool {
	return s == StateErr || s == StateFin
}

func (s State) String() string {
	if !s.Valid() {
		return "invalid"
	}

	return stateNames[s]
}

// Session is the per-download record. It is created by Download and never
// shared between transfers.
type Session struct {
	host    string
	addr    *net.UDPAddr
	tid     int
	state   State
	options types.Options
	errors  int
	dups    map[uint16]int
}

func newSession(host string, addr *net.UDPAddr, options types.Options) *Session {
	return &Session{
		host:    host,
		addr:    addr,
		options: options.Clone(),
		dups:    make(map[uint16]int),
	}
}

// setState ignores values outside the enumerated set.
func (s *Session) setState(state State) {
	if state.Valid() {
		s.state = state
	}
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Options() types.Options {
	return s.options.Clone()
}

func (s *Session) BlockSize() int {
	return s.options.BlockSize()
}

// accepts reports whether a datagram from src belongs to this transfer: it must
// come from the resolved host and, once known, from the learned transfer port.
func (s *Session) accepts(src *net.UDPAddr) bool {
	if !src.IP.Equal(s.addr.IP) {
		return false
	}

	return s.tid == 0 || s.tid == src.Port
}

func (s *Session) bind(src *net.UDPAddr) bool {
	if s.tid != 0 {
		return false
	}

	s.tid = src.Port

	return true
}

// peer is the server's transfer address, or the request address while no
// reply has been seen.
func (s *Session) peer() *net.UDPAddr {
	if s.tid == 0 {
		return s.addr
	}

	return &net.UDPAddr{IP: s.addr.IP, Port: s.tid, Zone: s.addr.Zone}
}

func (s *Session) duplicate(block uint16) int {
	s.dups[block]++

	return s.dups[block]
}

func (s *Session) duplicates() int {
	total := 0
	for _, n := range s.dups {
		total += n
	}

	return total
}
