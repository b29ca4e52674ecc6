package utils

import (
	"errors"
	"fmt"
)

var (
	ErrWrongOpCode      = errors.New("error: invalid operation code")
	ErrPayloadTooBig    = errors.New("error: payload exceeds maximum block size")
	ErrEmptyFilename    = errors.New("error: filename must be non-empty and free of NUL bytes")
	ErrUnsupportedMode  = errors.New("error: unsupported transfer mode")
	ErrUnknownErrCode   = errors.New("error: unknown error code")
	ErrInvalidBlockSize = errors.New("error: invalid blksize")
	ErrMaxTimeouts      = errors.New("error: hit max timeouts, giving up")
	ErrMaxDuplicates    = errors.New("error: max duplicates reached")
	ErrNotConnected     = errors.New("error: no remote host, use connect first")
)

// ProtocolError reports a datagram that does not follow the wire format.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s", e.Reason)
}

// NegotiationError reports an OACK whose options can not be accepted.
type NegotiationError struct {
	Reason string
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation error: %s", e.Reason)
}

// SequenceError reports a well formed packet arriving where the transfer does
// not allow it.
type SequenceError struct {
	Reason string
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("sequence error: %s", e.Reason)
}

type TransportError struct {
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport error: %s", e.Reason)
	}

	return fmt.Sprintf("transport error: %s: %s", e.Reason, e.Err.Error())
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// PeerError carries an ERR packet sent by the remote side.
type PeerError struct {
	Msg  string
	Code uint16
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Msg)
}
