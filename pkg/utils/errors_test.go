package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("download: %w", &TransportError{Reason: "no reply after 5 timeouts", Err: ErrMaxTimeouts})

	require.ErrorIs(t, err, ErrMaxTimeouts)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "no reply after 5 timeouts", transportErr.Reason)
	assert.Equal(t,
		"download: transport error: no reply after 5 timeouts: error: hit max timeouts, giving up",
		err.Error())
}

func TestTransportErrorWithoutCause(t *testing.T) {
	err := &TransportError{Reason: "closed"}

	assert.Equal(t, "transport error: closed", err.Error())
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestTaxonomyMessages(t *testing.T) {
	assert.Equal(t, "protocol error: malformed packet", (&ProtocolError{Reason: "malformed packet"}).Error())
	assert.Equal(t, "negotiation error: unsupported option: tsize",
		(&NegotiationError{Reason: "unsupported option: tsize"}).Error())
	assert.Equal(t, "sequence error: received block 5 but expected 1",
		(&SequenceError{Reason: "received block 5 but expected 1"}).Error())
	assert.Equal(t, "remote error 1: File not found", (&PeerError{Code: 1, Msg: "File not found"}).Error())
}
