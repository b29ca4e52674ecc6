package types

import (
	"encoding"
	"encoding/binary"
	"fmt"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
)

type Packet interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
	fmt.Stringer
}

// Parse reads the opcode of a raw datagram and decodes it into the matching
// packet type.
func Parse(datagram []byte) (Packet, error) {
	if len(datagram) < 2 {
		return nil, &utils.ProtocolError{Reason: "datagram too short for opcode"}
	}

	var p Packet

	switch op := OpCode(binary.BigEndian.Uint16(datagram)); op {
	case OpCodeRRQ, OpCodeWRQ:
		p = &Request{}
	case OpCodeDATA:
		p = &Data{}
	case OpCodeACK:
		p = &Ack{}
	case OpCodeError:
		p = &Error{}
	case OpCodeOACK:
		p = &OAck{}
	default:
		return nil, &utils.ProtocolError{Reason: fmt.Sprintf("unsupported opcode: %d", op)}
	}

	if err := p.UnmarshalBinary(datagram); err != nil {
		return nil, err
	}

	return p, nil
}
