package types

import (
	"encoding/binary"
	"fmt"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
)

type Ack struct {
	Opcode   OpCode
	BlockNum uint16
}

func (a *Ack) MarshalBinary() ([]byte, error) {
	b := make([]byte, 4)

	binary.BigEndian.PutUint16(b, uint16(OpCodeACK))
	binary.BigEndian.PutUint16(b[2:], a.BlockNum)

	return b, nil
}

func (a *Ack) UnmarshalBinary(data []byte) error {
	if len(data) != 4 {
		return &utils.ProtocolError{Reason: fmt.Sprintf("ack packet of %d bytes", len(data))}
	}

	a.Opcode = OpCode(binary.BigEndian.Uint16(data))
	if a.Opcode != OpCodeACK {
		return utils.ErrWrongOpCode
	}

	a.BlockNum = binary.BigEndian.Uint16(data[2:])

	return nil
}

func (a *Ack) String() string {
	return fmt.Sprintf("ACK block=%d", a.BlockNum)
}
