package types

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
)

// Data carries one block of file content. An empty payload is a valid final
// block, which is how a transfer whose length is a multiple of the block size
// (or zero) ends.
type Data struct {
	Payload  []byte
	BlockNum uint16
	Opcode   OpCode
}

func (d *Data) MarshalBinary() ([]byte, error) {
	if len(d.Payload) > MaxBlockSize {
		return nil, utils.ErrPayloadTooBig
	}

	b := new(bytes.Buffer)
	b.Grow(2 + 2 + len(d.Payload))

	if err := binary.Write(b, binary.BigEndian, OpCodeDATA); err != nil {
		return nil, fmt.Errorf("error while writing opcode: %w", err)
	}

	if err := binary.Write(b, binary.BigEndian, d.BlockNum); err != nil {
		return nil, fmt.Errorf("error while writing block#: %w", err)
	}

	b.Write(d.Payload)

	return b.Bytes(), nil
}

func (d *Data) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return &utils.ProtocolError{Reason: "data packet too short"}
	}

	d.Opcode = OpCode(binary.BigEndian.Uint16(data))
	if d.Opcode != OpCodeDATA {
		return utils.ErrWrongOpCode
	}

	d.BlockNum = binary.BigEndian.Uint16(data[2:4])
	d.Payload = data[4:]

	return nil
}

func (d *Data) String() string {
	return fmt.Sprintf("DAT block=%d len=%d", d.BlockNum, len(d.Payload))
}
