package types

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
)

// Error is the ERR packet. On encode the message comes from the fixed code
// table and ErrMsg is ignored; on decode ErrMsg is whatever the peer sent.
type Error struct {
	ErrMsg    string
	ErrorCode ErrCode
	Opcode    OpCode
}

func NewError(code ErrCode) *Error {
	return &Error{Opcode: OpCodeError, ErrorCode: code, ErrMsg: errMsgs[code]}
}

func (e *Error) MarshalBinary() ([]byte, error) {
	msg, ok := errMsgs[e.ErrorCode]
	if !ok {
		return nil, fmt.Errorf("%w: %d", utils.ErrUnknownErrCode, e.ErrorCode)
	}

	b := new(bytes.Buffer)
	b.Grow(2 + 2 + len(msg) + 1)

	if err := binary.Write(b, binary.BigEndian, OpCodeError); err != nil {
		return nil, fmt.Errorf("error while writing opcode: %w", err)
	}

	if err := binary.Write(b, binary.BigEndian, e.ErrorCode); err != nil {
		return nil, fmt.Errorf("error while writing error code: %w", err)
	}

	b.WriteString(msg)
	b.WriteByte(0)

	return b.Bytes(), nil
}

func (e *Error) UnmarshalBinary(data []byte) error {
	if len(data) < 5 {
		return &utils.ProtocolError{Reason: "malformed ERR packet"}
	}

	e.Opcode = OpCode(binary.BigEndian.Uint16(data))
	if e.Opcode != OpCodeError {
		return utils.ErrWrongOpCode
	}

	e.ErrorCode = ErrCode(binary.BigEndian.Uint16(data[2:4]))

	msg := data[4:]
	if msg[len(msg)-1] == 0 {
		msg = msg[:len(msg)-1]
	}

	e.ErrMsg = string(msg)

	return nil
}

func (e *Error) String() string {
	return fmt.Sprintf("ERR code=%d msg=%q", e.ErrorCode, e.ErrMsg)
}
