package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
)

//	2 bytes    string   1 byte     string   1 byte   [string 1 byte string 1 byte]*
//	-----------------------------------------------------------------------------
//	| 01/02 |  Filename  |   0  |    Mode    |   0  |  opt  |  0  |  value  |  0  |
//	-----------------------------------------------------------------------------
type Request struct {
	Filename string
	Mode     string
	Options  Options
	Opcode   OpCode
}

func (r *Request) MarshalBinary() ([]byte, error) {
	if r.Opcode != OpCodeRRQ && r.Opcode != OpCodeWRQ {
		return nil, utils.ErrWrongOpCode
	}

	if r.Filename == "" || strings.IndexByte(r.Filename, 0) >= 0 {
		return nil, utils.ErrEmptyFilename
	}

	if !strings.EqualFold(r.Mode, ModeOctet) {
		return nil, fmt.Errorf("%w: %q", utils.ErrUnsupportedMode, r.Mode)
	}

	opts, err := r.Options.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("error while writing options: %w", err)
	}

	b := new(bytes.Buffer)
	b.Grow(2 + len(r.Filename) + 1 + len(r.Mode) + 1 + len(opts))

	if err := binary.Write(b, binary.BigEndian, r.Opcode); err != nil {
		return nil, fmt.Errorf("error while writing opcode: %w", err)
	}

	b.WriteString(r.Filename)
	b.WriteByte(0)
	b.WriteString(r.Mode)
	b.WriteByte(0)
	b.Write(opts)

	return b.Bytes(), nil
}

func (r *Request) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return &utils.ProtocolError{Reason: "request too short"}
	}

	r.Opcode = OpCode(binary.BigEndian.Uint16(data))
	if r.Opcode != OpCodeRRQ && r.Opcode != OpCodeWRQ {
		return utils.ErrWrongOpCode
	}

	body := data[2:]

	var strs []string

	start := 0

	for i := 0; i < len(body) && len(strs) < 2; i++ {
		if body[i] == 0 {
			strs = append(strs, string(body[start:i]))
			start = i + 1
		}
	}

	if len(strs) != 2 {
		return &utils.ProtocolError{Reason: "malformed packet"}
	}

	r.Filename = strs[0]
	r.Mode = strs[1]

	if err := r.Options.UnmarshalBinary(body[start:]); err != nil {
		return err
	}

	return nil
}

func (r *Request) String() string {
	if r.Options.Len() == 0 {
		return fmt.Sprintf("%s file=%s mode=%s", r.Opcode, r.Filename, r.Mode)
	}

	return fmt.Sprintf("%s file=%s mode=%s %s", r.Opcode, r.Filename, r.Mode, r.Options)
}
