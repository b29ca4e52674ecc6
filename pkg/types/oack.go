package types

import (
	"encoding/binary"
	"fmt"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
)

//	+-------+---~~---+---+---~~---+---+---~~---+---+---~~---+---+
//	|  opc  |  opt1  | 0 | value1 | 0 |  optN  | 0 | valueN | 0 |
//	+-------+---~~---+---+---~~---+---+---~~---+---+---~~---+---+
type OAck struct {
	Options Options
	Opcode  OpCode
}

func (o *OAck) MarshalBinary() ([]byte, error) {
	opts, err := o.Options.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("error while writing options: %w", err)
	}

	b := make([]byte, 2, 2+len(opts))
	binary.BigEndian.PutUint16(b, uint16(OpCodeOACK))

	return append(b, opts...), nil
}

func (o *OAck) UnmarshalBinary(data []byte) error {
	if len(data) < 2 {
		return &utils.ProtocolError{Reason: "oack packet too short"}
	}

	o.Opcode = OpCode(binary.BigEndian.Uint16(data))
	if o.Opcode != OpCodeOACK {
		return utils.ErrWrongOpCode
	}

	return o.Options.UnmarshalBinary(data[2:])
}

func (o *OAck) String() string {
	return fmt.Sprintf("OACK %s", o.Options)
}

// MatchOptions merges the options a server offered in an OACK into the ones
// that were requested. Every offered name must have been requested; blksize
// must lie within [MinBlockSize, MaxBlockSize]. Requested options the server
// left out keep their requested value.
func MatchOptions(requested, offered Options) (Options, error) {
	negotiated := requested.Clone()

	for _, name := range offered.Names() {
		if !requested.Has(name) {
			return Options{}, &utils.NegotiationError{Reason: fmt.Sprintf("unsupported option: %s", name)}
		}

		v, _ := offered.Get(name)

		if name != OptBlockSize {
			negotiated.Set(name, v)

			continue
		}

		size, ok := v.Int()
		if !ok || size < MinBlockSize || size > MaxBlockSize {
			return Options{}, &utils.NegotiationError{Reason: fmt.Sprintf("offered blksize %q out of range", v)}
		}

		negotiated.Set(name, IntValue(size))
	}

	return negotiated, nil
}
