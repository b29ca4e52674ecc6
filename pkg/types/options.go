package types

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
)

// OptionValue is either a raw string, as read from the wire, or an integer that
// has already been validated by whoever built it.
type OptionValue struct {
	str   string
	num   int
	isInt bool
}

func StringValue(s string) OptionValue {
	return OptionValue{str: s}
}

func IntValue(n int) OptionValue {
	return OptionValue{num: n, isInt: true}
}

// Int returns the integer form of v. String values are parsed as decimal.
func (v OptionValue) Int() (int, bool) {
	if v.isInt {
		return v.num, true
	}

	n, err := strconv.Atoi(v.str)
	if err != nil {
		return 0, false
	}

	return n, true
}

func (v OptionValue) IsInt() bool {
	return v.isInt
}

func (v OptionValue) String() string {
	if v.isInt {
		return strconv.Itoa(v.num)
	}

	return v.str
}

// Options keeps option names in insertion order so encoding is deterministic.
type Options struct {
	names  []string
	values map[string]OptionValue
}

func NewOptions() Options {
	return Options{values: make(map[string]OptionValue)}
}

func (o *Options) Set(name string, v OptionValue) {
	if o.values == nil {
		o.values = make(map[string]OptionValue)
	}

	if _, ok := o.values[name]; !ok {
		o.names = append(o.names, name)
	}

	o.values[name] = v
}

func (o Options) Get(name string) (OptionValue, bool) {
	v, ok := o.values[name]

	return v, ok
}

func (o Options) Has(name string) bool {
	_, ok := o.values[name]

	return ok
}

func (o Options) Names() []string {
	names := make([]string, len(o.names))
	copy(names, o.names)

	return names
}

func (o Options) Len() int {
	return len(o.names)
}

func (o Options) Clone() Options {
	c := NewOptions()
	for _, name := range o.names {
		c.Set(name, o.values[name])
	}

	return c
}

// Equal compares names and rendered values; order is ignored.
func (o Options) Equal(other Options) bool {
	if o.Len() != other.Len() {
		return false
	}

	for _, name := range o.names {
		v, ok := other.Get(name)
		if !ok || v.String() != o.values[name].String() {
			return false
		}
	}

	return true
}

// BlockSize returns the blksize option, or DefaultBlockSize when it is absent
// or not an integer.
func (o Options) BlockSize() int {
	v, ok := o.Get(OptBlockSize)
	if !ok {
		return DefaultBlockSize
	}

	n, ok := v.Int()
	if !ok {
		return DefaultBlockSize
	}

	return n
}

func (o Options) String() string {
	pairs := make([]string, 0, len(o.names))
	for _, name := range o.names {
		pairs = append(pairs, fmt.Sprintf("%s=%s", name, o.values[name]))
	}

	return strings.Join(pairs, " ")
}

func (o Options) MarshalBinary() ([]byte, error) {
	b := new(bytes.Buffer)

	for _, name := range o.names {
		val := o.values[name].String()

		b.Grow(len(name) + len(val) + 2)
		b.WriteString(name)
		b.WriteByte(0)
		b.WriteString(val)
		b.WriteByte(0)
	}

	return b.Bytes(), nil
}

// UnmarshalBinary replaces o with the options held in data. Every string in
// data must be non-empty and NUL terminated, and they must pair up.
func (o *Options) UnmarshalBinary(data []byte) error {
	parsed := NewOptions()

	if len(data) == 0 {
		*o = parsed

		return nil
	}

	var fields []string

	start := 0

	for i, c := range data {
		if c != 0 {
			continue
		}

		if i == start {
			return &utils.ProtocolError{Reason: "invalid options in buffer"}
		}

		fields = append(fields, string(data[start:i]))
		start = i + 1
	}

	if start != len(data) || len(fields)%2 != 0 {
		return &utils.ProtocolError{Reason: "malformed option list"}
	}

	for i := 0; i < len(fields); i += 2 {
		parsed.Set(fields[i], StringValue(fields[i+1]))
	}

	*o = parsed

	return nil
}
