package types

import "time"

type OpCode uint16

const (
	OpCodeRRQ OpCode = iota + 1
	OpCodeWRQ
	OpCodeDATA
	OpCodeACK
	OpCodeError
	OpCodeOACK
)

func (o OpCode) String() string {
	switch o {
	case OpCodeRRQ:
		return "RRQ"
	case OpCodeWRQ:
		return "WRQ"
	case OpCodeDATA:
		return "DAT"
	case OpCodeACK:
		return "ACK"
	case OpCodeError:
		return "ERR"
	case OpCodeOACK:
		return "OACK"
	default:
		return "UNKNOWN"
	}
}

type ErrCode uint16

const (
	ErrNotDefined ErrCode = iota
	ErrFileNotFound
	ErrAccessViolation
	ErrDiskFull
	ErrIllegalTftpOp
	ErrUnknownTransferId
	ErrFileAlreadyExists
	ErrNoSuchUser
	ErrOptionNegotiation
)

// errMsgs is the fixed table used when encoding ERR packets.
var errMsgs = map[ErrCode]string{
	ErrFileNotFound:      "File not found",
	ErrAccessViolation:   "Access violation",
	ErrDiskFull:          "Disk full or allocation exceeded",
	ErrIllegalTftpOp:     "Illegal TFTP operation",
	ErrUnknownTransferId: "Unknown transfer ID",
	ErrFileAlreadyExists: "File already exists",
	ErrNoSuchUser:        "No such user",
	ErrOptionNegotiation: "Failed to negotiate options",
}

const ModeOctet = "octet"

const OptBlockSize = "blksize"

const (
	MinBlockSize     = 8
	DefaultBlockSize = 512
	MaxBlockSize     = 65536
	DatagramSize     = MaxBlockSize + 4
)

const (
	DefaultClientTimeout = 5 * time.Second
	MaxDuplicates        = 20
	TimeoutRetries       = 5
)
