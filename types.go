package axi4bus

import "github.com/behrlich/axi4bus/internal/constants"

// Token is a caller-chosen or engine-generated opaque identity, compared by
// value but required to be unique across currently active requests (spec
// §3, §9 "opaque tokens"). Zero is never issued by the engine's
// auto-generator, so it doubles as the caller sentinel "no token yet".
type Token uint64

// Logger is the logging interface engines accept. *logging.Logger
// satisfies it; nil engines fall back to silence.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// WriteRequest is a caller-submitted write (spec §3).
type WriteRequest struct {
	Address   uint64
	Data      []byte
	BurstType constants.BurstType // NewWriteRequest sets INCR; the zero value is FIXED
	SizeLog2  int                 // -1 means "use the full bus width"
	Attrs     Attributes
	Token     Token // 0 means "engine assigns one"
}

// ReadRequest is a caller-submitted read (spec §3).
type ReadRequest struct {
	Address   uint64
	Length    int
	BurstType constants.BurstType
	SizeLog2  int
	Attrs     Attributes
	Token     Token
}

// WriteResult is the caller-visible outcome of a completed write (spec §3).
type WriteResult struct {
	Address  uint64
	Length   int
	Response constants.ResponseCode
	// BeatResponses records every beat's response code in arrival order;
	// Response collapses this vector per the "last non-OKAY wins" rule
	// preserved from the original implementation (spec §9 ambiguity 1).
	BeatResponses []constants.ResponseCode
	Users         []uint32
	Token         Token
}

// ReadResult is the caller-visible outcome of a completed read (spec §3).
type ReadResult struct {
	Address       uint64
	Data          []byte
	Response      constants.ResponseCode
	BeatResponses []constants.ResponseCode
	Users         []uint32
	Token         Token
}

// NewWriteRequest builds a WriteRequest with the spec's defaults applied
// (INCR burst, auto size, default attributes); callers only need to
// override what's non-default.
func NewWriteRequest(address uint64, data []byte) WriteRequest {
	return WriteRequest{
		Address:   address,
		Data:      data,
		BurstType: BurstIncr,
		SizeLog2:  -1,
		Attrs:     DefaultAttributes(),
	}
}

// NewReadRequest builds a ReadRequest with the spec's defaults applied.
func NewReadRequest(address uint64, length int) ReadRequest {
	return ReadRequest{
		Address:   address,
		Length:    length,
		BurstType: BurstIncr,
		SizeLog2:  -1,
		Attrs:     DefaultAttributes(),
	}
}
