package axi4bus

import (
	"context"

	"github.com/behrlich/axi4bus/internal/constants"
)

// BusParams describes the geometry of the bus this engine drives: data
// width, ID width, and the self-imposed burst-length ceiling (independent
// of the protocol's hard 256-beat limit).
type BusParams struct {
	// ByteWidth is wdata_width / 8. Determines the beat granularity when a
	// request omits size_log2.
	ByteWidth int

	// IDWidth sizes each engine's credit pool to 2^IDWidth free IDs.
	IDWidth int

	// MaxBurstLen caps beats per issued burst; callers may set this below
	// the protocol ceiling (256) to exercise multi-burst plans more often.
	MaxBurstLen int
}

// DefaultBusParams returns a 32-bit-wide, 4-bit-ID bus: byte_width=4,
// 16 outstanding IDs per engine, max_burst_len=256.
func DefaultBusParams() BusParams {
	return BusParams{
		ByteWidth:   constants.DefaultDataWidth / 8,
		IDWidth:     constants.DefaultIDWidth,
		MaxBurstLen: constants.DefaultMaxBurstLen,
	}
}

// Validate checks the bus geometry is self-consistent (spec §6.3).
func (p BusParams) Validate() error {
	if p.ByteWidth <= 0 {
		return NewError("BusParams.Validate", ErrCodeInvalidSize, "byte width must be positive")
	}
	if p.IDWidth <= 0 || p.IDWidth > 16 {
		return NewError("BusParams.Validate", ErrCodeInvalidSize, "id width must be in [1,16]")
	}
	if p.MaxBurstLen <= 0 || p.MaxBurstLen > MaxBurstLen {
		return NewError("BusParams.Validate", ErrCodeInvalidSize, "max burst len must be in [1,256]")
	}
	return nil
}

// Attributes carries the AXI attribute passthrough fields a caller may set
// on a request. Fields are passed to AW/AR as given, so a zero Attributes
// drives cache 0 and prot 0; NewWriteRequest/NewReadRequest start from
// DefaultAttributes instead.
type Attributes struct {
	Lock   uint8
	Cache  uint8
	Prot   uint8
	QoS    uint8
	Region uint8
	User   uint32
}

// DefaultAttributes returns the defaults named in spec §6.1.
func DefaultAttributes() Attributes {
	return Attributes{
		Lock:   DefaultLock,
		Cache:  DefaultCache,
		Prot:   DefaultProt,
		QoS:    DefaultQoS,
		Region: DefaultRegion,
		User:   DefaultUser,
	}
}

// Options bundles the cross-cutting dependencies a Manager (or a bare
// engine) accepts. Context cancels in-flight handshake waits; Logger is
// silent when nil; a nil Observer defaults to a MetricsObserver recording
// into the Manager's Metrics.
type Options struct {
	Context  context.Context
	Logger   Logger
	Observer Observer
}
