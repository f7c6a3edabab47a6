// Package interfaces provides internal interface definitions for axi4bus.
// These are separate from the public package to avoid circular imports
// between the root package and internal engine packages.
package interfaces

import (
	"context"

	"github.com/behrlich/axi4bus/internal/constants"
)

// AWTransaction carries the fields of a single write-address handshake.
type AWTransaction struct {
	ID      uint32
	Addr    uint64
	Len     uint8 // beats - 1, per AXI4 encoding
	Size    uint8 // size_log2
	Burst   constants.BurstType
	Lock    uint8
	Cache   uint8
	Prot    uint8
	QoS     uint8
	Region  uint8
	User    uint32
}

// ARTransaction carries the fields of a single read-address handshake.
type ARTransaction struct {
	ID     uint32
	Addr   uint64
	Len    uint8
	Size   uint8
	Burst  constants.BurstType
	Lock   uint8
	Cache  uint8
	Prot   uint8
	QoS    uint8
	Region uint8
	User   uint32
}

// WBeat carries one W-channel beat.
type WBeat struct {
	Data  []byte // exactly byte_width bytes
	Strb  uint64 // write-strobe mask, one bit per byte lane
	Last  bool
	User  uint32
}

// BBeat carries one B-channel beat.
type BBeat struct {
	ID   uint32
	Resp constants.ResponseCode
	User uint32
}

// RBeat carries one R-channel beat.
type RBeat struct {
	ID   uint32
	Data []byte
	Resp constants.ResponseCode
	Last bool
	User uint32
}

// AWChannel is the source side of the write-address channel.
type AWChannel interface {
	// Drive suspends until the downstream accepts the handshake.
	Drive(ctx context.Context, txn AWTransaction) error
}

// ARChannel is the source side of the read-address channel.
type ARChannel interface {
	Drive(ctx context.Context, txn ARTransaction) error
}

// WChannel is the source side of the write-data channel.
type WChannel interface {
	// Send is a non-blocking enqueue; the channel implementation serializes
	// beats in enqueue order and asserts Last as provided.
	Send(beat WBeat) error
}

// BChannel is the sink side of the write-response channel.
type BChannel interface {
	// Wait suspends until at least one beat is buffered.
	Wait(ctx context.Context) error
	// Recv pops the head beat. Must only be called after a successful Wait.
	Recv() (BBeat, error)
}

// RChannel is the sink side of the read-data channel.
type RChannel interface {
	Wait(ctx context.Context) error
	Recv() (RBeat, error)
}

// ChannelSet bundles the five handshake channels one engine needs. A write
// engine uses AW/W/B; a read engine uses AR/R.
type ChannelSet struct {
	AW AWChannel
	W  WChannel
	B  BChannel
	AR ARChannel
	R  RChannel

	// ByteWidth is the bus data width in bytes (wdata_width / 8).
	ByteWidth int
	// IDWidth is the number of bits in awid/bid (and arid/rid).
	IDWidth int
}

// Logger is the narrow logging interface engines accept; implementations
// that want structured fields satisfy it via *logging.Logger.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Observer receives per-burst and per-beat telemetry. Implementations must
// be safe for concurrent use, since issue and response tasks call them from
// different goroutines.
type Observer interface {
	ObserveBurstIssued(beats int, bytes uint64)
	ObserveBeatTransferred(resp constants.ResponseCode)
	ObserveCreditWait(waitedNs uint64)
	ObserveRequestComplete(isWrite bool, bytes uint64, latencyNs uint64)
}

// NoOpObserver discards everything.
type NoOpObserver struct{}

func (NoOpObserver) ObserveBurstIssued(int, uint64)                {}
func (NoOpObserver) ObserveBeatTransferred(constants.ResponseCode) {}
func (NoOpObserver) ObserveCreditWait(uint64)                      {}
func (NoOpObserver) ObserveRequestComplete(bool, uint64, uint64)   {}

var _ Observer = NoOpObserver{}
