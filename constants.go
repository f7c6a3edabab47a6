package axi4bus

import "github.com/behrlich/axi4bus/internal/constants"

// Re-export protocol constants for the public API.
const (
	MaxBurstLen    = constants.MaxBurstLen
	FourKiB        = constants.FourKiB
	DefaultIDWidth = constants.DefaultIDWidth

	DefaultLock   = constants.DefaultLock
	DefaultCache  = constants.DefaultCache
	DefaultProt   = constants.DefaultProt
	DefaultQoS    = constants.DefaultQoS
	DefaultRegion = constants.DefaultRegion
	DefaultUser   = constants.DefaultUser
)

// BurstType mirrors the AXI4 AxBURST encoding.
type BurstType = constants.BurstType

const (
	BurstFixed = constants.BurstFixed
	BurstIncr  = constants.BurstIncr
	BurstWrap  = constants.BurstWrap
)

// ResponseCode mirrors the AXI4 xRESP encoding.
type ResponseCode = constants.ResponseCode

const (
	RespOkay   = constants.RespOkay
	RespExOkay = constants.RespExOkay
	RespSlvErr = constants.RespSlvErr
	RespDecErr = constants.RespDecErr
)
