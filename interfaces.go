package axi4bus

import "github.com/behrlich/axi4bus/internal/interfaces"

// The channel contract (spec §6.2) and its transaction/beat types live in
// internal/interfaces so both this package and membus can depend on them
// without a cycle; these aliases are the public names callers implementing
// their own channel driver should use.
type (
	AWTransaction = interfaces.AWTransaction
	ARTransaction = interfaces.ARTransaction
	WBeat         = interfaces.WBeat
	BBeat         = interfaces.BBeat
	RBeat         = interfaces.RBeat

	AWChannel = interfaces.AWChannel
	ARChannel = interfaces.ARChannel
	WChannel  = interfaces.WChannel
	BChannel  = interfaces.BChannel
	RChannel  = interfaces.RChannel

	ChannelSet = interfaces.ChannelSet
)

// Observer and NoOpObserver are declared in metrics.go; they are
// structurally identical to interfaces.Observer so *Manager can hand them
// straight to the engine packages without a wrapper.
var (
	_ interfaces.Observer = NoOpObserver{}
	_ interfaces.Observer = (*MetricsObserver)(nil)
)
