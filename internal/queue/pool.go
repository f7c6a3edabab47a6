package queue

import "sync"

// GetBuffer/PutBuffer provide pooled byte slices for per-beat R data: the
// in-memory slaves take each R beat's rdata buffer from GetBuffer, and the
// read engine's response task hands it back with PutBuffer once the beat
// has been copied into the assembled output. Uses size-bucketed pools with
// power-of-2 sizes; requests larger than the top bucket are allocated
// without pooling.
//
// Uses *[]byte pattern to avoid sync.Pool interface allocation overhead.

const (
	size1k  = 1 * 1024
	size4k  = 4 * 1024
	size16k = 16 * 1024
	size64k = 64 * 1024
)

// globalPool is the shared buffer pool for all read engines.
var globalPool = struct {
	pool1k  sync.Pool
	pool4k  sync.Pool
	pool16k sync.Pool
	pool64k sync.Pool
}{
	pool1k:  sync.Pool{New: func() any { b := make([]byte, size1k); return &b }},
	pool4k:  sync.Pool{New: func() any { b := make([]byte, size4k); return &b }},
	pool16k: sync.Pool{New: func() any { b := make([]byte, size16k); return &b }},
	pool64k: sync.Pool{New: func() any { b := make([]byte, size64k); return &b }},
}

// GetBuffer returns a pooled buffer of at least the requested size.
// Caller must call PutBuffer when done. Requests larger than the top
// bucket get a fresh, unpooled allocation.
func GetBuffer(size int) []byte {
	switch {
	case size <= size1k:
		return (*globalPool.pool1k.Get().(*[]byte))[:size]
	case size <= size4k:
		return (*globalPool.pool4k.Get().(*[]byte))[:size]
	case size <= size16k:
		return (*globalPool.pool16k.Get().(*[]byte))[:size]
	case size <= size64k:
		return (*globalPool.pool64k.Get().(*[]byte))[:size]
	default:
		return make([]byte, size)
	}
}

// PutBuffer returns a buffer to the pool. The buffer's capacity determines
// which pool it goes to; non-standard capacities (including the unpooled
// over-64KB case) are simply dropped.
func PutBuffer(buf []byte) {
	c := cap(buf)
	buf = buf[:c]
	switch c {
	case size1k:
		globalPool.pool1k.Put(&buf)
	case size4k:
		globalPool.pool4k.Put(&buf)
	case size16k:
		globalPool.pool16k.Put(&buf)
	case size64k:
		globalPool.pool64k.Put(&buf)
	}
}
