// Package mempool keeps size-classed pools of intensity buffers so that
// separator detection over many pages does not allocate a fresh plane per
// image and orientation.
package mempool

import (
	"sync"
)

var bytePools sync.Map // key: size class (int), value: *sync.Pool

const step = 4096

// sizeClass rounds n up to the next multiple of 4 KiB.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func poolFor(cls int) *sync.Pool {
	pAny, _ := bytePools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]uint8, cls)
		return &buf
	}})
	return pAny.(*sync.Pool)
}

// GetBytes returns a zeroed buffer of length n. The caller should hand it
// back with PutBytes once nothing references it.
func GetBytes(n int) []uint8 {
	if n <= 0 {
		return nil
	}
	cls := sizeClass(n)
	bp, ok := poolFor(cls).Get().(*[]uint8)
	if !ok || cap(*bp) < cls {
		return make([]uint8, n)
	}
	buf := (*bp)[:n]
	clear(buf)
	return buf
}

// PutBytes returns buf to its pool. Nil and undersized buffers are dropped.
func PutBytes(buf []uint8) {
	if cap(buf) < step {
		return
	}
	// Buffers are filed under the largest class they can serve.
	cls := cap(buf) / step * step
	buf = buf[:cap(buf)]
	poolFor(cls).Put(&buf)
}
