package wire

import (
	"errors"
	"sync"
)

// ErrBufferReleased is the panic value raised when a Buffer is used after
// Take or Free.
var ErrBufferReleased = errors.New("wire: buffer already taken or freed")

// Buffer owns the bytes of one encoded display list until they are handed
// off with Take or returned with Free. Exactly one of the two must be called.
type Buffer struct {
	data []byte
	done bool
}

var bufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 0, 4096)
		return &b
	},
}

// newBuffer returns a pooled buffer with length n.
func newBuffer(n int) *Buffer {
	p := bufPool.Get().(*[]byte)
	b := *p
	if cap(b) < n {
		b = make([]byte, n)
	}
	return &Buffer{data: b[:n]}
}

// Bytes returns a view of the encoded bytes. The view is valid until Take or
// Free.
func (b *Buffer) Bytes() []byte {
	b.live()
	return b.data
}

// Len returns the encoded length.
func (b *Buffer) Len() int {
	b.live()
	return len(b.data)
}

// Take transfers ownership of the bytes to the caller. The buffer becomes
// unusable and its bytes are never returned to the pool.
func (b *Buffer) Take() []byte {
	b.live()
	data := b.data
	b.data = nil
	b.done = true
	return data
}

// Free returns the bytes to the pool. Any view obtained through Bytes must
// no longer be used.
func (b *Buffer) Free() {
	b.live()
	data := b.data[:0]
	b.data = nil
	b.done = true
	bufPool.Put(&data)
}

// Released reports whether Take or Free was called.
func (b *Buffer) Released() bool { return b.done }

func (b *Buffer) live() {
	if b.done {
		panic(ErrBufferReleased)
	}
}
