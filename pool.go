package tiffwindow

import "sync"

// Strip buffers for window.go's hot path: one decode call per strip a
// window touches, each needing a scratch buffer sized to that strip's
// raw (compressed) byte count. A COG tile is always one of a handful
// of fixed dimensions (256x256, 512x512, ...), which is why the COG
// tile-read path this package's pooling was originally modeled on gets
// away with a handful of fixed bucket sizes. A TIFF strip has no such
// clustering: RowsPerStrip is chosen by whatever encoder wrote the
// file, and strip size then scales continuously with RowsPerStrip times
// the row's byte width, so fixed buckets tuned for tile dimensions
// would either overshoot by several times or miss entirely on real
// images. Buffers are instead pooled by rounding up to the next power
// of two, the usual fit for a continuously-varying size distribution;
// at most one wasted doubling per buffer instead of a cliff to the next
// fixed bucket.
const (
	minPooledClass = 12 // 1<<12 == 4KB, about one scanline for most strips
	maxPooledClass = 23 // 1<<23 == 8MB, a large uncompressed strip
)

var sizeClassPools [maxPooledClass - minPooledClass + 1]sync.Pool

func init() {
	for i := range sizeClassPools {
		size := 1 << (minPooledClass + i)
		sizeClassPools[i].New = func() interface{} {
			buf := make([]byte, size)
			return &buf
		}
	}
}

// classFor returns the smallest pooled size class (a power of two) that
// is >= size, or a class beyond maxPooledClass if size exceeds every
// pooled tier.
func classFor(size int) int {
	c := minPooledClass
	for (1 << c) < size {
		c++
	}
	return c
}

// getBuffer returns a byte slice of at least size bytes. The returned
// slice may have spare capacity; putBuffer returns it to the pool it
// came from.
func getBuffer(size int) []byte {
	c := classFor(size)
	if c > maxPooledClass {
		return make([]byte, size)
	}
	bufPtr := sizeClassPools[c-minPooledClass].Get().(*[]byte)
	return (*bufPtr)[:size]
}

// putBuffer returns buf to the size class its capacity matches. A
// capacity that isn't exactly one of the pooled power-of-two sizes (the
// unpooled fallback from getBuffer, or a slice the caller reslices) is
// simply dropped.
func putBuffer(buf []byte) {
	c := cap(buf)
	if c < 1<<minPooledClass || c > 1<<maxPooledClass {
		return
	}
	class := classFor(c)
	if 1<<class != c {
		return
	}
	buf = buf[:c]
	sizeClassPools[class-minPooledClass].Put(&buf)
}
