package tiffwindow

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
	tifflzw "golang.org/x/image/tiff/lzw"
)

// Compression identifies the codec a strip or tile was compressed with.
// None, CCITT, and PackBits are the three values spec.md requires every
// reader to recognize; LZW and Deflate are carried in as real-world
// extensions since neither is named a Non-goal.
type Compression uint16

const (
	CompressionNone     Compression = 1
	CompressionCCITT    Compression = 2
	CompressionLZW      Compression = 5
	CompressionDeflate  Compression = 8
	CompressionPackBits Compression = 32773
)

func compressionFromShort(v uint16) (Compression, bool) {
	switch Compression(v) {
	case CompressionNone, CompressionCCITT, CompressionLZW, CompressionDeflate, CompressionPackBits:
		return Compression(v), true
	default:
		return 0, false
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionCCITT:
		return "CCITT"
	case CompressionLZW:
		return "LZW"
	case CompressionDeflate:
		return "Deflate"
	case CompressionPackBits:
		return "PackBits"
	default:
		return "Unknown"
	}
}

// decodeStrip fills out (exactly the expected decompressed length) from
// src, the raw strip bytes read from the file. For CompressionNone, src
// is copied verbatim; out must then be at most len(src).
func decodeStrip(c Compression, src []byte, out []byte) error {
	switch c {
	case CompressionNone:
		if len(src) < len(out) {
			return wrapErr(KindUnexpectedEOF, "uncompressed strip shorter than expected", io.ErrUnexpectedEOF)
		}
		copy(out, src[:len(out)])
		return nil
	case CompressionPackBits:
		return decodePackBits(src, out)
	case CompressionLZW:
		return decodeLZW(src, out)
	case CompressionDeflate:
		return decodeDeflate(src, out)
	case CompressionCCITT:
		return newErr(KindNotImplemented, "CCITT decompression is not implemented")
	default:
		return newErr(KindUnknownCompression, "unrecognized compression value")
	}
}

func decodeLZW(src []byte, out []byte) error {
	r := tifflzw.NewReader(bytes.NewReader(src), tifflzw.MSB, 8)
	defer r.Close()
	if _, err := io.ReadFull(r, out); err != nil {
		return wrapErr(KindUnexpectedEOF, "LZW stream shorter than expected", err)
	}
	return nil
}

func decodeDeflate(src []byte, out []byte) error {
	r := flate.NewReader(bytes.NewReader(src))
	defer r.Close()
	if _, err := io.ReadFull(r, out); err != nil {
		return wrapErr(KindUnexpectedEOF, "Deflate stream shorter than expected", err)
	}
	return nil
}

// packBitsState is the PackBits decoder's explicit state, per spec.md
// §4.5: a control byte is read once per AwaitControl step, then the
// decoder spends zero or more steps draining a literal run or a
// repeated run before returning to AwaitControl.
type packBitsState int

const (
	pbAwaitControl packBitsState = iota
	pbEmittingLiteral
	pbEmittingRun
	pbDone
)

type packBitsDecoder struct {
	state     packBitsState
	src       []byte
	si        int
	out       []byte
	oi        int
	remaining int
	runByte   byte
}

// decodePackBits decodes a PackBits-compressed strip. Decoding stops
// when out is full or src is exhausted, whichever comes first; bytes of
// out beyond an early termination are left untouched. A single run or
// literal that would write past the end of out is a fatal overrun,
// distinct from ordinary exhaustion.
func decodePackBits(src []byte, out []byte) error {
	d := &packBitsDecoder{src: src, out: out}
	return d.run()
}

func (d *packBitsDecoder) run() error {
	for d.state != pbDone {
		if err := d.step(); err != nil {
			return err
		}
	}
	return nil
}

func (d *packBitsDecoder) step() error {
	switch d.state {
	case pbAwaitControl:
		return d.stepAwaitControl()
	case pbEmittingRun:
		return d.stepEmittingRun()
	case pbEmittingLiteral:
		return d.stepEmittingLiteral()
	default:
		return nil
	}
}

func (d *packBitsDecoder) stepAwaitControl() error {
	if d.oi >= len(d.out) || d.si >= len(d.src) {
		d.state = pbDone
		return nil
	}
	n := int8(d.src[d.si])
	d.si++
	switch {
	case n == -128:
		// No-op control byte; stay in AwaitControl.
		return nil
	case n < 0:
		if d.si >= len(d.src) {
			d.state = pbDone
			return nil
		}
		d.runByte = d.src[d.si]
		d.si++
		d.remaining = 1 - int(n)
		d.state = pbEmittingRun
		return nil
	default:
		d.remaining = int(n) + 1
		d.state = pbEmittingLiteral
		return nil
	}
}

func (d *packBitsDecoder) stepEmittingRun() error {
	avail := len(d.out) - d.oi
	if d.remaining > avail {
		return newErr(KindCodecOverrun, "PackBits run overruns output buffer")
	}
	for k := 0; k < d.remaining; k++ {
		d.out[d.oi+k] = d.runByte
	}
	d.oi += d.remaining
	d.remaining = 0
	d.state = pbAwaitControl
	return nil
}

func (d *packBitsDecoder) stepEmittingLiteral() error {
	avail := len(d.out) - d.oi
	if d.remaining > avail {
		return newErr(KindCodecOverrun, "PackBits literal run overruns output buffer")
	}
	srcAvail := len(d.src) - d.si
	if srcAvail < d.remaining {
		copy(d.out[d.oi:d.oi+srcAvail], d.src[d.si:d.si+srcAvail])
		d.oi += srcAvail
		d.si += srcAvail
		d.state = pbDone
		return nil
	}
	copy(d.out[d.oi:d.oi+d.remaining], d.src[d.si:d.si+d.remaining])
	d.oi += d.remaining
	d.si += d.remaining
	d.remaining = 0
	d.state = pbAwaitControl
	return nil
}
