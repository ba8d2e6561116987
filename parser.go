package tiffwindow

import "io"

// maxIFDChainLength bounds the walk in nIfds/nthIFD independently of
// cycle detection: the visited-offset set catches any revisited offset,
// and this bound stops a pathological file whose chain of distinct
// offsets is simply very long.
const maxIFDChainLength = 1 << 16

// Parser walks a TIFF or BigTIFF byte stream: header recognition, then
// the IFD chain, then typed per-tag accessors on a single selected IFD.
// It holds no image data; OpenBytes (in window.go) reads strips through
// it on demand.
type Parser struct {
	stream         *RandomAccessReader
	bigTIFF        bool
	firstIFDOffset uint64
}

// NewParser reads the 8- or 16-byte TIFF/BigTIFF header from r and
// returns a Parser positioned to walk the IFD chain. r's pointer is left
// wherever the header read leaves it; every subsequent read in this
// package seeks explicitly first.
func NewParser(r io.ReadSeeker) (*Parser, error) {
	s := NewRandomAccessReader(r)

	b0, err := s.ReadChar()
	if err != nil {
		return nil, err
	}
	b1, err := s.ReadChar()
	if err != nil {
		return nil, err
	}

	var littleEndian bool
	switch {
	case b0 == 'I' && b1 == 'I':
		littleEndian = true
	case b0 == 'M' && b1 == 'M':
		littleEndian = false
	default:
		return nil, newErr(KindInvalidMagic, "first two bytes are neither \"II\" nor \"MM\"")
	}
	s.SetOrder(littleEndian)

	version, err := s.ReadU16()
	if err != nil {
		return nil, err
	}

	p := &Parser{stream: s}

	switch version {
	case 42:
		off, err := s.ReadU32()
		if err != nil {
			return nil, err
		}
		p.bigTIFF = false
		p.firstIFDOffset = uint64(off)
	case 43:
		if _, err := s.ReadU16(); err != nil { // offset byte size, always 8
			return nil, err
		}
		if _, err := s.ReadU16(); err != nil { // reserved, always 0
			return nil, err
		}
		off, err := s.ReadU64()
		if err != nil {
			return nil, err
		}
		p.bigTIFF = true
		p.firstIFDOffset = off
	default:
		return nil, newErr(KindInvalidMagic, "unrecognized TIFF version (want 42 or 43)")
	}

	return p, nil
}

// IsBigTIFF reports whether the stream uses 64-bit IFD offsets.
func (p *Parser) IsBigTIFF() bool { return p.bigTIFF }

func (p *Parser) offsetWidth() uint64 {
	if p.bigTIFF {
		return 8
	}
	return 4
}

// readOffset reads one offset-width unsigned field from the current
// stream position: 4 bytes for classic TIFF, 8 for BigTIFF.
func (p *Parser) readOffset() (uint64, error) {
	if p.bigTIFF {
		return p.stream.ReadU64()
	}
	v, err := p.stream.ReadU32()
	return uint64(v), err
}

// readIFD reads one Image File Directory starting at the given absolute
// offset: the entry count, each entry (inline or offset payload per
// size_of(kind, count) <= offset width), then the offset of the next
// IFD in the chain (0 if this is the last one).
func (p *Parser) readIFD(offset uint64) (*IFD, error) {
	if err := p.stream.Seek(int64(offset)); err != nil {
		return nil, err
	}

	var count uint64
	if p.bigTIFF {
		v, err := p.stream.ReadU64()
		if err != nil {
			return nil, err
		}
		count = v
	} else {
		v, err := p.stream.ReadU16()
		if err != nil {
			return nil, err
		}
		count = uint64(v)
	}

	ifd := newIFD()
	offsetWidth := p.offsetWidth()

	for i := uint64(0); i < count; i++ {
		rawTag, err := p.stream.ReadU16()
		if err != nil {
			return nil, err
		}
		rawType, err := p.stream.ReadU16()
		if err != nil {
			return nil, err
		}
		kind, ok := typeFromShort(rawType)
		if !ok {
			return nil, newErr(KindUnknownType, "IFD entry names an unrecognized field type")
		}
		cnt, err := p.readOffset()
		if err != nil {
			return nil, err
		}

		n := sizeOf(kind, cnt)
		var entry *Entry
		if n <= offsetWidth {
			buf := make([]byte, offsetWidth)
			if err := p.stream.ReadN(buf); err != nil {
				return nil, err
			}
			datum, err := decodeDatum(kind, cnt, buf[:n], p.stream.IsLittleEndian())
			if err != nil {
				return nil, err
			}
			entry = &Entry{Tag: tagFromShort(rawTag), Kind: kind, Count: cnt, IsOffset: false, Inline: datum}
		} else {
			off, err := p.readOffset()
			if err != nil {
				return nil, err
			}
			entry = &Entry{Tag: tagFromShort(rawTag), Kind: kind, Count: cnt, IsOffset: true, Offset: off}
		}
		ifd.insert(rawTag, entry)
	}

	next, err := p.readOffset()
	if err != nil {
		return nil, err
	}
	ifd.NextOffset = next

	return ifd, nil
}

// ifdChain walks the chain from the first IFD up to and including
// index upTo (0-based; ^uint64(0) walks the whole chain), detecting
// both repeated offsets and runaway length. It returns every IFD visited, so nthIFD and nIfds can share
// one walk.
func (p *Parser) ifdChain(upTo uint64) ([]*IFD, error) {
	var chain []*IFD
	visited := make(map[uint64]bool)
	offset := p.firstIFDOffset

	for offset != 0 {
		if visited[offset] {
			return nil, newErr(KindMalformedIFDChain, "IFD chain revisits an offset already seen")
		}
		if uint64(len(chain)) >= maxIFDChainLength {
			return nil, newErr(KindMalformedIFDChain, "IFD chain exceeds the maximum supported length")
		}
		visited[offset] = true

		ifd, err := p.readIFD(offset)
		if err != nil {
			return nil, err
		}
		chain = append(chain, ifd)

		if uint64(len(chain))-1 >= upTo && upTo != ^uint64(0) {
			break
		}
		offset = ifd.NextOffset
	}

	return chain, nil
}

// nIfds returns the number of IFDs in the chain.
func (p *Parser) nIfds() (uint64, error) {
	chain, err := p.ifdChain(^uint64(0))
	if err != nil {
		return 0, err
	}
	return uint64(len(chain)), nil
}

// nthIFD returns the i-th IFD (0-based) in the chain, KindIFDOutOfBounds
// if the chain is shorter than i+1.
func (p *Parser) nthIFD(i uint64) (*IFD, error) {
	chain, err := p.ifdChain(i)
	if err != nil {
		return nil, err
	}
	if i >= uint64(len(chain)) {
		return nil, newErr(KindIFDOutOfBounds, "requested series index exceeds the IFD chain length")
	}
	return chain[i], nil
}

// --- typed accessors on a single selected IFD ---

func (p *Parser) imageWidth(ifd *IFD) (uint64, error) {
	return p.requireU64(ifd, TagImageWidth)
}

func (p *Parser) imageLength(ifd *IFD) (uint64, error) {
	return p.requireU64(ifd, TagImageLength)
}

func (p *Parser) rowsPerStrip(ifd *IFD) (uint64, error) {
	e, ok := ifd.get(TagRowsPerStrip)
	if !ok {
		// Absent RowsPerStrip means the whole image is one strip.
		return p.imageLength(ifd)
	}
	return p.resolveU64(e)
}

func (p *Parser) samplesPerPixel(ifd *IFD) (uint64, error) {
	e, ok := ifd.get(TagSamplesPerPixel)
	if !ok {
		return 1, nil
	}
	return p.resolveU64(e)
}

func (p *Parser) bitsPerSample(ifd *IFD) ([]uint64, error) {
	e, ok := ifd.get(TagBitsPerSample)
	if !ok {
		return []uint64{1}, nil
	}
	return p.resolveVecU64(e)
}

func (p *Parser) compression(ifd *IFD) (Compression, error) {
	e, ok := ifd.get(TagCompression)
	if !ok {
		return CompressionNone, nil
	}
	v, err := p.resolveU64(e)
	if err != nil {
		return 0, err
	}
	c, ok := compressionFromShort(uint16(v))
	if !ok {
		return 0, newErr(KindUnknownCompression, "unrecognized Compression tag value")
	}
	return c, nil
}

func (p *Parser) planarConfiguration(ifd *IFD) (uint64, error) {
	e, ok := ifd.get(TagPlanarConfiguration)
	if !ok {
		return 1, nil // chunky
	}
	return p.resolveU64(e)
}

func (p *Parser) fillOrder(ifd *IFD) (uint64, error) {
	e, ok := ifd.get(TagFillOrder)
	if !ok {
		return 1, nil
	}
	return p.resolveU64(e)
}

// orientation reads Tag.Orientation (274). original_source's ancestor
// read Tag::FillOrder here instead; spec.md §9 calls this out as a bug
// to fix, not carry forward.
func (p *Parser) orientation(ifd *IFD) (uint64, error) {
	e, ok := ifd.get(TagOrientation)
	if !ok {
		return 1, nil
	}
	return p.resolveU64(e)
}

func (p *Parser) sampleFormat(ifd *IFD) ([]uint64, error) {
	e, ok := ifd.get(TagSampleFormat)
	if !ok {
		return nil, nil
	}
	return p.resolveVecU64(e)
}

func (p *Parser) stripOffsets(ifd *IFD) ([]uint64, error) {
	e, ok := ifd.get(TagStripOffsets)
	if !ok {
		return nil, newErr(KindStripIndexOutOfRange, "IFD has no StripOffsets entry")
	}
	return p.resolveVecU64(e)
}

func (p *Parser) stripByteCounts(ifd *IFD) ([]uint64, error) {
	e, ok := ifd.get(TagStripByteCounts)
	if !ok {
		return nil, newErr(KindStripIndexOutOfRange, "IFD has no StripByteCounts entry")
	}
	return p.resolveVecU64(e)
}

// requireU64 resolves a scalar tag, failing if it's absent.
func (p *Parser) requireU64(ifd *IFD, tag Tag) (uint64, error) {
	e, ok := ifd.get(tag)
	if !ok {
		return 0, newErr(KindUnknownTag, tag.String()+" is required but absent")
	}
	return p.resolveU64(e)
}

// resolveU64 returns an entry's first element widened to uint64,
// reading it from its out-of-line offset first if necessary.
func (p *Parser) resolveU64(e *Entry) (uint64, error) {
	vals, err := p.resolveVecU64(e)
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, newErr(KindUnknownType, "entry decoded to zero elements")
	}
	return vals[0], nil
}

// resolveVecU64 returns every element of e widened to uint64, reading
// the out-of-line value array from its Offset if the entry isn't
// inline.
func (p *Parser) resolveVecU64(e *Entry) ([]uint64, error) {
	d, err := p.resolveDatum(e)
	if err != nil {
		return nil, err
	}
	vals, ok := d.AsVecU64()
	if !ok {
		return nil, newErr(KindUnknownType, "entry is not numeric")
	}
	return vals, nil
}

// seriesMetadata resolves every tag window.go and Metadata() need from
// one already-located IFD.
func (p *Parser) seriesMetadata(ifd *IFD) (SeriesMetadata, error) {
	iw, err := p.imageWidth(ifd)
	if err != nil {
		return SeriesMetadata{}, err
	}
	il, err := p.imageLength(ifd)
	if err != nil {
		return SeriesMetadata{}, err
	}
	spp, err := p.samplesPerPixel(ifd)
	if err != nil {
		return SeriesMetadata{}, err
	}
	bps, err := p.bitsPerSample(ifd)
	if err != nil {
		return SeriesMetadata{}, err
	}
	sf, err := p.sampleFormat(ifd)
	if err != nil {
		return SeriesMetadata{}, err
	}
	comp, err := p.compression(ifd)
	if err != nil {
		return SeriesMetadata{}, err
	}
	planar, err := p.planarConfiguration(ifd)
	if err != nil {
		return SeriesMetadata{}, err
	}
	rps, err := p.rowsPerStrip(ifd)
	if err != nil {
		return SeriesMetadata{}, err
	}
	orient, err := p.orientation(ifd)
	if err != nil {
		return SeriesMetadata{}, err
	}
	fo, err := p.fillOrder(ifd)
	if err != nil {
		return SeriesMetadata{}, err
	}

	return SeriesMetadata{
		Dim:                 DimFromWHC(iw, il, spp),
		BitsPerSample:       bps,
		SampleFormat:        sf,
		Compression:         comp,
		PlanarConfiguration: planar,
		RowsPerStrip:        rps,
		Orientation:         orient,
		FillOrder:           fo,
	}, nil
}

// resolveDatum returns e's Datum, reading it from its absolute offset
// when the entry's value array didn't fit inline.
func (p *Parser) resolveDatum(e *Entry) (Datum, error) {
	if !e.IsOffset {
		return e.Inline, nil
	}
	n := sizeOf(e.Kind, e.Count)
	buf := make([]byte, n)
	if _, err := p.stream.Read(buf, int64(e.Offset)); err != nil {
		return Datum{}, err
	}
	return decodeDatum(e.Kind, e.Count, buf, p.stream.IsLittleEndian())
}
