package tiffwindow

import "io"

// TiffReader is a FormatReader over a TIFF or BigTIFF stream. It holds
// no decoded pixel state; every OpenBytes call reads and decompresses
// exactly the strips a window touches, decoding each strip at most
// once per call.
type TiffReader struct {
	parser *Parser
}

// NewTiffReader parses r's header and returns a reader positioned at
// its first IFD. r must remain valid and seekable for the TiffReader's
// lifetime.
func NewTiffReader(r io.ReadSeeker) (*TiffReader, error) {
	p, err := NewParser(r)
	if err != nil {
		return nil, err
	}
	return &TiffReader{parser: p}, nil
}

// Metadata walks the entire IFD chain and describes every series.
func (tr *TiffReader) Metadata() (Metadata, error) {
	n, err := tr.parser.nIfds()
	if err != nil {
		return Metadata{}, err
	}

	series := make([]SeriesMetadata, n)
	for i := uint64(0); i < n; i++ {
		ifd, err := tr.parser.nthIFD(i)
		if err != nil {
			return Metadata{}, err
		}
		sm, err := tr.parser.seriesMetadata(ifd)
		if err != nil {
			return Metadata{}, err
		}
		series[i] = sm
	}

	order := ByteOrderBigEndian
	if tr.parser.stream.IsLittleEndian() {
		order = ByteOrderLittleEndian
	}
	return Metadata{Series: series, ByteOrder: order}, nil
}

// OpenBytes reads an h x w window of origin.S's channel origin.C, top
// left at (origin.X, origin.Y), and returns it row-major with only that
// channel's bytes per pixel.
//
// Two behaviors here deliberately diverge from the most literal port of
// this algorithm: the strip each output row falls in is recomputed per
// row rather than once from a coarse [start,end] strip range, so there
// is no separate end-of-range formula to get off-by-one; and a chunky
// pixel's per-channel byte offset is the running sum of every preceding
// channel's own bit depth divided by 8, not channel index times a
// single assumed sample width — the two agree only when every channel
// shares one bit depth.
func (tr *TiffReader) OpenBytes(origin Loc, h, w uint64) ([]byte, error) {
	if h == 0 || w == 0 {
		return nil, newErr(KindInvalidWindow, "window height and width must be positive")
	}

	ifd, err := tr.parser.nthIFD(origin.S)
	if err != nil {
		return nil, err
	}
	sm, err := tr.parser.seriesMetadata(ifd)
	if err != nil {
		return nil, err
	}

	iw, il := sm.Dim.W, sm.Dim.H
	if origin.X >= iw || origin.Y >= il || origin.X+w > iw || origin.Y+h > il {
		return nil, newErr(KindInvalidWindow, "requested window falls outside the image")
	}
	if origin.C >= sm.Dim.C {
		return nil, newErr(KindInvalidWindow, "requested channel exceeds the series' channel count")
	}

	bitsC, ok := sm.bitsForChannel(origin.C)
	if !ok {
		return nil, newErr(KindUnsupportedBitDepth, "series has no BitsPerSample to size the requested channel")
	}
	if bitsC%8 != 0 {
		return nil, newErr(KindUnsupportedBitDepth, "sample width is not a multiple of 8 bits")
	}
	if sf, ok := sm.sampleFormatForChannel(origin.C); ok && sf == 3 {
		return nil, newErr(KindUnsupportedPixelFormat, "floating-point sample format is not supported")
	}
	bytesPerSampleC := bitsC / 8

	var channelByteOffset, bytesPerPixelGroup uint64
	for c := uint64(0); c < sm.Dim.C; c++ {
		b, _ := sm.bitsForChannel(c)
		if c < origin.C {
			channelByteOffset += b / 8
		}
		bytesPerPixelGroup += b / 8
	}

	rps := sm.RowsPerStrip
	if rps == 0 {
		return nil, newErr(KindInvalidWindow, "series declares zero rows per strip")
	}
	stripsPerImage := (il + rps - 1) / rps

	stripOffsets, err := tr.parser.stripOffsets(ifd)
	if err != nil {
		return nil, err
	}
	stripByteCounts, err := tr.parser.stripByteCounts(ifd)
	if err != nil {
		return nil, err
	}

	planar := sm.PlanarConfiguration == 2
	decodedStrips := make(map[uint64][]byte)

	decodeNthStrip := func(stripIdx, rowsInStrip, bytesPerRow uint64) ([]byte, error) {
		if decoded, ok := decodedStrips[stripIdx]; ok {
			return decoded, nil
		}
		if stripIdx >= uint64(len(stripOffsets)) || stripIdx >= uint64(len(stripByteCounts)) {
			return nil, newErr(KindStripIndexOutOfRange, "computed strip index has no StripOffsets/StripByteCounts entry")
		}
		raw := getBuffer(int(stripByteCounts[stripIdx]))
		defer putBuffer(raw)
		if _, err := tr.parser.stream.Read(raw, int64(stripOffsets[stripIdx])); err != nil {
			return nil, err
		}
		decoded := make([]byte, rowsInStrip*bytesPerRow)
		if err := decodeStrip(sm.Compression, raw, decoded); err != nil {
			return nil, err
		}
		decodedStrips[stripIdx] = decoded
		return decoded, nil
	}

	out := make([]byte, h*w*bytesPerSampleC)

	for row := uint64(0); row < h; row++ {
		y := origin.Y + row
		localStrip := y / rps
		rowsInThisStrip := rps
		if (localStrip+1)*rps > il {
			rowsInThisStrip = il - localStrip*rps
		}
		rowInStrip := y - localStrip*rps

		var stripIdx, bytesPerRow uint64
		if planar {
			stripIdx = origin.C*stripsPerImage + localStrip
			bytesPerRow = iw * bytesPerSampleC
		} else {
			stripIdx = localStrip
			bytesPerRow = iw * bytesPerPixelGroup
		}

		decoded, err := decodeNthStrip(stripIdx, rowsInThisStrip, bytesPerRow)
		if err != nil {
			return nil, err
		}

		rowStart := rowInStrip * bytesPerRow
		srcRow := decoded[rowStart : rowStart+bytesPerRow]

		var colStart, stride uint64
		if planar {
			colStart, stride = origin.X*bytesPerSampleC, bytesPerSampleC
		} else {
			colStart, stride = origin.X*bytesPerPixelGroup+channelByteOffset, bytesPerPixelGroup
		}

		dstRowStart := row * w * bytesPerSampleC
		for col := uint64(0); col < w; col++ {
			srcOff := colStart + col*stride
			dstOff := dstRowStart + col*bytesPerSampleC
			copy(out[dstOff:dstOff+bytesPerSampleC], srcRow[srcOff:srcOff+bytesPerSampleC])
		}
	}

	return out, nil
}

// OpenPixels reads origin's window via OpenBytes, then widens it into a
// PixelSlice per the series' declared bit depth for that channel.
func (tr *TiffReader) OpenPixels(origin Loc, h, w uint64) (PixelSlice, error) {
	raw, err := tr.OpenBytes(origin, h, w)
	if err != nil {
		return PixelSlice{}, err
	}
	meta, err := tr.Metadata()
	if err != nil {
		return PixelSlice{}, err
	}
	return openPixelsFromBytes(meta, origin, raw)
}
