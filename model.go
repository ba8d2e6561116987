package tiffwindow

// Loc addresses one logical position in a multi-series, multi-channel
// image. S selects the series (the s-th IFD in the chain; "series" is
// this package's generalization of a COG overview level — the s-th IFD
// rather than a resampled pyramid rung) and C selects the channel
// within that series. Z and T are reserved for depth/time axes this
// package never populates; callers that set them get Dim.D==Dim.T==1
// back from Metadata and should otherwise ignore them.
type Loc struct {
	X, Y, Z, C, T, S uint64
}

// Dim describes one series' shape: width, height, depth, time extent,
// and channel count. TIFF has no native depth or time axis, so D and T
// are always 1.
type Dim struct {
	W, H, D, T, C uint64
}

// DimFromWHC builds the Dim this package always produces: a flat 2-D,
// single-timepoint image with c channels.
func DimFromWHC(w, h, c uint64) Dim {
	return Dim{W: w, H: h, D: 1, T: 1, C: c}
}

// ByteOrder is the file's byte order, fixed once at header parse time.
type ByteOrder int

const (
	ByteOrderBigEndian ByteOrder = iota
	ByteOrderLittleEndian
)

func (b ByteOrder) String() string {
	if b == ByteOrderLittleEndian {
		return "LittleEndian"
	}
	return "BigEndian"
}

// SeriesMetadata is everything about one IFD that OpenBytes/OpenPixels
// needs to address and decode it.
type SeriesMetadata struct {
	Dim                 Dim
	BitsPerSample       []uint64 // one element per channel, or one shared element
	SampleFormat        []uint64 // parallel to BitsPerSample; empty means unsigned integer
	Compression         Compression
	PlanarConfiguration uint64 // 1 = chunky, 2 = planar
	RowsPerStrip        uint64
	Orientation         uint64 // Tag 274; 1 (top-left, row 0 first) if absent
	FillOrder           uint64 // Tag 266; 1 (MSB first) if absent
}

// Metadata describes every series (IFD) a FormatReader exposes.
type Metadata struct {
	Series    []SeriesMetadata
	ByteOrder ByteOrder
}

// bitsForChannel returns the bit depth that applies to channel c in
// this series: BitsPerSample[c] if the array has one entry per channel,
// otherwise its single shared value.
func (sm SeriesMetadata) bitsForChannel(c uint64) (uint64, bool) {
	if len(sm.BitsPerSample) == 0 {
		return 0, false
	}
	if c < uint64(len(sm.BitsPerSample)) {
		return sm.BitsPerSample[c], true
	}
	return sm.BitsPerSample[0], true
}

// sampleFormatForChannel mirrors bitsForChannel for SampleFormat. A
// returned ok==false means "assume unsigned integer", TIFF's default.
func (sm SeriesMetadata) sampleFormatForChannel(c uint64) (uint64, bool) {
	if len(sm.SampleFormat) == 0 {
		return 0, false
	}
	if c < uint64(len(sm.SampleFormat)) {
		return sm.SampleFormat[c], true
	}
	return sm.SampleFormat[0], true
}

// PixelKind discriminates the payload carried by a PixelSlice.
type PixelKind int

const (
	PixelU8 PixelKind = iota
	PixelU16
)

// PixelSlice is a window's raw bytes reinterpreted into typed samples,
// per the bit depth the series declares for the requested channel.
type PixelSlice struct {
	Kind PixelKind
	U8   []byte
	U16  []uint16
}

// FormatReader is the uniform surface this package's TIFF/BigTIFF
// reader (and any other format backend built the same way) exposes to
// callers: describe the file, then read a rectangular window either as
// raw bytes or as typed samples.
type FormatReader interface {
	// Metadata describes every series this reader can address.
	Metadata() (Metadata, error)
	// OpenBytes reads an h x w window whose top-left corner is origin,
	// in the channel and series origin selects, and returns it as raw
	// decompressed bytes in the series' native sample layout.
	OpenBytes(origin Loc, h, w uint64) ([]byte, error)
	// OpenPixels is OpenBytes followed by a widening reinterpretation
	// of the result into a PixelSlice, driven by the series' bit depth
	// for the requested channel.
	OpenPixels(origin Loc, h, w uint64) (PixelSlice, error)
}

// openPixelsFromBytes implements the derived half of FormatReader:
// given a series' metadata, the channel a window was read for, and the
// raw bytes OpenBytes produced, reinterpret those bytes as typed
// samples. 8-bit samples pass through verbatim; 16-bit samples are
// decoded under the file's byte order. Any other bit depth is a format
// this package doesn't widen, reported as KindUnsupportedPixelFormat.
func openPixelsFromBytes(meta Metadata, loc Loc, raw []byte) (PixelSlice, error) {
	if loc.S >= uint64(len(meta.Series)) {
		return PixelSlice{}, newErr(KindIFDOutOfBounds, "series index exceeds the IFD chain length")
	}
	sm := meta.Series[loc.S]

	if sf, ok := sm.sampleFormatForChannel(loc.C); ok && sf == 3 {
		// SampleFormat 3 is IEEE float; 1 (unsigned) and 2 (signed) both
		// widen into PixelSlice's integer variants without trouble.
		return PixelSlice{}, newErr(KindUnsupportedPixelFormat, "floating-point sample format cannot be widened to a PixelSlice")
	}

	bits, ok := sm.bitsForChannel(loc.C)
	if !ok {
		return PixelSlice{}, newErr(KindUnsupportedBitDepth, "series has no BitsPerSample to widen against")
	}

	switch bits {
	case 8:
		out := make([]byte, len(raw))
		copy(out, raw)
		return PixelSlice{Kind: PixelU8, U8: out}, nil
	case 16:
		if len(raw)%2 != 0 {
			return PixelSlice{}, newErr(KindUnsupportedPixelFormat, "16-bit window has an odd byte length")
		}
		order := meta.ByteOrder
		out := make([]uint16, len(raw)/2)
		for i := range out {
			lo, hi := raw[i*2], raw[i*2+1]
			if order == ByteOrderLittleEndian {
				out[i] = uint16(lo) | uint16(hi)<<8
			} else {
				out[i] = uint16(hi) | uint16(lo)<<8
			}
		}
		return PixelSlice{Kind: PixelU16, U16: out}, nil
	default:
		return PixelSlice{}, newErr(KindUnsupportedPixelFormat, "unsupported bit depth for pixel widening")
	}
}
