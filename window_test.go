package tiffwindow

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// stripFixture describes a minimal classic-TIFF stripped image for
// window_test.go's OpenBytes/OpenPixels scenarios. strips holds each
// strip's exact uncompressed bytes, ordered by local strip index for
// chunky images, or (channel * stripsPerImage + local strip index) for
// planar ones — matching TagPlanarConfiguration's own ordering.
type stripFixture struct {
	width, height, rowsPerStrip uint32
	bitsPerSample               []uint16
	sampleFormat                []uint16 // nil omits the SampleFormat tag entirely
	planarConfig                uint16
	strips                      [][]byte
}

func buildStrippedTIFF(f stripFixture) []byte {
	order := binary.LittleEndian
	samplesPerPixel := uint16(len(f.bitsPerSample))

	encU16 := func(vals []uint16) []byte {
		b := make([]byte, 2*len(vals))
		for i, v := range vals {
			order.PutUint16(b[i*2:i*2+2], v)
		}
		return b
	}
	encU32 := func(vals []uint32) []byte {
		b := make([]byte, 4*len(vals))
		for i, v := range vals {
			order.PutUint32(b[i*4:i*4+4], v)
		}
		return b
	}

	type ent struct {
		tag, typ uint16
		count    uint32
		value    []byte
	}

	nStrips := uint32(len(f.strips))
	entries := []ent{
		{256, 4, 1, encU32([]uint32{f.width})},
		{257, 4, 1, encU32([]uint32{f.height})},
		{258, 3, uint32(len(f.bitsPerSample)), encU16(f.bitsPerSample)},
		{259, 3, 1, encU16([]uint16{uint16(CompressionNone)})},
		{277, 3, 1, encU16([]uint16{samplesPerPixel})},
		{278, 4, 1, encU32([]uint32{f.rowsPerStrip})},
		{284, 3, 1, encU16([]uint16{f.planarConfig})},
		{273, 4, nStrips, make([]byte, 4*nStrips)}, // StripOffsets, filled below
		{279, 4, nStrips, make([]byte, 4*nStrips)}, // StripByteCounts, filled below
	}
	stripOffsetsIdx := len(entries) - 2
	stripByteCountsIdx := len(entries) - 1
	if len(f.sampleFormat) > 0 {
		entries = append(entries, ent{339, 3, uint32(len(f.sampleFormat)), encU16(f.sampleFormat)})
	}

	nEntries := len(entries)
	headerLen := 8
	ifdLen := 2 + 12*nEntries + 4

	type placement struct {
		inline bool
		offset uint32
	}
	placements := make([]placement, nEntries)
	running := uint32(headerLen + ifdLen)
	for i, e := range entries {
		if len(e.value) <= 4 {
			placements[i] = placement{inline: true}
			continue
		}
		if running%2 != 0 {
			running++
		}
		placements[i] = placement{offset: running}
		running += uint32(len(e.value))
	}
	if running%2 != 0 {
		running++
	}
	stripDataStart := running

	stripOffsetVals := make([]uint32, nStrips)
	stripByteCountVals := make([]uint32, nStrips)
	cur := stripDataStart
	for i, s := range f.strips {
		stripOffsetVals[i] = cur
		stripByteCountVals[i] = uint32(len(s))
		cur += uint32(len(s))
	}
	entries[stripOffsetsIdx].value = encU32(stripOffsetVals)
	entries[stripByteCountsIdx].value = encU32(stripByteCountVals)

	buf := make([]byte, cur)
	buf[0], buf[1] = 'I', 'I'
	order.PutUint16(buf[2:4], 42)
	order.PutUint32(buf[4:8], uint32(headerLen))
	order.PutUint16(buf[8:10], uint16(nEntries))

	pos := 10
	for i, e := range entries {
		order.PutUint16(buf[pos:pos+2], e.tag)
		order.PutUint16(buf[pos+2:pos+4], e.typ)
		order.PutUint32(buf[pos+4:pos+8], e.count)
		if placements[i].inline {
			copy(buf[pos+8:pos+12], e.value)
		} else {
			order.PutUint32(buf[pos+8:pos+12], placements[i].offset)
			copy(buf[placements[i].offset:placements[i].offset+uint32(len(e.value))], e.value)
		}
		pos += 12
	}
	order.PutUint32(buf[pos:pos+4], 0) // no next IFD

	for i, s := range f.strips {
		off := stripOffsetVals[i]
		copy(buf[off:off+uint32(len(s))], s)
	}

	return buf
}

// chunkyFixture is 4x3, 2 channels: channel 0 is 8-bit (value = y*10+x),
// channel 1 is 16-bit little-endian (value = (y*10+x)*100). Two strips
// with rowsPerStrip 2: the first holds rows 0-1, the second only row 2.
func chunkyFixture() []byte {
	row := func(y uint32) []byte {
		b := make([]byte, 0, 4*3)
		for x := uint32(0); x < 4; x++ {
			v := y*10 + x
			ch1 := v * 100
			b = append(b, byte(v), byte(ch1), byte(ch1>>8))
		}
		return b
	}
	strip0 := append(append([]byte{}, row(0)...), row(1)...)
	strip1 := row(2)

	return buildStrippedTIFF(stripFixture{
		width: 4, height: 3, rowsPerStrip: 2,
		bitsPerSample: []uint16{8, 16},
		planarConfig:  1,
		strips:        [][]byte{strip0, strip1},
	})
}

func TestOpenBytesChunkyEightBitChannel(t *testing.T) {
	tr, err := NewTiffReader(bytes.NewReader(chunkyFixture()))
	if err != nil {
		t.Fatalf("NewTiffReader: %v", err)
	}
	got, err := tr.OpenBytes(Loc{X: 1, Y: 0, C: 0}, 2, 2)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	want := []byte{1, 2, 11, 12}
	if !bytes.Equal(got, want) {
		t.Fatalf("OpenBytes() = % x; want % x", got, want)
	}
}

func TestOpenBytesChunkySixteenBitChannelSpansStrips(t *testing.T) {
	tr, err := NewTiffReader(bytes.NewReader(chunkyFixture()))
	if err != nil {
		t.Fatalf("NewTiffReader: %v", err)
	}
	// Rows y=1 and y=2 straddle the strip boundary (rowsPerStrip=2).
	got, err := tr.OpenBytes(Loc{X: 0, Y: 1, C: 1}, 2, 1)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	want := []byte{0xE8, 0x03, 0xD0, 0x07} // 1000, 2000 little-endian
	if !bytes.Equal(got, want) {
		t.Fatalf("OpenBytes() = % x; want % x", got, want)
	}
}

func TestOpenPixelsWidensSixteenBitChannel(t *testing.T) {
	tr, err := NewTiffReader(bytes.NewReader(chunkyFixture()))
	if err != nil {
		t.Fatalf("NewTiffReader: %v", err)
	}
	px, err := tr.OpenPixels(Loc{X: 0, Y: 1, C: 1}, 2, 1)
	if err != nil {
		t.Fatalf("OpenPixels: %v", err)
	}
	if px.Kind != PixelU16 {
		t.Fatalf("px.Kind = %v; want PixelU16", px.Kind)
	}
	want := []uint16{1000, 2000}
	if len(px.U16) != len(want) || px.U16[0] != want[0] || px.U16[1] != want[1] {
		t.Fatalf("px.U16 = %v; want %v", px.U16, want)
	}
}

// signedSampleFixture is 2x2, one 16-bit channel, SampleFormat=2
// (signed integer) — a recognized, supported format, not to be confused
// with SampleFormat=3 (float).
func signedSampleFixture() []byte {
	strip := []byte{0x00, 0x80, 0xFF, 0x7F, 0x01, 0x00, 0x02, 0x00} // -32768, 32767, 1, 2
	return buildStrippedTIFF(stripFixture{
		width: 2, height: 2, rowsPerStrip: 2,
		bitsPerSample: []uint16{16},
		sampleFormat:  []uint16{2},
		planarConfig:  1,
		strips:        [][]byte{strip},
	})
}

func TestOpenBytesAcceptsSignedSampleFormat(t *testing.T) {
	tr, err := NewTiffReader(bytes.NewReader(signedSampleFixture()))
	if err != nil {
		t.Fatalf("NewTiffReader: %v", err)
	}
	got, err := tr.OpenBytes(Loc{X: 0, Y: 0, C: 0}, 2, 2)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	want := []byte{0x00, 0x80, 0xFF, 0x7F, 0x01, 0x00, 0x02, 0x00}
	if !bytes.Equal(got, want) {
		t.Fatalf("OpenBytes() = % x; want % x", got, want)
	}
}

func TestOpenPixelsAcceptsSignedSampleFormat(t *testing.T) {
	tr, err := NewTiffReader(bytes.NewReader(signedSampleFixture()))
	if err != nil {
		t.Fatalf("NewTiffReader: %v", err)
	}
	px, err := tr.OpenPixels(Loc{X: 0, Y: 0, C: 0}, 2, 2)
	if err != nil {
		t.Fatalf("OpenPixels: %v", err)
	}
	if px.Kind != PixelU16 {
		t.Fatalf("px.Kind = %v; want PixelU16", px.Kind)
	}
}

// floatSampleFixture is the same shape as signedSampleFixture but
// declares SampleFormat=3 (IEEE float), which this package does not
// widen into a PixelSlice and must reject.
func floatSampleFixture() []byte {
	strip := []byte{0, 0, 0, 0, 0, 0, 0, 0}
	return buildStrippedTIFF(stripFixture{
		width: 2, height: 2, rowsPerStrip: 2,
		bitsPerSample: []uint16{16},
		sampleFormat:  []uint16{3},
		planarConfig:  1,
		strips:        [][]byte{strip},
	})
}

func TestOpenBytesRejectsFloatSampleFormat(t *testing.T) {
	tr, err := NewTiffReader(bytes.NewReader(floatSampleFixture()))
	if err != nil {
		t.Fatalf("NewTiffReader: %v", err)
	}
	_, err = tr.OpenBytes(Loc{X: 0, Y: 0, C: 0}, 2, 2)
	var perr *Error
	if !asError(err, &perr) || perr.Kind != KindUnsupportedPixelFormat {
		t.Fatalf("err = %v; want *Error{Kind: KindUnsupportedPixelFormat}", err)
	}
}

// planarFixture is 3x2, 2 channels, both 8-bit, one strip per channel
// (rowsPerStrip == height, an exact strip boundary).
func planarFixture() []byte {
	ch0 := []byte{1, 2, 3, 4, 5, 6}
	ch1 := []byte{10, 20, 30, 40, 50, 60}
	return buildStrippedTIFF(stripFixture{
		width: 3, height: 2, rowsPerStrip: 2,
		bitsPerSample: []uint16{8, 8},
		planarConfig:  2,
		strips:        [][]byte{ch0, ch1},
	})
}

func TestOpenBytesPlanarAddressing(t *testing.T) {
	tr, err := NewTiffReader(bytes.NewReader(planarFixture()))
	if err != nil {
		t.Fatalf("NewTiffReader: %v", err)
	}
	got, err := tr.OpenBytes(Loc{X: 1, Y: 0, C: 1}, 2, 2)
	if err != nil {
		t.Fatalf("OpenBytes: %v", err)
	}
	want := []byte{20, 30, 50, 60}
	if !bytes.Equal(got, want) {
		t.Fatalf("OpenBytes() = % x; want % x", got, want)
	}
}

func TestOpenBytesRejectsOutOfBoundsWindow(t *testing.T) {
	tr, err := NewTiffReader(bytes.NewReader(chunkyFixture()))
	if err != nil {
		t.Fatalf("NewTiffReader: %v", err)
	}
	_, err = tr.OpenBytes(Loc{X: 3, Y: 0, C: 0}, 1, 2)
	var perr *Error
	if !asError(err, &perr) || perr.Kind != KindInvalidWindow {
		t.Fatalf("err = %v; want *Error{Kind: KindInvalidWindow}", err)
	}
}

func TestOpenBytesRejectsZeroDimensions(t *testing.T) {
	tr, err := NewTiffReader(bytes.NewReader(chunkyFixture()))
	if err != nil {
		t.Fatalf("NewTiffReader: %v", err)
	}
	_, err = tr.OpenBytes(Loc{X: 0, Y: 0, C: 0}, 0, 2)
	var perr *Error
	if !asError(err, &perr) || perr.Kind != KindInvalidWindow {
		t.Fatalf("err = %v; want *Error{Kind: KindInvalidWindow}", err)
	}
}

func TestOpenBytesRejectsOutOfRangeChannel(t *testing.T) {
	tr, err := NewTiffReader(bytes.NewReader(chunkyFixture()))
	if err != nil {
		t.Fatalf("NewTiffReader: %v", err)
	}
	_, err = tr.OpenBytes(Loc{X: 0, Y: 0, C: 2}, 1, 1)
	var perr *Error
	if !asError(err, &perr) || perr.Kind != KindInvalidWindow {
		t.Fatalf("err = %v; want *Error{Kind: KindInvalidWindow}", err)
	}
}

func TestMetadataDescribesSeries(t *testing.T) {
	tr, err := NewTiffReader(bytes.NewReader(chunkyFixture()))
	if err != nil {
		t.Fatalf("NewTiffReader: %v", err)
	}
	meta, err := tr.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if len(meta.Series) != 1 {
		t.Fatalf("len(meta.Series) = %d; want 1", len(meta.Series))
	}
	sm := meta.Series[0]
	if sm.Dim.W != 4 || sm.Dim.H != 3 || sm.Dim.C != 2 {
		t.Fatalf("Dim = %+v; want {W:4 H:3 C:2 ...}", sm.Dim)
	}
	if meta.ByteOrder != ByteOrderLittleEndian {
		t.Fatalf("ByteOrder = %v; want LittleEndian", meta.ByteOrder)
	}
}
