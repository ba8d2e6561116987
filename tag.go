package tiffwindow

// Tag is a closed enumeration of the TIFF tags this package interprets.
// Tag codes outside this set decode to TagOther: they are preserved in
// the IFD's entry map (keyed by the raw numeric code, see IFD.Entries)
// but never consulted by the parser or window extractor.
type Tag uint16

const (
	TagImageWidth                Tag = 256
	TagImageLength               Tag = 257
	TagBitsPerSample             Tag = 258
	TagCompression               Tag = 259
	TagPhotometricInterpretation Tag = 262
	TagFillOrder                 Tag = 266
	TagStripOffsets              Tag = 273
	TagOrientation               Tag = 274
	TagSamplesPerPixel           Tag = 277
	TagRowsPerStrip              Tag = 278
	TagStripByteCounts           Tag = 279
	TagXResolution               Tag = 282
	TagYResolution               Tag = 283
	TagPlanarConfiguration       Tag = 284
	TagResolutionUnit            Tag = 296
	TagExtraSamples              Tag = 338
	TagSampleFormat              Tag = 339
	// TagOther is the catch-all for any tag code not named above.
	TagOther Tag = 0
)

var knownTags = map[uint16]Tag{
	256: TagImageWidth,
	257: TagImageLength,
	258: TagBitsPerSample,
	259: TagCompression,
	262: TagPhotometricInterpretation,
	266: TagFillOrder,
	273: TagStripOffsets,
	274: TagOrientation,
	277: TagSamplesPerPixel,
	278: TagRowsPerStrip,
	279: TagStripByteCounts,
	282: TagXResolution,
	283: TagYResolution,
	284: TagPlanarConfiguration,
	296: TagResolutionUnit,
	338: TagExtraSamples,
	339: TagSampleFormat,
}

// tagFromShort maps a raw tag code to its Tag, falling back to TagOther
// for anything unrecognized. Unlike Type, an unrecognized Tag is never
// fatal — spec.md classifies KindUnknownTag as non-fatal.
func tagFromShort(v uint16) Tag {
	if t, ok := knownTags[v]; ok {
		return t
	}
	return TagOther
}

func (t Tag) String() string {
	switch t {
	case TagImageWidth:
		return "ImageWidth"
	case TagImageLength:
		return "ImageLength"
	case TagBitsPerSample:
		return "BitsPerSample"
	case TagCompression:
		return "Compression"
	case TagPhotometricInterpretation:
		return "PhotometricInterpretation"
	case TagFillOrder:
		return "FillOrder"
	case TagStripOffsets:
		return "StripOffsets"
	case TagOrientation:
		return "Orientation"
	case TagSamplesPerPixel:
		return "SamplesPerPixel"
	case TagRowsPerStrip:
		return "RowsPerStrip"
	case TagStripByteCounts:
		return "StripByteCounts"
	case TagXResolution:
		return "XResolution"
	case TagYResolution:
		return "YResolution"
	case TagPlanarConfiguration:
		return "PlanarConfiguration"
	case TagResolutionUnit:
		return "ResolutionUnit"
	case TagExtraSamples:
		return "ExtraSamples"
	case TagSampleFormat:
		return "SampleFormat"
	default:
		return "Other"
	}
}

// Type is a TIFF field type. Each has a fixed per-element byte size.
type Type uint16

const (
	TypeBYTE      Type = 1
	TypeASCII     Type = 2
	TypeSHORT     Type = 3
	TypeLONG      Type = 4
	TypeRATIONAL  Type = 5
	TypeUNDEFINED Type = 7
	TypeDOUBLE    Type = 16
)

// typeFromShort maps a raw type code to its Type. Unlike Tag, an
// unrecognized Type is fatal (KindUnknownType): the parser cannot
// compute size_of(kind, count) without knowing the element width.
func typeFromShort(v uint16) (Type, bool) {
	switch Type(v) {
	case TypeBYTE, TypeASCII, TypeSHORT, TypeLONG, TypeRATIONAL, TypeUNDEFINED, TypeDOUBLE:
		return Type(v), true
	default:
		return 0, false
	}
}

// elementSize returns the per-element byte size of t.
func (t Type) elementSize() uint64 {
	switch t {
	case TypeBYTE, TypeASCII, TypeUNDEFINED:
		return 1
	case TypeSHORT:
		return 2
	case TypeLONG:
		return 4
	case TypeRATIONAL, TypeDOUBLE:
		return 8
	default:
		return 0
	}
}

func (t Type) String() string {
	switch t {
	case TypeBYTE:
		return "BYTE"
	case TypeASCII:
		return "ASCII"
	case TypeSHORT:
		return "SHORT"
	case TypeLONG:
		return "LONG"
	case TypeRATIONAL:
		return "RATIONAL"
	case TypeUNDEFINED:
		return "UNDEFINED"
	case TypeDOUBLE:
		return "DOUBLE"
	default:
		return "INVALID"
	}
}

// sizeOf returns size_of(kind, count): the total byte length of an
// entry's value array. Entries inline iff this is <= the format's
// offset width (4 for classic TIFF, 8 for BigTIFF).
func sizeOf(kind Type, count uint64) uint64 {
	return kind.elementSize() * count
}
