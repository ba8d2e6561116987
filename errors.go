package tiffwindow

import "fmt"

// Kind classifies a failure raised anywhere in the stream, parser, or
// window extractor. Every failure in this package surfaces as an *Error
// carrying one of these.
type Kind int

const (
	// KindUnexpectedEOF means an integer or bulk read ran past the end
	// of the underlying stream.
	KindUnexpectedEOF Kind = iota
	// KindInvalidMagic means the first two header bytes were neither
	// "II" nor "MM".
	KindInvalidMagic
	// KindMalformedIFDChain means the IFD chain revisited an offset
	// already seen, or exceeded the fixed walk bound.
	KindMalformedIFDChain
	// KindUnknownTag is non-fatal for unrecognized tags: those are
	// preserved under Tag(Other) and never raise it. The parser returns
	// it only when a required tag (ImageWidth, ImageLength) is absent
	// from an IFD.
	KindUnknownTag
	// KindUnknownType means an IFD entry named a Type code this package
	// does not recognize.
	KindUnknownType
	// KindUnknownCompression means a Compression tag value outside the
	// recognized set (None, CCITT, PackBits, LZW, Deflate).
	KindUnknownCompression
	// KindMalformedASCII means an ASCII-typed Datum was not valid UTF-8.
	KindMalformedASCII
	// KindInvalidWindow means the requested origin/height/width falls
	// outside the image, or requests a non-positive dimension.
	KindInvalidWindow
	// KindUnsupportedBitDepth means a sample width isn't a multiple of
	// 8 bits.
	KindUnsupportedBitDepth
	// KindUnsupportedPixelFormat means the requested channel declares a
	// floating-point sample format, or open_pixels was asked to
	// reinterpret a bit depth it doesn't know how to widen into a
	// PixelSlice variant.
	KindUnsupportedPixelFormat
	// KindStripIndexOutOfRange means a computed strip index has no
	// corresponding StripOffsets/StripByteCounts entry.
	KindStripIndexOutOfRange
	// KindIFDOutOfBounds means nth_ifd was asked for an index beyond
	// the chain's length.
	KindIFDOutOfBounds
	// KindNotImplemented is returned by codecs recognized but not
	// implemented (CCITT).
	KindNotImplemented
	// KindCodecOverrun means a single PackBits run or literal would
	// write past the end of the caller-supplied output buffer. Not
	// named in spec.md's taxonomy directly; added as a SPEC_FULL
	// supplement since spec.md §4.2 calls this out as "a fatal decode
	// error" distinct from ordinary EOF.
	KindCodecOverrun
	// KindRemoteFetchFailed means the HTTP range-request backend could
	// not satisfy a read: the underlying request failed, or the server
	// answered with neither 200 nor 206. A SPEC_FULL supplement — the
	// local-file stream this package's ancestor reads has no equivalent
	// failure mode, since a local seek/read either succeeds or hits EOF.
	KindRemoteFetchFailed
	// KindInvalidArgument means a caller passed HTTPRangeReader.Seek a whence or
	// offset it cannot satisfy (an unrecognized whence value, or a
	// resulting negative position). A SPEC_FULL supplement for the same
	// reason as KindRemoteFetchFailed: io.ReadSeeker implementations
	// this package's ancestor never had to validate their own arguments
	// against, since the only seeker in scope there was a local file.
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindUnexpectedEOF:
		return "UnexpectedEof"
	case KindInvalidMagic:
		return "InvalidMagic"
	case KindMalformedIFDChain:
		return "MalformedIfdChain"
	case KindUnknownTag:
		return "UnknownTag"
	case KindUnknownType:
		return "UnknownType"
	case KindUnknownCompression:
		return "UnknownCompression"
	case KindMalformedASCII:
		return "MalformedAscii"
	case KindInvalidWindow:
		return "InvalidWindow"
	case KindUnsupportedBitDepth:
		return "UnsupportedBitDepth"
	case KindUnsupportedPixelFormat:
		return "UnsupportedPixelFormat"
	case KindStripIndexOutOfRange:
		return "StripIndexOutOfRange"
	case KindIFDOutOfBounds:
		return "IfdOutOfBounds"
	case KindNotImplemented:
		return "NotImplemented"
	case KindCodecOverrun:
		return "CodecOverrun"
	case KindRemoteFetchFailed:
		return "RemoteFetchFailed"
	case KindInvalidArgument:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// Error is the single error type this package returns. Every failure
// path surfaces one verbatim; callers switch on Kind rather than
// string-matching messages.
type Error struct {
	Kind Kind
	Msg  string
	Err  error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tiffwindow: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("tiffwindow: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapErr(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}
