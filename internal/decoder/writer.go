package decoder

import (
	"unicode/utf8"

	"github.com/tetratelabs/wabin/leb128"
)

// Writer is an append-only byte sink, the encoder's mirror of Reader: every
// WriteX method here produces exactly what the matching ReadX method on
// Reader consumes, so EncodeModule(DecodeModule(buf)) reproduces buf
// byte-for-byte for any module this package itself encoded (spec.md §8
// "decode then re-encode any module: byte-for-byte equal").
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated output.
func (w *Writer) Bytes() []byte { return w.buf }

// WriteByte appends a single byte.
func (w *Writer) WriteByte(b byte) { w.buf = append(w.buf, b) }

// WriteBytes appends b verbatim, with no length prefix.
func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

// WriteUint32 appends v as an unsigned LEB128 integer.
func (w *Writer) WriteUint32(v uint32) { w.buf = append(w.buf, leb128.EncodeUint32(v)...) }

// WriteUint64 appends v as an unsigned LEB128 integer.
func (w *Writer) WriteUint64(v uint64) { w.buf = append(w.buf, leb128.EncodeUint64(v)...) }

// WriteInt32 appends v as a signed LEB128 integer.
func (w *Writer) WriteInt32(v int32) { w.buf = append(w.buf, leb128.EncodeInt32(v)...) }

// WriteInt64 appends v as a signed LEB128 integer.
func (w *Writer) WriteInt64(v int64) { w.buf = append(w.buf, leb128.EncodeInt64(v)...) }

// WriteString appends s length-prefixed, the inverse of Reader.ReadString.
// Callers are responsible for only ever passing strings that Reader.ReadString
// itself could have produced (valid UTF-8, no embedded NUL); EncodeModule
// only ever calls this with strings a prior DecodeModule handed back, so
// that invariant always holds here.
func (w *Writer) WriteString(s string) {
	if !utf8.ValidString(s) {
		panic("decoder: WriteString given invalid UTF-8")
	}
	w.WriteUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// writeRawU32LE appends v as 4 raw little-endian bytes, the inverse of
// readRawU32LE used for the module version field.
func writeRawU32LE(w *Writer, v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// writeSection appends one length-prefixed section: id byte, LEB128 body
// size, then body, mirroring DecodeModule's section loop exactly.
func writeSection(w *Writer, id sectionID, body []byte) {
	w.WriteByte(byte(id))
	w.WriteUint32(uint32(len(body)))
	w.WriteBytes(body)
}
