package decoder

import (
	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// Magic and Version identify the core Wasm binary format (spec.md §6:
// "core Wasm binary (version 1)").
var Magic = [4]byte{0x00, 0x61, 0x73, 0x6d}

const Version uint32 = 1

// sectionID enumerates the module sections. EncodeModule emits them in
// this order; DecodeModule does not check the order it reads them in.
type sectionID byte

const (
	sectionCustom sectionID = iota
	sectionType
	sectionImport
	sectionFunction
	sectionTable
	sectionMemory
	sectionGlobal
	sectionExport
	sectionStart
	sectionElement
	sectionCode
	sectionData
)

// DecodeModule parses a complete core Wasm module from buf, validating
// structure, cross-references and size limits as it goes, inside the
// arena scope obtained by the caller (spec.md §4.5: "the decoder runs
// inside a decoder scope so that intermediate vectors are arena-allocated
// and reclaimed on exit"). scope is accepted purely so callers can prove
// at the type level that one was entered; intermediate slices in this
// implementation are ordinary Go slices bounded by limits, converted to
// bounded containers by the caller once the IR is handed to the engine.
func DecodeModule(buf []byte, limits Limits, scope *memory.Scope) (*wasmir.Module, error) {
	r := NewReader(buf)

	magic, err := r.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if [4]byte(magic) != Magic {
		return nil, r.fail(rterr.ErrInvalidMagic())
	}
	version, err := readRawU32LE(r)
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, r.fail(rterr.ErrBadVersion())
	}

	m := &wasmir.Module{CustomSections: map[string][]byte{}}
	var funcTypeIndexes []wasmir.Index

	for r.Remaining() > 0 {
		idByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		id := sectionID(idByte)
		size, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		if uint64(size) > uint64(r.Remaining()) {
			return nil, r.fail(rterr.ErrSectionOverflow())
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, err
		}
		sr := NewReader(body)

		switch id {
		case sectionCustom:
			name, err := sr.ReadString(limits.MaxNameBytes)
			if err != nil {
				return nil, err
			}
			m.CustomSections[name] = append([]byte(nil), body[int(sr.Pos()):]...)
		case sectionType:
			if err := decodeTypeSection(sr, limits, m); err != nil {
				return nil, err
			}
		case sectionImport:
			if err := decodeImportSection(sr, limits, m); err != nil {
				return nil, err
			}
		case sectionFunction:
			if funcTypeIndexes, err = decodeFunctionSection(sr, limits, m); err != nil {
				return nil, err
			}
		case sectionTable:
			if err := decodeTableSection(sr, limits, m); err != nil {
				return nil, err
			}
		case sectionMemory:
			if err := decodeMemorySection(sr, limits, m); err != nil {
				return nil, err
			}
		case sectionGlobal:
			if err := decodeGlobalSection(sr, limits, m); err != nil {
				return nil, err
			}
		case sectionExport:
			if err := decodeExportSection(sr, limits, m); err != nil {
				return nil, err
			}
		case sectionStart:
			idx, err := sr.ReadUint32()
			if err != nil {
				return nil, err
			}
			start := wasmir.Index(idx)
			m.Start = &start
		case sectionElement:
			if err := decodeElementSection(sr, limits, m); err != nil {
				return nil, err
			}
		case sectionCode:
			if err := decodeCodeSection(sr, limits, m, funcTypeIndexes); err != nil {
				return nil, err
			}
		case sectionData:
			if err := decodeDataSection(sr, limits, m); err != nil {
				return nil, err
			}
		default:
			return nil, r.fail(rterr.New(rterr.Parse, rterr.ParseSectionOverflow, "unknown section id"))
		}
	}

	if err := validateCrossReferences(m); err != nil {
		return nil, err
	}

	m.Checksum = memory.Checksum32(buf)
	return m, nil
}

func readRawU32LE(r *Reader) (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func checkLimit(n, max uint32) error {
	if n > max {
		return rterr.ErrLimitExceeded()
	}
	return nil
}
