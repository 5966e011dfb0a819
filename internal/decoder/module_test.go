package decoder_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulseengine/wrt-sub001/internal/decoder"
	"github.com/pulseengine/wrt-sub001/internal/memory"
	"github.com/pulseengine/wrt-sub001/internal/rterr"
	"github.com/pulseengine/wrt-sub001/internal/wasmir"
)

// leb writes v as a single-byte unsigned LEB128, valid for every value used
// in these fixtures (all < 128).
func leb(v int) byte { return byte(v) }

func section(id byte, body []byte) []byte {
	return append([]byte{id, byte(len(body))}, body...)
}

// identityModuleBytes hand-assembles a minimal core Wasm binary: one type
// (i32)->(i32), one function using that type whose body is
// local.get 0; end, one 1-page memory, and an export of that function named
// "identity".
func identityModuleBytes(t *testing.T) []byte {
	t.Helper()
	buf := append([]byte{}, decoder.Magic[:]...)
	buf = append(buf, byte(decoder.Version), 0, 0, 0)

	typeSection := section(1, []byte{
		leb(1),                      // 1 type
		0x60,                        // func form
		leb(1), byte(wasmir.ValueTypeI32), // 1 param: i32
		leb(1), byte(wasmir.ValueTypeI32), // 1 result: i32
	})
	functionSection := section(3, []byte{
		leb(1), leb(0), // 1 function, type index 0
	})
	memorySection := section(5, []byte{
		leb(1),       // 1 memory
		0x00, leb(1), // flags=0 (no max), min=1
	})
	exportSection := section(7, []byte{
		leb(1),                         // 1 export
		leb(8), 'i', 'd', 'e', 'n', 't', 'i', 't', 'y',
		0x00,   // kind = func
		leb(0), // function index 0
	})

	body := []byte{
		leb(0), // 0 local-declaration groups
		leb(int(wasmir.OpLocalGet)), leb(0),
		leb(int(wasmir.OpEnd)),
	}
	codeSection := section(10, append([]byte{leb(1), byte(len(body))}, body...))

	buf = append(buf, typeSection...)
	buf = append(buf, functionSection...)
	buf = append(buf, memorySection...)
	buf = append(buf, exportSection...)
	buf = append(buf, codeSection...)
	return buf
}

func newScope(t *testing.T) *memory.Scope {
	t.Helper()
	arena := memory.NewArena(1 << 16)
	scope, err := arena.EnterScope(memory.Decoder, memory.DefaultModuleScopeBudget)
	require.NoError(t, err)
	t.Cleanup(func() { scope.Close() })
	return scope
}

func TestDecodeModuleParsesIdentityModule(t *testing.T) {
	scope := newScope(t)
	mod, err := decoder.DecodeModule(identityModuleBytes(t), decoder.DefaultLimits(0), scope)
	require.NoError(t, err)

	require.Len(t, mod.Types, 1)
	require.Len(t, mod.Functions, 1)
	require.Len(t, mod.Memories, 1)
	require.Len(t, mod.Exports, 1)
	require.Equal(t, "identity", mod.Exports[0].Name)
	require.NotZero(t, mod.Checksum)
}

func TestDecodeModuleRejectsBadMagic(t *testing.T) {
	scope := newScope(t)
	buf := append([]byte{0, 0, 0, 0}, 1, 0, 0, 0)
	_, err := decoder.DecodeModule(buf, decoder.DefaultLimits(0), scope)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Parse, rterr.ParseInvalidMagic))
}

func TestDecodeModuleRejectsBadVersion(t *testing.T) {
	scope := newScope(t)
	buf := append(append([]byte{}, decoder.Magic[:]...), 9, 0, 0, 0)
	_, err := decoder.DecodeModule(buf, decoder.DefaultLimits(0), scope)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Parse, rterr.ParseBadVersion))
}

func TestDecodeModuleRejectsExportOfUnknownFunction(t *testing.T) {
	scope := newScope(t)
	buf := append([]byte{}, decoder.Magic[:]...)
	buf = append(buf, byte(decoder.Version), 0, 0, 0)
	exportSection := section(7, []byte{
		leb(1),
		leb(3), 'f', 'o', 'o',
		0x00,
		leb(0), // refers to function 0, which does not exist
	})
	buf = append(buf, exportSection...)

	_, err := decoder.DecodeModule(buf, decoder.DefaultLimits(0), scope)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Validation, rterr.ValidationUnknownIndex))
}

func TestDecodeModuleRejectsSectionLongerThanRemainingInput(t *testing.T) {
	scope := newScope(t)
	buf := append([]byte{}, decoder.Magic[:]...)
	buf = append(buf, byte(decoder.Version), 0, 0, 0)
	buf = append(buf, 1, 100) // type section claims 100 bytes but none follow

	_, err := decoder.DecodeModule(buf, decoder.DefaultLimits(0), scope)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Parse, rterr.ParseSectionOverflow))
}

func TestEncodeModuleThenDecodeReproducesIR(t *testing.T) {
	m := &wasmir.Module{
		Types: []wasmir.FunctionType{
			{Params: []wasmir.ValueType{wasmir.ValueTypeI32, wasmir.ValueTypeI32}, Results: []wasmir.ValueType{wasmir.ValueTypeI32}},
		},
		Imports: []wasmir.Import{
			{Module: "env", Name: "tbl", Kind: wasmir.ExternKindTable, Table: wasmir.TableType{ElemType: wasmir.ValueTypeFuncref, Min: 1, Max: 4, HasMax: true}},
			{Module: "env", Name: "mem", Kind: wasmir.ExternKindMemory, Memory: wasmir.MemoryType{Min: 1}},
			{Module: "env", Name: "g", Kind: wasmir.ExternKindGlobal, Global: wasmir.GlobalType{ValType: wasmir.ValueTypeI32, Mutable: true}},
		},
		Functions: []wasmir.Function{
			{
				TypeIndex: 0,
				Locals:    []wasmir.ValueType{wasmir.ValueTypeI64, wasmir.ValueTypeI64},
				Body: []wasmir.Instruction{
					{Op: wasmir.OpLocalGet, Index: 0},
					{Op: wasmir.OpLocalGet, Index: 1},
					{Op: wasmir.OpI32Add},
					{Op: wasmir.OpEnd},
				},
			},
		},
		Memories: []wasmir.MemoryType{{Min: 1, Max: 2, HasMax: true}},
		Globals: []wasmir.Global{
			{Type: wasmir.GlobalType{ValType: wasmir.ValueTypeI32, Mutable: false}, Init: wasmir.Instruction{Op: wasmir.OpI32Const, I32: 42}},
		},
		Exports: []wasmir.Export{
			{Name: "add", Kind: wasmir.ExternKindFunc, Index: 0},
		},
		Elements: []wasmir.Element{
			{TableIndex: 0, Offset: wasmir.Instruction{Op: wasmir.OpI32Const, I32: 0}, FuncIndexes: []wasmir.Index{0}},
		},
		DataSegs: []wasmir.Data{
			{MemoryIndex: 0, Offset: wasmir.Instruction{Op: wasmir.OpI32Const, I32: 0}, Bytes: []byte("hi")},
		},
		CustomSections: map[string][]byte{"producers": []byte("wrt")},
	}

	encoded := decoder.EncodeModule(m)

	scope := newScope(t)
	decoded, err := decoder.DecodeModule(encoded, decoder.DefaultLimits(0), scope)
	require.NoError(t, err)

	require.Equal(t, m.Types, decoded.Types)
	require.Equal(t, m.Imports, decoded.Imports)
	require.Equal(t, m.Functions, decoded.Functions)
	require.Equal(t, m.Memories, decoded.Memories)
	require.Equal(t, m.Globals, decoded.Globals)
	require.Equal(t, m.Exports, decoded.Exports)
	require.Equal(t, m.Elements, decoded.Elements)
	require.Equal(t, m.DataSegs, decoded.DataSegs)
	require.Equal(t, m.CustomSections, decoded.CustomSections)
}

func TestDecodeThenEncodeModuleIsByteForByteStable(t *testing.T) {
	scope := newScope(t)
	mod, err := decoder.DecodeModule(identityModuleBytes(t), decoder.DefaultLimits(0), scope)
	require.NoError(t, err)

	firstPass := decoder.EncodeModule(mod)

	scope2 := newScope(t)
	reDecoded, err := decoder.DecodeModule(firstPass, decoder.DefaultLimits(0), scope2)
	require.NoError(t, err)

	secondPass := decoder.EncodeModule(reDecoded)
	require.Equal(t, firstPass, secondPass)
}

func TestDecodeModuleEnforcesTypeLimit(t *testing.T) {
	scope := newScope(t)
	buf := append([]byte{}, decoder.Magic[:]...)
	buf = append(buf, byte(decoder.Version), 0, 0, 0)
	typeSection := section(1, []byte{
		leb(1), 0x60, leb(0), leb(0),
	})
	buf = append(buf, typeSection...)

	tight := decoder.DefaultLimits(0)
	tight.MaxTypes = 0
	_, err := decoder.DecodeModule(buf, tight, scope)
	require.Error(t, err)
	require.True(t, rterr.Is(err, rterr.Parse, rterr.ParseLimitExceeded))
}
