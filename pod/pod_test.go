package pod

import (
	"bytes"
	"strings"
	"testing"

	"ippc/process"
	"ippc/process_blob"

	"github.com/stretchr/testify/require"
)

var sampleLayout = &Layout{
	Name: "Sample_t",
	Size: 24,
	Fields: []Field{
		{Name: "flag", Offset: 0, Kind: Uint8},
		{Name: "port", Offset: 2, Kind: Uint16},
		{Name: "ptr", Offset: 4, Kind: Pointer32},
		{Name: "delta", Offset: 8, Kind: Int32},
		{Name: "count", Offset: 12, Kind: Uint32},
		{Name: "big", Offset: 16, Kind: Uint64},
	},
}

type sample struct {
	Flag  uint8
	Port  uint16
	Ptr   process.ProcessMemoryAddress
	Delta int32
	Count uint32
	Big   uint64
}

func (s *sample) Layout() *Layout { return sampleLayout }
func (s *sample) Fields() []any {
	return []any{&s.Flag, &s.Port, &s.Ptr, &s.Delta, &s.Count, &s.Big}
}

func TestValidate(t *testing.T) {
	require.NoError(t, sampleLayout.Validate())

	overlap := &Layout{Name: "o", Size: 8, Fields: []Field{
		{Name: "a", Offset: 0, Kind: Uint32},
		{Name: "b", Offset: 2, Kind: Uint16},
	}}
	require.ErrorIs(t, overlap.Validate(), ErrLayout)

	outside := &Layout{Name: "x", Size: 4, Fields: []Field{{Name: "a", Offset: 4, Kind: Uint32}}}
	require.ErrorIs(t, outside.Validate(), ErrLayout)

	misaligned := &Layout{Name: "m", Size: 8, Fields: []Field{{Name: "a", Offset: 2, Kind: Uint32}}}
	require.ErrorIs(t, misaligned.Validate(), ErrLayout)

	empty := &Layout{Name: "e"}
	require.ErrorIs(t, empty.Validate(), ErrLayout)
}

func TestEncodeLayout(t *testing.T) {
	s := &sample{Flag: 1, Port: 0x1234, Ptr: 0x00A01000, Delta: -1, Count: 7, Big: 0x0102030405060708}

	data, err := Encode(s)
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x01, 0x00, 0x34, 0x12,
		0x00, 0x10, 0xA0, 0x00,
		0xFF, 0xFF, 0xFF, 0xFF,
		0x07, 0x00, 0x00, 0x00,
		0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01,
	}, data)

	var back sample
	require.NoError(t, Decode(data, &back))
	require.Equal(t, *s, back)
}

func TestEncodeRejectsWidePointer(t *testing.T) {
	s := &sample{Ptr: 0x1_0000_0000}
	_, err := Encode(s)
	require.ErrorIs(t, err, ErrPointerWidth)
}

type mismatched struct{ v uint16 }

func (m *mismatched) Layout() *Layout {
	return &Layout{Name: "mismatched", Size: 4, Fields: []Field{{Name: "v", Offset: 0, Kind: Uint32}}}
}
func (m *mismatched) Fields() []any { return []any{&m.v} }

func TestKindMismatch(t *testing.T) {
	_, err := Encode(&mismatched{})
	require.ErrorIs(t, err, ErrLayout)
	require.ErrorIs(t, Decode(make([]byte, 4), &mismatched{}), ErrLayout)
}

func TestDecodeShortBuffer(t *testing.T) {
	require.ErrorIs(t, Decode(make([]byte, 3), &sample{}), ErrLayout)
}

func TestWriteReadValue(t *testing.T) {
	dump := process_blob.NewProcessDump()

	str, err := WriteString(dump, "hello from the caller")
	require.NoError(t, err)
	require.Equal(t, 21, str.Length)
	require.Equal(t, process.ProcessMemorySize(22), str.Allocation.Size)

	s := &sample{Ptr: str.Pointer(), Count: uint32(str.Length)}
	alloc, err := WriteValue(dump, s)
	require.NoError(t, err)
	require.Equal(t, SizeOf(s), alloc.Size)

	var back sample
	require.NoError(t, ReadValue(dump, alloc.Address, &back))
	require.Equal(t, *s, back)

	text, err := ReadString(dump, back.Ptr, 0)
	require.NoError(t, err)
	require.Equal(t, "hello from the caller", text)

	require.NoError(t, dump.FreeMemory(alloc.Address))
	require.NoError(t, dump.FreeMemory(str.Pointer()))
	require.Empty(t, dump.Allocations())
}

func TestWriteEmptyString(t *testing.T) {
	dump := process_blob.NewProcessDump()

	str, err := WriteString(dump, "")
	require.NoError(t, err)

	text, err := ReadString(dump, str.Pointer(), 0)
	require.NoError(t, err)
	require.Equal(t, "", text)
}

func TestReadStringNull(t *testing.T) {
	_, err := ReadString(process_blob.NewProcessDump(), 0, 0)
	require.ErrorIs(t, err, process.ErrAddressNotMapped)
}

func TestReadFixedString(t *testing.T) {
	dump := process_blob.NewProcessDump()
	dump.Map(0x5000, []byte("hello\x00junk"), "r--p")

	text, err := ReadFixedString(dump, 0x5000, 5)
	require.NoError(t, err)
	require.Equal(t, "hello", text)

	text, err = ReadFixedString(dump, 0x5000, 10)
	require.NoError(t, err)
	require.Equal(t, "hello", text)

	_, err = ReadFixedString(dump, 0x5000, 11)
	require.ErrorIs(t, err, process.ErrMemoryAccess)

	_, err = ReadFixedString(dump, 0, 5)
	require.ErrorIs(t, err, process.ErrAddressNotMapped)
}

func TestReadValueUnmapped(t *testing.T) {
	err := ReadValue(process_blob.NewProcessDump(), 0x1234, &sample{})
	require.ErrorIs(t, err, process.ErrMemoryAccess)
}

func TestPrintRecord(t *testing.T) {
	dump := process_blob.NewProcessDump()
	alloc, err := dump.AllocateMemory(16)
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintRecord(dump, &sample{Ptr: alloc.Address, Count: 3}, &buf)

	out := buf.String()
	require.Contains(t, out, "=== Sample_t ===")
	require.Contains(t, out, "ptr")
	require.Contains(t, out, "✓")
	require.Equal(t, 1, strings.Count(out, "Size: 0x18"))
}
