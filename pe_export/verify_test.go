package pe_export

import (
	"path/filepath"
	"testing"

	"github.com/Binject/debug/pe"
	"github.com/stretchr/testify/require"
)

func TestCompareExports(t *testing.T) {
	live := []ExportEntry{
		{Name: "PrintInfo", RVA: 0x1100},
		{Name: "GetInformation", RVA: 0x1200},
		{Name: "Patched", RVA: 0x1300},
	}
	reference := []pe.Export{
		{Name: "PrintInfo", VirtualAddress: 0x1100},
		{Name: "GetInformation", VirtualAddress: 0x1250},
		{Name: "Removed", VirtualAddress: 0x1400},
		{VirtualAddress: 0x1500},
	}

	got := CompareExports(live, reference)
	require.Equal(t, []Mismatch{
		{Name: "GetInformation", Live: 0x1200, Reference: 0x1250},
		{Name: "Patched", Live: 0x1300, LiveOnly: true},
		{Name: "Removed", Reference: 0x1400, ReferenceOnly: true},
	}, got)
	require.Equal(t, "Patched: rva 0x1300 only in target", got[1].String())
}

func TestCompareExportsIdentical(t *testing.T) {
	live := []ExportEntry{{Name: "PrintInfo", RVA: 0x1100}}
	reference := []pe.Export{{Name: "PrintInfo", VirtualAddress: 0x1100}}
	require.Empty(t, CompareExports(live, reference))
}

func TestReferenceExportsMissingFile(t *testing.T) {
	_, err := ReferenceExports(filepath.Join(t.TempDir(), "missing.dll"))
	require.Error(t, err)
}

func TestMappedExportsNeedsImageSize(t *testing.T) {
	_, err := MappedExports(nil, &ImageHeaders{Base: testBase})
	require.ErrorIs(t, err, ErrMalformedImage)
}
