package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"ippc/pe_export"
	"ippc/process"
	"ippc/process_blob"

	"github.com/stretchr/testify/require"
)

const base process.ProcessMemoryAddress = 0x00400000

func newImage(t *testing.T) *process_blob.ProcessDump {
	t.Helper()
	dump := process_blob.NewProcessDump()
	dump.PID = 1234
	img := pe_export.NewImageBuilder("ippp_example.exe").
		AddExport("PrintInfo", 0x1100).
		AddExport("GetInformation", 0x1200).
		Build()
	dump.Map(base, img, "r-xp")
	return dump
}

func TestRunListsExports(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(newImage(t), base, options{}, &out))

	require.Contains(t, out.String(), "ippp_example.exe at 0x400000, 2 functions, 2 names")
	require.Contains(t, out.String(), "PrintInfo")
	require.Contains(t, out.String(), "0x1200")
}

func TestRunSingleExport(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(newImage(t), base, options{Export: "GetInformation"}, &out))
	require.Contains(t, out.String(), "GetInformation @ 0x401200 (rva 0x1200, ordinal 2)")

	err := run(newImage(t), base, options{Export: "getinformation"}, &out)
	require.ErrorIs(t, err, pe_export.ErrExportNotFound)
}

func TestRunHexDump(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(newImage(t), base, options{HexDump: true}, &out))
	require.Contains(t, out.String(), "export directory, rva 0x1000")
}

func TestSelftest(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, selftest(&out))
	require.Contains(t, out.String(), "ippp_example.exe at 0x400000, 2 functions, 2 names, ordinal base 1")
	require.Contains(t, out.String(), "PrintInfo")
	require.Contains(t, out.String(), "selftest ok")
}

func TestRunVerifyMissingFile(t *testing.T) {
	var out bytes.Buffer
	err := run(newImage(t), base, options{Verify: filepath.Join(t.TempDir(), "none.exe")}, &out)
	require.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, snapshot(newImage(t), base, dir))

	loaded := process_blob.NewProcessDump()
	require.NoError(t, loaded.Load(dir))
	require.Equal(t, process.ProcessID(1234), loaded.PID)
	require.Equal(t, "ippp_example.exe", loaded.Name)

	var out bytes.Buffer
	require.NoError(t, run(loaded, base, options{Export: "PrintInfo"}, &out))
	require.Contains(t, out.String(), "PrintInfo @ 0x401100")
}

func TestParseAddress(t *testing.T) {
	addr, err := parseAddress("0x00400000")
	require.NoError(t, err)
	require.Equal(t, base, addr)

	addr, err = parseAddress("7FFE0000")
	require.NoError(t, err)
	require.Equal(t, process.ProcessMemoryAddress(0x7FFE0000), addr)

	_, err = parseAddress("zz")
	require.Error(t, err)
}
