package hexdump

import (
	"bytes"
	"regexp"
	"strings"
	"testing"

	"ippc/process_blob"

	"github.com/stretchr/testify/require"
)

var ansi = regexp.MustCompile("\x1b\\[[0-9;]*m")

func plain(s string) string {
	return ansi.ReplaceAllString(s, "")
}

func TestDumpBytes(t *testing.T) {
	out := plain(DumpBytes([]byte("MZ\x90\x00PE\x00\x00")))
	require.Equal(t, "00000000  4d 5a 90 00 50 45 00 00"+strings.Repeat(" ", 26)+" | MZ..PE..\n", out)
}

func TestDumpRemoteLabelsAndPointers(t *testing.T) {
	dump := process_blob.NewProcessDump()
	data := make([]byte, 20)
	copy(data[4:], []byte{0x00, 0x10, 0x40, 0x00}) // 0x00401000
	dump.Map(0x00401000, data, "r--p")

	mm, err := dump.GetMemoryMap()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, DumpRemote(&buf, dump, 0x00401000, 20, mm))

	lines := strings.Split(strings.TrimSpace(plain(buf.String())), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "00401000"))
	require.True(t, strings.HasSuffix(lines[0], "| 0x401000"))
	require.True(t, strings.HasPrefix(lines[1], "00401010"))
}

func TestDumpRemoteReadError(t *testing.T) {
	var buf bytes.Buffer
	err := DumpRemote(&buf, process_blob.NewProcessDump(), 0x1000, 4, nil)
	require.Error(t, err)
	require.Zero(t, buf.Len())
}

func TestMaxLines(t *testing.T) {
	options := DefaultOptions()
	options.MaxLines = 1
	out := plain(Dump(make([]byte, 40), options))
	require.Contains(t, out, "... 24 more bytes")
}
