package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"ippc/pe_export"
	"ippc/pod"
	"ippc/process"
	"ippc/process_blob"
	"ippc/remote_call"

	"github.com/stretchr/testify/require"
)

const (
	exampleBase  process.ProcessMemoryAddress = 0x00400000
	resultString process.ProcessMemoryAddress = 0x00800000
	resultBlock  process.ProcessMemoryAddress = 0x00801000
	greeting                                  = "Hello from ippp_example"
)

// example mimics ippp_example.exe: PrintInfo records what it was sent and
// GetInformation hands back a block it allocated itself.
type example struct {
	*process_blob.ProcessDump
	printed []string
}

func newExample(t *testing.T) *example {
	t.Helper()
	ex := &example{ProcessDump: process_blob.NewProcessDump()}

	img := pe_export.NewImageBuilder("ippp_example.exe").
		AddExport("GetInformation", 0x2000).
		AddExport("PrintInfo", 0x2100).
		Build()
	ex.Map(exampleBase, img, "r-xp")

	ex.RegisterFunction(exampleBase+0x2100, func(ctx context.Context, p *process_blob.ProcessDump, arg process.ProcessMemoryAddress) uint32 {
		var rec PrintInfo
		if err := pod.ReadValue(p, arg, &rec); err != nil {
			return 0
		}
		data, err := p.ReadMemory(rec.Str, process.ProcessMemorySize(rec.Len))
		if err != nil {
			return 0
		}
		ex.printed = append(ex.printed, string(data))
		return 1
	})

	ex.RegisterFunction(exampleBase+0x2000, func(ctx context.Context, p *process_blob.ProcessDump, arg process.ProcessMemoryAddress) uint32 {
		p.Map(resultString, append([]byte(greeting), 0), "rw-p")

		block, err := pod.Encode(&GetInformation{Str: resultString, Len: int32(len(greeting)), Rand: 1337})
		if err != nil {
			return 0
		}
		p.Map(resultBlock, block, "rw-p")
		return uint32(resultBlock)
	})

	return ex
}

func newCaller(ex *example) *remote_call.Caller {
	return remote_call.NewCaller(ex, exampleBase, time.Second)
}

func TestRecordLayouts(t *testing.T) {
	require.NoError(t, printInfoLayout.Validate())
	require.NoError(t, getInformationLayout.Validate())

	data, err := pod.Encode(&PrintInfo{Str: 0x00A00000, Len: 5})
	require.NoError(t, err)
	require.Equal(t, []byte{0x00, 0x00, 0xA0, 0x00, 0x05, 0x00, 0x00, 0x00}, data)
}

func TestSendInfo(t *testing.T) {
	ex := newExample(t)

	out, err := sendInfo(newCaller(ex), "hello")
	require.NoError(t, err)
	require.True(t, out.OK)
	require.Equal(t, []string{"hello"}, ex.printed)
	require.Empty(t, ex.Allocations())
}

func TestSendInfoMissingExport(t *testing.T) {
	ex := newExample(t)
	c := remote_call.NewCaller(ex, exampleBase, time.Second)

	_, err := c.CallWithRecord("PrintInfoW", &PrintInfo{}, remote_call.BooleanResult)
	require.ErrorIs(t, err, pe_export.ErrExportNotFound)
	require.Empty(t, ex.Allocations())
}

func TestGetInformation(t *testing.T) {
	ex := newExample(t)

	var buf bytes.Buffer
	info, text, err := getInformation(newCaller(ex), &buf)
	require.NoError(t, err)
	require.Equal(t, greeting, text)
	require.Equal(t, int32(1337), info.Rand)
	require.Contains(t, buf.String(), "GetInformation_t")

	// the block is released, the heap string belongs to the target
	require.Empty(t, ex.Allocations())
	require.False(t, ex.IsValidAddress(resultBlock))
	require.True(t, ex.IsValidAddress(resultString))
}

func TestGetInformationBadLengthScans(t *testing.T) {
	ex := newExample(t)
	ex.RegisterFunction(exampleBase+0x2000, func(ctx context.Context, p *process_blob.ProcessDump, arg process.ProcessMemoryAddress) uint32 {
		p.Map(resultString, append([]byte(greeting), 0), "rw-p")
		block, _ := pod.Encode(&GetInformation{Str: resultString, Len: -1})
		p.Map(resultBlock, block, "rw-p")
		return uint32(resultBlock)
	})

	_, text, err := getInformation(newCaller(ex), nil)
	require.NoError(t, err)
	require.Equal(t, greeting, text)
}

// stuckFree refuses to release anything.
type stuckFree struct {
	*process_blob.ProcessDump
}

func (stuckFree) FreeMemory(addr process.ProcessMemoryAddress) error {
	return fmt.Errorf("VirtualFreeEx(%s): ERROR_INVALID_ADDRESS", addr.ToString())
}

func TestGetInformationFreeFailureKeepsResult(t *testing.T) {
	ex := newExample(t)
	c := remote_call.NewCaller(stuckFree{ex.ProcessDump}, exampleBase, time.Second)

	info, text, err := getInformation(c, nil)
	require.ErrorContains(t, err, "free result block")
	require.NotNil(t, info)
	require.Equal(t, greeting, text)

	var out bytes.Buffer
	repl(c, strings.NewReader("get\nexit\n"), &out)
	require.Contains(t, out.String(), "Target says: "+greeting)
	require.Contains(t, out.String(), "Error:")
}

func TestGetInformationNull(t *testing.T) {
	ex := newExample(t)
	ex.RegisterFunction(exampleBase+0x2000, func(ctx context.Context, p *process_blob.ProcessDump, arg process.ProcessMemoryAddress) uint32 {
		return 0
	})

	_, _, err := getInformation(newCaller(ex), nil)
	require.ErrorContains(t, err, "returned null")
}

func TestRepl(t *testing.T) {
	ex := newExample(t)

	in := strings.NewReader("send\nfrom the repl\nget\nbogus\nexit\nsend\n")
	var out bytes.Buffer
	repl(newCaller(ex), in, &out)

	require.Equal(t, []string{"from the repl"}, ex.printed)
	require.Contains(t, out.String(), "Operation done!")
	require.Contains(t, out.String(), "Target says: "+greeting)
	require.Contains(t, out.String(), "Target gave us a number: 1337")
	require.Contains(t, out.String(), `Unknown command "bogus"`)
}

type staticFinder []process.ProcessInfo

func (f staticFinder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	var out []process.ProcessInfo
	for _, p := range f {
		if p.Name == name {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestResolvePID(t *testing.T) {
	f := staticFinder{{PID: 40, Name: "ippp_example"}, {PID: 52, Name: "ippp_example"}}

	pid, err := resolvePID(f, "ippp_example", 0)
	require.NoError(t, err)
	require.Equal(t, process.ProcessID(40), pid)

	pid, err = resolvePID(f, "ignored", 7)
	require.NoError(t, err)
	require.Equal(t, process.ProcessID(7), pid)

	_, err = resolvePID(f, "notepad", 0)
	require.ErrorIs(t, err, process.ErrProcessNotFound)
}
