package main

import (
	"errors"
	"fmt"
	"io"

	"ippc/pod"
	"ippc/process"
	"ippc/remote_call"
)

const (
	printInfoExport      = "PrintInfo"
	getInformationExport = "GetInformation"

	// upper bound for strings handed back by the target
	maxResultString = 4096
)

var printInfoLayout = &pod.Layout{
	Name: "PrintInfo_t",
	Size: 8,
	Fields: []pod.Field{
		{Name: "str", Offset: 0, Kind: pod.Pointer32},
		{Name: "len", Offset: 4, Kind: pod.Int32},
	},
}

// PrintInfo is the argument of PrintInfo: a string in the target and its length.
type PrintInfo struct {
	Str process.ProcessMemoryAddress
	Len int32
}

func (r *PrintInfo) Layout() *pod.Layout { return printInfoLayout }
func (r *PrintInfo) Fields() []any      { return []any{&r.Str, &r.Len} }

var getInformationLayout = &pod.Layout{
	Name: "GetInformation_t",
	Size: 12,
	Fields: []pod.Field{
		{Name: "str", Offset: 0, Kind: pod.Pointer32},
		{Name: "len", Offset: 4, Kind: pod.Int32},
		{Name: "rand", Offset: 8, Kind: pod.Int32},
	},
}

// GetInformation is the block GetInformation returns: a string, its length
// and a random number picked by the target.
type GetInformation struct {
	Str  process.ProcessMemoryAddress
	Len  int32
	Rand int32
}

func (r *GetInformation) Layout() *pod.Layout { return getInformationLayout }
func (r *GetInformation) Fields() []any      { return []any{&r.Str, &r.Len, &r.Rand} }

// sendInfo copies msg into the target and asks PrintInfo to print it.
func sendInfo(c *remote_call.Caller, msg string) (remote_call.Outcome, error) {
	str, err := pod.WriteString(c.Process(), msg)
	if err != nil {
		return remote_call.Outcome{}, err
	}

	rec := &PrintInfo{Str: str.Pointer(), Len: int32(str.Length)}
	return c.CallWithRecord(printInfoExport, rec, remote_call.BooleanResult, str.Allocation)
}

// getInformation calls GetInformation, reads the returned block and its
// string, then frees the block. The block comes from VirtualAllocEx in the
// target and is adopted into the ledger before release. The string lives
// on the target's own heap and stays there.
//
// A failed free does not lose the result: info and text come back together
// with the error.
func getInformation(c *remote_call.Caller, w io.Writer) (*GetInformation, string, error) {
	out, err := c.Call(getInformationExport, 0, remote_call.PointerResult)
	if err != nil {
		return nil, "", err
	}
	if !out.OK {
		return nil, "", fmt.Errorf("%s returned null", getInformationExport)
	}

	p := c.Process()
	block := p.AdoptMemory(out.Pointer, pod.SizeOf(&GetInformation{}))

	info := &GetInformation{}
	if err := pod.ReadValue(p, out.Pointer, info); err != nil {
		return nil, "", errors.Join(err, p.FreeMemory(block.Address))
	}
	if w != nil {
		pod.PrintRecord(p, info, w)
	}

	text, err := readResultString(p, info)
	if ferr := p.FreeMemory(block.Address); ferr != nil {
		err = errors.Join(err, fmt.Errorf("free result block: %w", ferr))
	}
	return info, text, err
}

// readResultString reads the string with its declared length in one read.
// A length that is not plausible falls back to a bounded NUL scan.
func readResultString(r process.MemoryReader, info *GetInformation) (string, error) {
	switch {
	case info.Str == 0:
		return "", nil
	case info.Len > 0 && info.Len <= maxResultString:
		return pod.ReadFixedString(r, info.Str, process.ProcessMemorySize(info.Len))
	}
	return pod.ReadString(r, info.Str, maxResultString)
}
