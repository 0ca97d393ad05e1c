package hexdump

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"ippc/coloransi"
	"ippc/process"
	"ippc/process/memory_map"
)

// HexDumpOptions defines options for customizing the hexdump output
type HexDumpOptions struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// GroupSize defines the grouping of bytes (usually 1, 2, 4, or 8)
	GroupSize int

	ShowASCII  bool
	ShowOffset bool

	// StartOffset is printed for the first byte; use the remote address
	// to label lines with target addresses
	StartOffset uint64

	// OffsetWidth is the width of the offset column in hex digits
	OffsetWidth int

	OffsetColor       coloransi.ColorCode
	HexColor          coloransi.ColorCode
	ASCIIColor        coloransi.ColorCode
	NonPrintableColor coloransi.ColorCode
	ZeroColor         coloransi.ColorCode

	// MaxLines is the maximum number of lines to show (0 for no limit)
	MaxLines int

	// ShowPointers lists the words of a line that point into MemoryMap
	ShowPointers bool
	// PointerWidth is 4 for 32-bit targets and 8 for 64-bit ones
	PointerWidth int
	MemoryMap    []memory_map.MemoryMapItem
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() HexDumpOptions {
	return HexDumpOptions{
		BytesPerLine:      16,
		GroupSize:         1,
		ShowASCII:         true,
		ShowOffset:        true,
		OffsetWidth:       8,
		OffsetColor:       coloransi.Cyan,
		HexColor:          coloransi.Green,
		ASCIIColor:        coloransi.White,
		NonPrintableColor: coloransi.BrightBlack,
		ZeroColor:         coloransi.BrightBlack,
		PointerWidth:      4,
	}
}

// Dump creates a hex dump of the given data with specified options
func Dump(data []byte, options HexDumpOptions) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpToWriter writes a hex dump of the given data to the specified writer
func DumpToWriter(writer io.Writer, data []byte, options HexDumpOptions) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}
	if options.GroupSize <= 0 {
		options.GroupSize = 1
	}
	if options.OffsetWidth <= 0 {
		options.OffsetWidth = 8
	}
	if options.PointerWidth != 8 {
		options.PointerWidth = 4
	}

	lineCount := 0
	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		if options.MaxLines > 0 && lineCount >= options.MaxLines {
			fmt.Fprintf(writer, "... %d more bytes\n", len(data)-offset)
			break
		}

		end := min(offset+options.BytesPerLine, len(data))
		formatLine(writer, data[offset:end], uint64(offset)+options.StartOffset, options)
		lineCount++
	}
}

// formatLine formats a single line of the hex dump
func formatLine(writer io.Writer, data []byte, offset uint64, options HexDumpOptions) {
	if options.ShowOffset {
		offsetStr := fmt.Sprintf("%0"+strconv.Itoa(options.OffsetWidth)+"x", offset)
		fmt.Fprint(writer, coloransi.Foreground(options.OffsetColor, offsetStr), "  ")
	}

	hexParts := formatHexValues(data, options)

	// the mid-line divider only shows once the line reaches past half
	useSplit := options.BytesPerLine >= 8 && len(data) > (options.BytesPerLine/2)

	groupsPerLine := max(options.BytesPerLine/options.GroupSize, 1)
	leftGroups := min(groupsPerLine/2, len(hexParts))

	if useSplit && leftGroups > 0 && leftGroups < len(hexParts) {
		fmt.Fprint(writer, strings.Join(hexParts[:leftGroups], " "), " | ", strings.Join(hexParts[leftGroups:], " "))
	} else {
		fmt.Fprint(writer, strings.Join(hexParts, " "))
	}

	// pad short lines so the ASCII column stays aligned
	if options.BytesPerLine > len(data) {
		fullGroups := (options.BytesPerLine + options.GroupSize - 1) / options.GroupSize
		curGroups := (len(data) + options.GroupSize - 1) / options.GroupSize
		missingBytes := options.BytesPerLine - len(data)
		deltaSpaces := (fullGroups - 1) - max(0, curGroups-1)

		// the divider takes the place of one space
		pipeFull := 0
		if options.BytesPerLine >= 8 {
			pipeFull = 2
		}
		pipeCur := 0
		if useSplit {
			pipeCur = 2
		}

		if paddingSize := missingBytes*2 + deltaSpaces + (pipeFull - pipeCur); paddingSize > 0 {
			fmt.Fprint(writer, strings.Repeat(" ", paddingSize))
		}
	}

	if options.ShowASCII {
		fmt.Fprint(writer, " | ")

		midPoint := options.BytesPerLine / 2
		if options.BytesPerLine >= 8 && len(data) > midPoint {
			formatASCII(writer, data[:midPoint], options)
			fmt.Fprint(writer, " ")
			formatASCII(writer, data[midPoint:], options)
		} else {
			formatASCII(writer, data, options)
		}
	}

	if options.ShowPointers {
		var ptrs []string
		for i := 0; i+options.PointerWidth <= len(data); i += options.PointerWidth {
			var ptr uint64
			if options.PointerWidth == 8 {
				ptr = binary.LittleEndian.Uint64(data[i:])
			} else {
				ptr = uint64(binary.LittleEndian.Uint32(data[i:]))
			}
			if ptr != 0 && memory_map.FindRegion(ptr, options.MemoryMap) != nil {
				ptrs = append(ptrs, coloransi.Foreground(coloransi.Yellow, fmt.Sprintf("0x%x", ptr)))
			}
		}
		if len(ptrs) > 0 {
			fmt.Fprint(writer, " | ", strings.Join(ptrs, " "))
		}
	}

	fmt.Fprintln(writer)
}

func formatASCII(writer io.Writer, data []byte, options HexDumpOptions) {
	for _, b := range data {
		c := rune(b)
		switch {
		case b == 0:
			fmt.Fprint(writer, coloransi.Foreground(options.ZeroColor, "."))
		case b >= 0x80 || !unicode.IsPrint(c):
			fmt.Fprint(writer, coloransi.Foreground(options.NonPrintableColor, "."))
		default:
			fmt.Fprint(writer, coloransi.Foreground(options.ASCIIColor, string(c)))
		}
	}
}

// formatHexValues formats the hex values part of the line with proper grouping
func formatHexValues(data []byte, options HexDumpOptions) []string {
	var result []string
	var groupBuffer []string

	for i, b := range data {
		color := options.HexColor
		if b == 0 {
			color = options.ZeroColor
		}
		groupBuffer = append(groupBuffer, coloransi.Foreground(color, fmt.Sprintf("%02x", b)))

		if (i+1)%options.GroupSize == 0 || i == len(data)-1 {
			result = append(result, strings.Join(groupBuffer, ""))
			groupBuffer = nil
		}
	}

	return result
}

// DumpBytes creates a simple hex dump with default options
func DumpBytes(data []byte) string {
	return Dump(data, DefaultOptions())
}

// DumpRemote reads size bytes at addr from r and dumps them labelled with
// their target addresses. Words that point into mm are listed per line.
func DumpRemote(w io.Writer, r process.MemoryReader, addr process.ProcessMemoryAddress, size process.ProcessMemorySize, mm []memory_map.MemoryMapItem) error {
	data, err := r.ReadMemory(addr, size)
	if err != nil {
		return err
	}

	options := DefaultOptions()
	options.StartOffset = uint64(addr)
	options.ShowPointers = len(mm) > 0
	options.MemoryMap = mm
	options.NonPrintableColor = coloransi.Red

	DumpToWriter(w, data, options)
	return nil
}
