package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"ippc/hexdump"
	"ippc/pe_export"
	"ippc/pod"
	"ippc/process"
	"ippc/process_blob"

	"github.com/Binject/debug/pe"
)

type options struct {
	Export string
	// Verify is an image file to compare RVAs with, or "mapped" to parse
	// the image copied out of the target instead.
	Verify  string
	HexDump bool
}

// run prints the export table of the image at base, or one export, and
// performs the optional checks.
func run(t process.Target, base process.ProcessMemoryAddress, opts options, w io.Writer) error {
	h, err := pe_export.ReadHeaders(t, base)
	if err != nil {
		return err
	}

	name, err := h.ModuleName(t)
	if err != nil {
		name = "?"
	}
	fmt.Fprintf(w, "%s at %s, %d functions, %d names, ordinal base %d\n",
		name, base.ToString(), h.Exports.NumberOfFunctions, h.Exports.NumberOfNames, h.Exports.Base)

	if opts.Export != "" {
		entry, err := pe_export.Resolve(t, base, opts.Export)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, entry.String())
	} else {
		entries, err := pe_export.Exports(t, base)
		if err != nil {
			return err
		}
		printExports(entries, w)
	}

	if opts.HexDump {
		mm, err := t.GetMemoryMap()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\nexport directory, rva 0x%X size 0x%X\n", h.Directory.VirtualAddress, h.Directory.Size)
		if err := hexdump.DumpRemote(w, t, base.Add(h.Directory.VirtualAddress), process.ProcessMemorySize(h.Directory.Size), mm); err != nil {
			return err
		}
	}

	if opts.Verify != "" {
		return verify(t, h, opts.Verify, w)
	}
	return nil
}

func printExports(entries []pe_export.ExportEntry, w io.Writer) {
	table := pod.NewTable(
		pod.ColumnSpec{Header: "Ordinal", MinWidth: 7},
		pod.ColumnSpec{Header: "Name", MinWidth: 16},
		pod.ColumnSpec{Header: "RVA", MinWidth: 8},
		pod.ColumnSpec{Header: "Address", MinWidth: 10, FormatFunc: pod.PointerFormatter},
	)
	for _, e := range entries {
		table.AddRow(strconv.Itoa(int(e.Ordinal)), e.Name, fmt.Sprintf("0x%X", e.RVA), e.Address.ToString())
	}
	table.Render(w)
}

func verify(t process.Target, h *pe_export.ImageHeaders, against string, w io.Writer) error {
	live, err := pe_export.Exports(t, h.Base)
	if err != nil {
		return err
	}

	var reference []pe.Export
	if against == "mapped" {
		reference, err = pe_export.MappedExports(t, h)
	} else {
		reference, err = pe_export.ReferenceExports(against)
	}
	if err != nil {
		return err
	}

	mismatches := pe_export.CompareExports(live, reference)
	if len(mismatches) == 0 {
		fmt.Fprintf(w, "\n%d exports match %s\n", len(live), against)
		return nil
	}

	fmt.Fprintf(w, "\n%d export(s) differ from %s:\n", len(mismatches), against)
	for _, m := range mismatches {
		fmt.Fprintln(w, " ", m.String())
	}
	return fmt.Errorf("%d export(s) differ from %s", len(mismatches), against)
}

// snapshot copies the image at base into a dump directory that -dump can
// read back later.
func snapshot(t process.Target, base process.ProcessMemoryAddress, dir string) error {
	h, err := pe_export.ReadHeaders(t, base)
	if err != nil {
		return err
	}
	data, err := t.ReadMemory(base, process.ProcessMemorySize(h.Optional.SizeOfImage))
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	dump := process_blob.NewProcessDump()
	dump.PID = t.GetPID()
	if name, err := h.ModuleName(t); err == nil {
		dump.Name = name
	}
	dump.Map(base, data, "r--p")
	return dump.Save(dir)
}

// selftestBase is where -selftest maps the image it builds.
const selftestBase process.ProcessMemoryAddress = 0x00400000

// selftest builds an image exporting what ippp_example exports, maps it into
// a simulated process and lists it like a live target.
func selftest(w io.Writer) error {
	img := pe_export.NewImageBuilder("ippp_example.exe").
		AddExport("GetInformation", 0x2000).
		AddExport("PrintInfo", 0x2100).
		Build()

	dump := process_blob.NewProcessDump()
	dump.Name = "selftest"
	dump.Map(selftestBase, img, "r-xp")

	if err := run(dump, selftestBase, options{HexDump: true}, w); err != nil {
		return err
	}
	for _, name := range []string{"GetInformation", "PrintInfo"} {
		if _, err := pe_export.Resolve(dump, selftestBase, name); err != nil {
			return err
		}
	}
	fmt.Fprintln(w, "\nselftest ok")
	return nil
}

func parseAddress(s string) (process.ProcessMemoryAddress, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse address %q: %w", s, err)
	}
	return process.ProcessMemoryAddress(v), nil
}
