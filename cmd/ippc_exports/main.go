package main

import (
	"flag"
	"fmt"
	"os"

	"ippc/process"
	"ippc/process_blob"
)

func main() {
	exportFlag := flag.String("export", "", "Resolve only this export (default: list all)")
	pidFlag := flag.Int("pid", 0, "Process ID to read from")
	nameFlag := flag.String("name", "ippp_example", "Process name, used when -pid is not set")
	moduleFlag := flag.String("module", "", "Module to read (default: main executable)")
	dumpFlag := flag.String("dump", "", "Read from a saved dump directory instead of a live process")
	baseFlag := flag.String("base", "", "Image base (hex), required with -dump")
	saveFlag := flag.String("save", "", "Save the image into a dump directory")
	verifyFlag := flag.String("verify", "", `Image file to cross-check RVAs with, or "mapped"`)
	hexdumpFlag := flag.Bool("hexdump", false, "Hexdump the export directory")
	selftestFlag := flag.Bool("selftest", false, "Resolve exports in a built image instead of a process")
	flag.Parse()

	if *selftestFlag {
		if err := selftest(os.Stdout); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	var (
		target process.Target
		base   process.ProcessMemoryAddress
		err    error
	)

	if *baseFlag != "" {
		if base, err = parseAddress(*baseFlag); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *dumpFlag != "" {
		if base == 0 {
			fmt.Println("Error: --base is required with --dump")
			flag.Usage()
			os.Exit(1)
		}
		dump := process_blob.NewProcessDump()
		if err := dump.Load(*dumpFlag); err != nil {
			fmt.Printf("Error loading dump from %s: %v\n", *dumpFlag, err)
			os.Exit(1)
		}
		fmt.Printf("Loaded dump of %s (pid %d) from %s\n", dump.Name, dump.PID, *dumpFlag)
		target = dump
	} else {
		live, module, err := openLive(*nameFlag, process.ProcessID(*pidFlag), *moduleFlag)
		if err != nil {
			fmt.Printf("Error attaching: %v\n", err)
			os.Exit(1)
		}
		defer live.Close()
		fmt.Printf("Attached to process %d, %s\n", live.GetPID(), module.Name)
		if base == 0 {
			base = module.Base
		}
		target = live
	}

	opts := options{Export: *exportFlag, Verify: *verifyFlag, HexDump: *hexdumpFlag}
	if err := run(target, base, opts, os.Stdout); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if *saveFlag != "" {
		if err := snapshot(target, base, *saveFlag); err != nil {
			fmt.Printf("Error saving dump: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Image saved to %s\n", *saveFlag)
	}
}

// pickPID returns pid if set, otherwise the lowest pid named name.
func pickPID(f process.ProcessFinder, name string, pid process.ProcessID) (process.ProcessID, error) {
	if pid != 0 {
		return pid, nil
	}
	procs, err := f.FindProcessByName(name)
	if err != nil {
		return 0, err
	}
	if len(procs) == 0 {
		return 0, fmt.Errorf("%w: %q", process.ErrProcessNotFound, name)
	}
	return procs[0].PID, nil
}
