//go:build linux

package main

import (
	"strings"

	"ippc/process"
	"ippc/process_linux"
)

// openLive reads a PE image mapped into a Linux process, typically a Wine
// hosted program. Without -module the image named after the process is used.
func openLive(name string, pid process.ProcessID, module string) (process.Target, process.ModuleInfo, error) {
	finder := process_linux.Finder{}

	pid, err := pickPID(finder, name, pid)
	if err != nil {
		return nil, process.ModuleInfo{}, err
	}

	if module == "" {
		module = name
		if !strings.HasSuffix(strings.ToLower(module), ".exe") {
			module += ".exe"
		}
	}
	mod, err := finder.FindModule(pid, module)
	if err != nil {
		return nil, process.ModuleInfo{}, err
	}

	proc, err := process_linux.NewWithPID(pid)
	if err != nil {
		return nil, process.ModuleInfo{}, err
	}
	return proc, mod, nil
}
