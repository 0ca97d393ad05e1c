//go:build windows

package main

import (
	"ippc/process"
	"ippc/process_windows"
)

func attach(name string, pid process.ProcessID, module string) (process.Process, process.ModuleInfo, error) {
	finder := process_windows.Finder{}

	pid, err := resolvePID(finder, name, pid)
	if err != nil {
		return nil, process.ModuleInfo{}, err
	}

	mod, err := finder.FindModule(pid, module)
	if err != nil {
		return nil, process.ModuleInfo{}, err
	}

	proc, err := process_windows.NewWithPID(pid)
	if err != nil {
		return nil, process.ModuleInfo{}, err
	}
	return proc, mod, nil
}
