//go:build windows

package process_windows

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"ippc/process"

	"golang.org/x/sys/windows"
)

// Finder implements process.ProcessFinder and process.ModuleFinder with
// toolhelp snapshots.
type Finder struct{}

var (
	_ process.ProcessFinder = Finder{}
	_ process.ModuleFinder  = Finder{}
)

// FindProcessByName matches the executable name case-insensitively and
// returns every match.
func (Finder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}

	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("CreateToolhelp32Snapshot: %w", err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	var out []process.ProcessInfo
	for err = windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		exe := windows.UTF16ToString(entry.ExeFile[:])
		if !matchesProcessName(exe, name) {
			continue
		}
		out = append(out, process.ProcessInfo{
			PID:  process.ProcessID(entry.ProcessID),
			PPID: process.ProcessID(entry.ParentProcessID),
			Name: exe,
		})
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return nil, fmt.Errorf("Process32Next: %w", err)
	}

	return out, nil
}

// matchesProcessName accepts the name with or without the .exe suffix.
func matchesProcessName(exe, name string) bool {
	if strings.EqualFold(exe, name) {
		return true
	}
	return strings.EqualFold(strings.TrimSuffix(strings.ToLower(exe), ".exe"), name)
}

// FindModule walks the module list of pid. An empty name returns the main
// executable, which is always first in the list.
func (Finder) FindModule(pid process.ProcessID, name string) (process.ModuleInfo, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, uint32(pid))
	if err != nil {
		return process.ModuleInfo{}, fmt.Errorf("CreateToolhelp32Snapshot(%d): %w", pid, err)
	}
	defer windows.CloseHandle(snap)

	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	for err = windows.Module32First(snap, &entry); err == nil; err = windows.Module32Next(snap, &entry) {
		module := windows.UTF16ToString(entry.Module[:])
		if name != "" && !matchesProcessName(module, name) {
			continue
		}
		return process.ModuleInfo{
			Name: module,
			Path: windows.UTF16ToString(entry.ExePath[:]),
			Base: process.ProcessMemoryAddress(entry.ModBaseAddr),
			Size: process.ProcessMemorySize(entry.ModBaseSize),
		}, nil
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return process.ModuleInfo{}, fmt.Errorf("Module32Next: %w", err)
	}

	return process.ModuleInfo{}, fmt.Errorf("%w: %q in process %d", process.ErrModuleNotFound, name, pid)
}
