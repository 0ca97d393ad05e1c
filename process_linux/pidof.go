//go:build linux

package process_linux

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"ippc/process"
	"ippc/process/memory_map"
)

// Finder implements process.ProcessFinder and process.ModuleFinder from /proc.
type Finder struct{}

var (
	_ process.ProcessFinder = Finder{}
	_ process.ModuleFinder  = Finder{}
)

// FindProcessByName returns all processes whose comm, exe basename or argv[0]
// basename equals name, lowest PID first. A missing ".exe" suffix is
// tolerated so Wine-hosted programs can be found by their Windows name.
func (Finder) FindProcessByName(name string) ([]process.ProcessInfo, error) {
	if name == "" {
		return nil, errors.New("empty name")
	}

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("read /proc: %w", err)
	}

	selfPID := os.Getpid()
	var out []process.ProcessInfo

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 || pid == selfPID {
			continue
		}

		dir := filepath.Join("/proc", e.Name())
		exe, _ := os.Readlink(filepath.Join(dir, "exe"))
		info := process.ProcessInfo{PID: process.ProcessID(pid), PPID: readPPID(dir), Exe: exe}

		comm, _ := os.ReadFile(filepath.Join(dir, "comm"))
		candidates := []string{string(bytesTrimNL(comm))}
		if exe != "" {
			candidates = append(candidates, filepath.Base(exe))
		}
		if argv0 := readArgv0(dir); argv0 != "" {
			candidates = append(candidates, argv0)
		}

		for _, c := range candidates {
			if matchesName(c, name) {
				info.Name = c
				out = append(out, info)
				break
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out, nil
}

func matchesName(candidate, name string) bool {
	return candidate == name || strings.TrimSuffix(candidate, ".exe") == name
}

// readArgv0 returns the basename of argv[0], accepting both separators.
func readArgv0(dir string) string {
	cmdline, err := os.ReadFile(filepath.Join(dir, "cmdline"))
	if err != nil || len(cmdline) == 0 {
		return ""
	}
	argv0, _, _ := bytes.Cut(cmdline, []byte{0})
	s := string(argv0)
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		s = s[i+1:]
	}
	return s
}

// readPPID parses the fourth field of /proc/<pid>/stat.
func readPPID(dir string) process.ProcessID {
	stat, err := os.ReadFile(filepath.Join(dir, "stat"))
	if err != nil {
		return 0
	}
	// comm may contain spaces, so skip past its closing paren
	if i := bytes.LastIndexByte(stat, ')'); i >= 0 {
		stat = stat[i+1:]
	}
	fields := strings.Fields(string(stat))
	if len(fields) < 2 {
		return 0
	}
	ppid, _ := strconv.Atoi(fields[1])
	return process.ProcessID(ppid)
}

// FindModule finds the lowest mapping whose file basename equals name,
// case-insensitively. Base is that mapping's start and Size spans every
// mapping of the same file.
func (Finder) FindModule(pid process.ProcessID, name string) (process.ModuleInfo, error) {
	mm, err := memory_map.NewLinuxMemoryMap().ReadMemoryMap(int(pid))
	if err != nil {
		return process.ModuleInfo{}, err
	}
	return findModuleInMap(mm, name, pid)
}

func findModuleInMap(mm []memory_map.MemoryMapItem, name string, pid process.ProcessID) (process.ModuleInfo, error) {
	var info process.ModuleInfo
	var end uint64
	for _, item := range mm {
		if item.Path == "" {
			continue
		}
		base := item.Path
		if i := strings.LastIndexAny(base, `/\`); i >= 0 {
			base = base[i+1:]
		}
		if !strings.EqualFold(base, name) {
			continue
		}
		if info.Path == "" {
			info = process.ModuleInfo{Name: base, Path: item.Path, Base: process.ProcessMemoryAddress(item.Address)}
		} else if item.Path != info.Path {
			continue
		}
		end = max(end, item.End())
	}

	if info.Path == "" {
		return process.ModuleInfo{}, fmt.Errorf("%w: %q in process %d", process.ErrModuleNotFound, name, pid)
	}
	info.Size = process.ProcessMemorySize(end - uint64(info.Base))
	return info, nil
}

func bytesTrimNL(b []byte) []byte {
	return bytes.TrimRight(b, "\n\r \t")
}
