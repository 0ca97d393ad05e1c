package process_blob

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ippc/coloransi"
	"ippc/process"
	"ippc/process/memory_map"

	"github.com/Moonlight-Companies/gologger/logger"
)

const (
	// allocations are handed out from here upwards, inside the 32-bit range
	defaultAllocBase = 0x00A00000
	pageSize         = 0x1000
)

// ThreadFunc is the body of a simulated export. arg is the thread parameter.
// The context is cancelled when the thread is terminated.
type ThreadFunc func(ctx context.Context, p *ProcessDump, arg process.ProcessMemoryAddress) uint32

// ProcessDump implements process.Process over in-memory regions. It is
// either loaded from a saved dump or assembled by hand with Map, and it can
// run "remote" threads backed by registered Go functions.
type ProcessDump struct {
	PID       process.ProcessID
	Name      string
	MemoryMap []memory_map.MemoryMapItem
	Blobs     map[uint64][]byte // Address -> Data

	mu        sync.Mutex
	log       *logger.Logger
	ledger    *memory_map.Ledger
	nextAlloc uint64
	functions map[process.ProcessMemoryAddress]ThreadFunc
	nextTID   uint32
	closed    bool
}

var _ process.Process = (*ProcessDump)(nil)

// NewProcessDump creates a new ProcessDump instance
func NewProcessDump() *ProcessDump {
	return &ProcessDump{
		Blobs:     make(map[uint64][]byte),
		log:       logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorOrange, "process-dump")),
		ledger:    memory_map.NewLedger(),
		nextAlloc: defaultAllocBase,
		functions: make(map[process.ProcessMemoryAddress]ThreadFunc),
		nextTID:   0x1000,
	}
}

func (p *ProcessDump) Open(pid process.ProcessID) error {
	return fmt.Errorf("Open not supported for ProcessDump, use Load: %w", process.ErrNotSupported)
}

func (p *ProcessDump) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Blobs = nil
	p.MemoryMap = nil
	p.closed = true
	return nil
}

func (p *ProcessDump) GetPID() process.ProcessID {
	return p.PID
}

func (p *ProcessDump) UpdateMemoryMap() error {
	return nil // Memory map is maintained by Map/Unmap
}

func (p *ProcessDump) IsValidAddress(addr process.ProcessMemoryAddress) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return memory_map.IsValidAddress(uint64(addr), p.MemoryMap)
}

func (p *ProcessDump) GetMemoryMap() ([]memory_map.MemoryMapItem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]memory_map.MemoryMapItem, len(p.MemoryMap))
	copy(result, p.MemoryMap)
	return result, nil
}

// Map places data at addr as a new region with the given /proc/maps style perms.
func (p *ProcessDump) Map(addr process.ProcessMemoryAddress, data []byte, perms string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mapLocked(uint64(addr), data, perms)
}

func (p *ProcessDump) mapLocked(addr uint64, data []byte, perms string) {
	p.MemoryMap = append(p.MemoryMap, memory_map.MemoryMapItem{
		Address: addr,
		Size:    uint(len(data)),
		Perms:   perms,
	})
	memory_map.SortByAddress(p.MemoryMap)
	p.Blobs[addr] = data
}

func (p *ProcessDump) unmapLocked(addr uint64) {
	for i := range p.MemoryMap {
		if p.MemoryMap[i].Address == addr {
			p.MemoryMap = append(p.MemoryMap[:i], p.MemoryMap[i+1:]...)
			break
		}
	}
	delete(p.Blobs, addr)
}

// ReadMemory reads size bytes at addr. A read running off the end of its
// region returns a MemoryAccessError carrying the bytes that were available.
func (p *ProcessDump) ReadMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, process.ErrProcessNotOpen
	}

	region := memory_map.FindRegion(uint64(addr), p.MemoryMap)
	if region == nil {
		return nil, process.NewMemoryAccessError("read", addr, size, 0, process.ErrAddressNotMapped)
	}
	if !region.IsReadable() {
		return nil, process.NewMemoryAccessError("read", addr, size, 0, fmt.Errorf("region 0x%x is not readable", region.Address))
	}

	data, ok := p.Blobs[region.Address]
	if !ok {
		return nil, process.NewMemoryAccessError("read", addr, size, 0, fmt.Errorf("no data for region 0x%x", region.Address))
	}

	offset := uint64(addr) - region.Address
	available := uint64(len(data)) - offset
	if uint64(size) > available {
		return nil, process.NewMemoryAccessError("read", addr, size, process.ProcessMemorySize(available), nil)
	}

	result := make([]byte, size)
	copy(result, data[offset:offset+uint64(size)])
	return result, nil
}

// WriteMemory writes data at addr. Only writable regions accept writes; a
// write running off the end of its region writes what fits and reports it.
func (p *ProcessDump) WriteMemory(addr process.ProcessMemoryAddress, data []byte) (process.ProcessMemorySize, error) {
	size := process.ProcessMemorySize(len(data))
	if size == 0 {
		return 0, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, process.ErrProcessNotOpen
	}

	region := memory_map.FindRegion(uint64(addr), p.MemoryMap)
	if region == nil {
		return 0, process.NewMemoryAccessError("write", addr, size, 0, process.ErrAddressNotMapped)
	}
	if !region.IsWritable() {
		return 0, process.NewMemoryAccessError("write", addr, size, 0, fmt.Errorf("region 0x%x is not writable", region.Address))
	}

	blob := p.Blobs[region.Address]
	offset := uint64(addr) - region.Address
	n := copy(blob[offset:], data)
	if n != len(data) {
		return process.ProcessMemorySize(n), process.NewMemoryAccessError("write", addr, size, process.ProcessMemorySize(n), nil)
	}
	return size, nil
}

// AllocateMemory commits a zero-filled, page aligned read/write block.
func (p *ProcessDump) AllocateMemory(size process.ProcessMemorySize) (process.RemoteAllocation, error) {
	if size == 0 {
		return process.RemoteAllocation{}, fmt.Errorf("%w: zero size", process.ErrAllocation)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return process.RemoteAllocation{}, process.ErrProcessNotOpen
	}

	addr := p.nextAlloc
	span := (uint64(size) + pageSize - 1) &^ (pageSize - 1)
	if addr+span > 0xFFFFFFFF {
		return process.RemoteAllocation{}, fmt.Errorf("%w: address space exhausted", process.ErrAllocation)
	}
	p.nextAlloc += span

	p.mapLocked(addr, make([]byte, size), "rw-p")
	p.ledger.Insert(addr, uint(size))

	p.log.Debugln("allocated", size, "bytes at", fmt.Sprintf("0x%x", addr))
	return process.RemoteAllocation{Address: process.ProcessMemoryAddress(addr), Size: size}, nil
}

// FreeMemory releases a live allocation. Anything else is ErrNotAllocated.
func (p *ProcessDump) FreeMemory(addr process.ProcessMemoryAddress) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.ledger.Remove(uint64(addr)); !ok {
		return fmt.Errorf("free %s: %w", addr.ToString(), process.ErrNotAllocated)
	}
	p.unmapLocked(uint64(addr))

	p.log.Debugln("freed", addr.ToString())
	return nil
}

func (p *ProcessDump) AdoptMemory(addr process.ProcessMemoryAddress, size process.ProcessMemorySize) process.RemoteAllocation {
	p.ledger.Insert(uint64(addr), uint(size))
	return process.RemoteAllocation{Address: addr, Size: size}
}

// Allocations returns the live allocations, for leak checks.
func (p *ProcessDump) Allocations() []memory_map.MemoryMapItem {
	return p.ledger.Items()
}

// RegisterFunction makes fn the code that runs when a thread starts at addr.
func (p *ProcessDump) RegisterFunction(addr process.ProcessMemoryAddress, fn ThreadFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.functions[addr] = fn
}

func (p *ProcessDump) Save(dirname string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := os.MkdirAll(dirname, 0755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}

	metadata := struct {
		PID  process.ProcessID `json:"pid"`
		Name string            `json:"name"`
	}{PID: p.PID, Name: p.Name}

	metadataBytes, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, "metadata.json"), metadataBytes, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	mmBytes, err := json.MarshalIndent(p.MemoryMap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal memory map: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dirname, "process_memory_map.json"), mmBytes, 0644); err != nil {
		return fmt.Errorf("failed to write memory map: %w", err)
	}

	for _, region := range p.MemoryMap {
		data, ok := p.Blobs[region.Address]
		if !ok {
			continue
		}
		filename := filepath.Join(dirname, blobFileName(region))
		if err := os.WriteFile(filename, data, 0644); err != nil {
			return fmt.Errorf("failed to write blob %s: %w", filename, err)
		}
	}

	p.log.Infoln("Saved", len(p.MemoryMap), "regions to", dirname)
	return nil
}

func (p *ProcessDump) Load(dirname string) error {
	// Read metadata
	metadataPath := filepath.Join(dirname, "metadata.json")
	metadataBytes, err := os.ReadFile(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata struct {
		PID  process.ProcessID `json:"pid"`
		Name string            `json:"name"`
	}
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	// Read memory map
	mmPath := filepath.Join(dirname, "process_memory_map.json")
	mmBytes, err := os.ReadFile(mmPath)
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}

	var mm []memory_map.MemoryMapItem
	if err := json.Unmarshal(mmBytes, &mm); err != nil {
		return fmt.Errorf("failed to unmarshal memory map: %w", err)
	}
	memory_map.SortByAddress(mm)

	blobs := make(map[uint64][]byte)
	loaded := mm[:0]
	for _, region := range mm {
		filename := filepath.Join(dirname, blobFileName(region))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			continue // region was not saved (e.g. not readable)
		}

		data, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("failed to read blob %s: %w", filename, err)
		}
		blobs[region.Address] = data
		loaded = append(loaded, region)
	}

	p.mu.Lock()
	p.PID = metadata.PID
	p.Name = metadata.Name
	p.MemoryMap = loaded
	p.Blobs = blobs
	p.closed = false
	p.log = logger.NewLogger(coloransi.Color(coloransi.ColorTeal, coloransi.ColorOrange, fmt.Sprintf("dump-%d", metadata.PID)))
	p.mu.Unlock()

	p.log.Infoln("Loaded", len(loaded), "regions from", dirname)
	return nil
}

func blobFileName(region memory_map.MemoryMapItem) string {
	return fmt.Sprintf("blob_0x%x_%d.bin", region.Address, region.Size)
}
