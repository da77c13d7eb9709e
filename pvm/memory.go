// Package pvm implements the sandboxed register virtual machine that
// executes service code during accumulation and on-transfer invocations:
// paged virtual memory, a basic-block-aware instruction
// decoder, gas metering, and the fixed exit-reason taxonomy services and
// host calls observe.
package pvm

import "github.com/jamchain/jamd/types"

// page is one PAGE_SIZE-byte region of the flat address space, carrying its
// own access bits and dirty/reference flags.
type page struct {
	readable   bool
	writable   bool
	referenced bool
	modified   bool
	data       [types.PageSize]byte
}

// Memory is the 4 GiB flat virtual address space, organized as NUM_PAGES
// lazily allocated pages. Unmapped addresses read/write as PageFault.
type Memory struct {
	pages map[uint32]*page
}

// NewMemory returns an empty address space with no mapped pages.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint32]*page)}
}

func pageOf(addr uint32) uint32 { return addr / types.PageSize }

// Map installs (or reconfigures) the page containing addr with the given
// access rights, zero-filling it if newly created.
func (m *Memory) Map(addr uint32, readable, writable bool) {
	idx := pageOf(addr)
	p, ok := m.pages[idx]
	if !ok {
		p = &page{}
		m.pages[idx] = p
	}
	p.readable = readable
	p.writable = writable
}

// MapRange maps every page spanning [addr, addr+length).
func (m *Memory) MapRange(addr, length uint32, readable, writable bool) {
	if length == 0 {
		return
	}
	start := pageOf(addr)
	end := pageOf(addr + length - 1)
	for i := start; i <= end; i++ {
		m.Map(i*types.PageSize, readable, writable)
	}
}

// readByte returns the byte at addr, failing when its page is unmapped or
// not readable, and marks the page referenced.
func (m *Memory) readByte(addr uint32) (byte, bool) {
	p, ok := m.pages[pageOf(addr)]
	if !ok || !p.readable {
		return 0, false
	}
	p.referenced = true
	return p.data[addr%types.PageSize], true
}

func (m *Memory) writeByte(addr uint32, v byte) bool {
	p, ok := m.pages[pageOf(addr)]
	if !ok || !p.writable {
		return false
	}
	p.referenced = true
	p.modified = true
	p.data[addr%types.PageSize] = v
	return true
}

// ReadBytes reads n bytes starting at addr. The second return is the
// address of the first byte that faulted, valid only when ok is false.
func (m *Memory) ReadBytes(addr uint32, n int) ([]byte, uint32, bool) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, ok := m.readByte(addr + uint32(i))
		if !ok {
			return nil, addr + uint32(i), false
		}
		out[i] = b
	}
	return out, 0, true
}

// WriteBytes writes data starting at addr, returning the faulting address
// on the first unwritable byte.
func (m *Memory) WriteBytes(addr uint32, data []byte) (uint32, bool) {
	for i, b := range data {
		if !m.writeByte(addr+uint32(i), b) {
			return addr + uint32(i), false
		}
	}
	return 0, true
}
