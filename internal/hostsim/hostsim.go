// Package hostsim stands in for the host kernel services spec.md §6 declares
// out of scope and consumed as opaque collaborators: ram_stealmem,
// ram_getsize, ram_getfirstfree, and the KVADDR_TO_PADDR/PADDR_TO_KVADDR
// direct-map translation. The rest of this module only ever talks to these
// through the narrow interface below, the same way biscuit's mem package
// only ever talks to the bootloader-provided Get_phys/Vtop primitives.
package hostsim

import "fmt"

// MIPS-style segment bases (see original_source/kern/vm/vm.c's use of
// MIPS_KSEG0/MIPS_KSEG1 and PADDR_TO_KVADDR/KVADDR_TO_PADDR).
const (
	Kseg0 uint32 = 0x80000000
	Kseg1 uint32 = 0xA0000000
)

// RAM is the simulated physical memory backing store plus the bump
// allocator that owns it before the frame table exists. It is the
// in-process substitute for the real ram_stealmem/ram_getsize/
// ram_getfirstfree trio.
type RAM struct {
	mem      physmem
	pageSize uint32
	nextFree uint32 // next byte not yet handed out by the bump allocator
}

// New creates a simulated RAM of the given size in bytes, rounded down to a
// whole number of pages. pageSize is normally defs.PageSize.
func New(sizeBytes int, pageSize uint32) (*RAM, error) {
	npages := uint32(sizeBytes) / pageSize
	backing, err := newPhysmem(int(npages) * int(pageSize))
	if err != nil {
		return nil, fmt.Errorf("hostsim: allocate backing store: %w", err)
	}
	return &RAM{mem: backing, pageSize: pageSize}, nil
}

// RamGetSize reports the top of physical RAM, mirroring ram_getsize().
func (r *RAM) RamGetSize() uint32 {
	return uint32(r.mem.Len())
}

// RamGetFirstFree reports the first physical byte not yet consumed by the
// bump allocator, mirroring ram_getfirstfree(). Spec.md §4.1 calls this
// exactly once, during frame-table init.
func (r *RAM) RamGetFirstFree() uint32 {
	return r.nextFree
}

// RamStealMem bump-allocates npages contiguous pages, valid only before the
// frame table exists. Returns (0, false) if RAM is exhausted.
func (r *RAM) RamStealMem(npages uint32) (uint32, bool) {
	need := npages * r.pageSize
	if r.nextFree+need > uint32(r.mem.Len()) {
		return 0, false
	}
	paddr := r.nextFree
	r.nextFree += need
	return paddr, true
}

// PaddrToKvaddr performs the direct-map translation into the kernel
// segment. Physical addresses must fit below the 512MB KSEG0 window, as on
// real MIPS hardware.
func PaddrToKvaddr(paddr uint32) uint32 {
	if paddr >= Kseg1-Kseg0 {
		panic("hostsim: physical address too large for direct map")
	}
	return paddr + Kseg0
}

// KvaddrToPaddr reverses PaddrToKvaddr. It panics if kvaddr is outside
// [KSEG0, KSEG1), mirroring the KASSERT in the original free_kpages.
func KvaddrToPaddr(kvaddr uint32) uint32 {
	if kvaddr < Kseg0 || kvaddr >= Kseg1 {
		panic("hostsim: address outside KSEG0/KSEG1")
	}
	return kvaddr - Kseg0
}

// ZeroFrame zeroes a whole page of physical memory starting at paddr.
func (r *RAM) ZeroFrame(paddr uint32) {
	buf := r.mem.Slice(paddr, r.pageSize)
	for i := range buf {
		buf[i] = 0
	}
}

// CopyFrame copies a whole page of physical memory from src to dst.
func (r *RAM) CopyFrame(dst, src uint32) {
	copy(r.mem.Slice(dst, r.pageSize), r.mem.Slice(src, r.pageSize))
}

// FrameBytes returns a mutable view of the page at paddr, letting tests and
// the fault handler inspect/poke page contents directly.
func (r *RAM) FrameBytes(paddr uint32) []byte {
	return r.mem.Slice(paddr, r.pageSize)
}

// Close releases the backing store, if the platform-specific implementation
// holds an OS resource (e.g. an mmap mapping).
func (r *RAM) Close() error {
	return r.mem.Close()
}

// physmem is the platform-specific physical-memory backing store. On Linux
// it is an anonymous mmap (internal/hostsim/physmem_linux.go); elsewhere it
// falls back to a plain Go slice (physmem_other.go).
type physmem interface {
	Len() int
	Slice(off, n uint32) []byte
	Close() error
}
