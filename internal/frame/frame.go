// Package frame implements the Frame Table (spec.md §4.1): ownership of
// every physical page of RAM after bootstrap, handed out as zero-filled
// frames and reclaimed onto a strictly-ascending sorted free list.
package frame

import (
	"errors"
	"sync"

	"vmkernel/internal/defs"
	"vmkernel/internal/hostsim"
)

// ErrUnsupportedSize is returned by AllocKpages for any n other than 1. Per
// spec.md §4.1/§9, multi-page requests are not satisfied from the free list
// here; reimplementers must pick reject-or-support-properly, and this
// package rejects.
var ErrUnsupportedSize = errors.New("frame: alloc_kpages(n>1) not supported")

// ErrOOM reports a wholly exhausted free list.
var ErrOOM = errors.New("frame: out of memory")

const noFrame int32 = -1

type entry struct {
	paddr  uint32
	inUse  bool
	nextFr int32 // index of next free entry, or noFrame
}

// Table is the frame table: a fixed array indexed by physical frame number,
// a spinlock-equivalent mutex, and a sorted singly-linked free list anchored
// at lowestFree.
type Table struct {
	mu         sync.Mutex
	entries    []entry
	lowestFree int32
	freeStart  int32 // free_ram_frame_start_index
	pageSize   uint32
	ram        *hostsim.RAM
}

// Init builds the frame table over ram. It must run after the HPT has
// already consumed its own bump-allocated backing memory (spec.md §6:
// vm_bootstrap initializes the HPT first), so that every frame below
// ram.RamGetFirstFree() is correctly marked permanently in-use.
func Init(ram *hostsim.RAM) *Table {
	pageSize := uint32(defs.PageSize)
	total := ram.RamGetSize()
	npages := total / pageSize
	firstFree := ram.RamGetFirstFree()
	startIdx := int32(firstFree / pageSize)

	entries := make([]entry, npages)
	for i := range entries {
		entries[i].paddr = uint32(i) * pageSize
		if int32(i) < startIdx {
			entries[i].inUse = true
			entries[i].nextFr = noFrame
			continue
		}
		entries[i].inUse = false
		if i == len(entries)-1 {
			entries[i].nextFr = noFrame
		} else {
			entries[i].nextFr = int32(i) + 1
		}
	}

	lowest := noFrame
	if startIdx < int32(len(entries)) {
		lowest = startIdx
	}

	return &Table{
		entries:    entries,
		lowestFree: lowest,
		freeStart:  startIdx,
		pageSize:   pageSize,
		ram:        ram,
	}
}

// AllocKpages returns a kernel-virtual address for npages zero-filled
// frames, or an error. Only npages==1 is supported; see ErrUnsupportedSize.
func (t *Table) AllocKpages(npages int) (uint32, error) {
	if npages != 1 {
		return 0, ErrUnsupportedSize
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lowestFree == noFrame {
		return 0, ErrOOM
	}

	idx := t.lowestFree
	e := &t.entries[idx]
	e.inUse = true
	t.lowestFree = e.nextFr
	e.nextFr = noFrame

	t.ram.ZeroFrame(e.paddr)

	return hostsim.PaddrToKvaddr(e.paddr), nil
}

// FreeKpages returns a previously allocated frame to the sorted free list.
// Freeing an address outside [KSEG0,KSEG1), below the reserved prefix, or an
// already-free frame is a silent no-op: spec.md §7 classifies these as
// programmer errors, not runtime-recoverable faults, and this kernel's
// default build does not assert on them.
func (t *Table) FreeKpages(kvaddr uint32) {
	if kvaddr < hostsim.Kseg0 || kvaddr >= hostsim.Kseg1 {
		return
	}
	paddr := kvaddr - hostsim.Kseg0
	idx := int32(paddr / t.pageSize)

	t.mu.Lock()
	defer t.mu.Unlock()

	if idx < t.freeStart || idx >= int32(len(t.entries)) {
		return
	}
	if !t.entries[idx].inUse {
		return
	}

	t.entries[idx].inUse = false

	if t.lowestFree == noFrame || idx < t.lowestFree {
		t.entries[idx].nextFr = t.lowestFree
		t.lowestFree = idx
		return
	}

	pred := idx - 1
	for pred >= t.freeStart && t.entries[pred].inUse {
		pred--
	}
	t.entries[pred].nextFr = idx

	succ := idx + 1
	for succ < int32(len(t.entries)) && t.entries[succ].inUse {
		succ++
	}
	if succ == int32(len(t.entries)) {
		t.entries[idx].nextFr = noFrame
	} else {
		t.entries[idx].nextFr = succ
	}
}

// FreeCount returns the number of frames currently on the free list.
// Intended for tests verifying spec.md §8 property 5 (S5: destroy frees
// everything).
func (t *Table) FreeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for i := t.lowestFree; i != noFrame; i = t.entries[i].nextFr {
		n++
	}
	return n
}

// FreeRAMFrameStartIndex exposes the bootstrap boundary for tests.
func (t *Table) FreeRAMFrameStartIndex() int32 {
	return t.freeStart
}
