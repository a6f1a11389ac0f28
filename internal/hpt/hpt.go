// Package hpt implements the hashed (inverted) page table of spec.md §4.2:
// a single global array of entries keyed by (address-space identity,
// virtual page number), resolving collisions by external chaining into the
// very same backing array.
//
// Grounded on original_source/kern/vm/vm.c's hpt_hash/hpt_lookup/
// hpt_insert/hpt_delete, generalized from a raw `struct addrspace *` key to
// the opaque Pid token spec.md §9 recommends.
package hpt

import (
	"errors"
	"sync"

	"vmkernel/internal/defs"
	"vmkernel/internal/hostsim"
)

// ErrFull reports that Insert could not find an anchor or a probe slot
// anywhere in the table — every slot is occupied.
var ErrFull = errors.New("hpt: table full")

// Pid is the opaque, stable identity of an address space — a lookup key,
// never an owning reference. Zero is reserved as the "no address space"
// sentinel; callers must issue real IDs starting at 1 (see
// vmkernel/internal/addrspace.ID).
type Pid uint64

const noNext int32 = -1

// Entry is one (Pid, VPN) -> packed-PFN binding.
type Entry struct {
	Pid  Pid
	VPN  uint32
	PFN  uint32 // physical frame number packed with TLB-low flag bits
	next int32
}

func (e *Entry) empty() bool {
	return e.Pid == 0 && e.VPN == 0 && e.PFN == 0
}

// Valid reports whether the packed PFN word's hardware VALID bit is set.
func (e Entry) Valid() bool {
	return e.PFN&defs.TLBValid != 0
}

// Frame extracts the physical frame number from the packed PFN word.
func (e Entry) Frame() uint32 {
	return e.PFN & defs.TLBFrameMask
}

// Table is the global hashed page table, serialized by a single sleeping
// lock (spec.md §4.2: "coarse by design").
type Table struct {
	mu      sync.Mutex
	entries []Entry
	size    uint32
}

// SizeFactor is HPT_SIZE_TIMES_LARGE in original_source/kern/vm/vm.c: the
// table has SizeFactor * total_ram_frames slots.
const SizeFactor = 2

// entrySize approximates the on-disk/on-wire size of one hpt_entry, used
// only to compute how many physical frames New should bump-allocate from
// ram to simulate the real kernel's "allocate the HPT via the bump
// allocator, thereby self-pinning it below free_ram_frame_start_index"
// step (original_source/kern/vm/vm.c:hpt_init). The Go slice backing the
// table itself lives on the normal Go heap; this call exists purely to
// advance ram's bump pointer so frame.Init sees the correct reserved
// prefix.
const entrySize = 24

// New builds the hashed page table sized at SizeFactor * totalPages slots,
// and reserves the equivalent physical frames from ram's bump allocator so
// the table is correctly "pinned" below whatever frame.Init later computes
// as free_ram_frame_start_index. Must run before frame.Init, per spec.md §6.
func New(ram *hostsim.RAM, totalPages uint32) *Table {
	size := SizeFactor * totalPages
	bytes := uint64(size) * entrySize
	npages := uint32((bytes + uint64(defs.PageSize) - 1) / uint64(defs.PageSize))
	if npages > 0 {
		if _, ok := ram.RamStealMem(npages); !ok {
			panic("hpt: out of memory during bootstrap")
		}
	}

	entries := make([]Entry, size)
	for i := range entries {
		entries[i].next = noNext
	}

	return &Table{entries: entries, size: size}
}

func hash(pid Pid, vpn uint32, size uint32) uint32 {
	return uint32((uint64(pid) ^ uint64(vpn)) % uint64(size))
}

// Lookup walks the chain anchored at bucket h(pid,vpn) and returns the
// first entry matching (pid, vpn) whose VALID bit is set.
func (t *Table) Lookup(pid Pid, vpn uint32) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := int32(hash(pid, vpn, t.size))
	for idx != noNext {
		e := &t.entries[idx]
		if e.Pid == pid && e.VPN == vpn && e.Valid() {
			return *e, true
		}
		idx = e.next
	}
	return Entry{}, false
}

// Insert packs the hardware bits into pfn and writes a new entry for
// (pid, vpn). Callers must Lookup first; inserting a duplicate (pid, vpn)
// is a precondition violation (spec.md §4.2).
func (t *Table) Insert(pid Pid, vpn, pfn uint32, cache, dirty, valid bool) (Entry, bool) {
	packed := pfn
	if cache {
		packed |= defs.TLBNoCache
	}
	if dirty {
		packed |= defs.TLBDirty
	}
	if valid {
		packed |= defs.TLBValid
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	anchor := int32(hash(pid, vpn, t.size))
	tail := anchor
	for t.entries[tail].next != noNext {
		tail = t.entries[tail].next
	}

	if t.entries[anchor].empty() {
		t.entries[anchor] = Entry{Pid: pid, VPN: vpn, PFN: packed, next: noNext}
		return t.entries[anchor], true
	}

	for i := range t.entries {
		if t.entries[i].empty() {
			t.entries[i] = Entry{Pid: pid, VPN: vpn, PFN: packed, next: noNext}
			t.entries[tail].next = int32(i)
			return t.entries[i], true
		}
	}
	return Entry{}, false
}

// Delete removes the entry for (pid, vpn), if any. Not found is silently a
// success, per spec.md §4.2.
func (t *Table) Delete(pid Pid, vpn uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	anchor := int32(hash(pid, vpn, t.size))
	a := &t.entries[anchor]

	if a.Pid == pid && a.VPN == vpn {
		if a.next == noNext {
			*a = Entry{next: noNext}
			return
		}
		// Splice: fold the next link's fields into the anchor, preserving
		// the anchor-in-bucket invariant, then clear the vacated slot.
		nextIdx := a.next
		n := &t.entries[nextIdx]
		a.Pid, a.VPN, a.PFN, a.next = n.Pid, n.VPN, n.PFN, n.next
		*n = Entry{next: noNext}
		return
	}

	prev := anchor
	cur := a.next
	for cur != noNext {
		c := &t.entries[cur]
		if c.Pid == pid && c.VPN == vpn {
			t.entries[prev].next = c.next
			*c = Entry{next: noNext}
			return
		}
		prev = cur
		cur = c.next
	}
	// not found: silent success
}

// Size returns the total number of slots in the table.
func (t *Table) Size() uint32 {
	return t.size
}
