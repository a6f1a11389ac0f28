// Package vmsubsys wires the Frame Table, Hashed Page Table, and fault
// handler into one constructed value and exposes the process-facing
// operations spec.md §4 describes (AsCreate/AsCopy/AsDestroy/
// AsDefineRegion/AsPrepareLoad/AsCompleteLoad/AsDefineStack/VmFault).
//
// Grounded on original_source/kern/vm/vm.c's vm_bootstrap for the
// HPT-before-frame-table ordering, and on biscuit/src/vm/as.go's pattern of
// a single struct owning the lock-protected subsystem state rather than
// package-level globals (spec.md §9's explicit recommendation).
package vmsubsys

import (
	"vmkernel/internal/addrspace"
	"vmkernel/internal/defs"
	"vmkernel/internal/frame"
	"vmkernel/internal/hostsim"
	"vmkernel/internal/hpt"
	"vmkernel/internal/vmfault"
)

// VmSubsystem owns the bootstrap-ordered singletons every address space and
// fault shares: one RAM, one hashed page table, one frame table.
type VmSubsystem struct {
	ram     *hostsim.RAM
	hpt     *hpt.Table
	ft      *frame.Table
	handler *vmfault.Handler
}

// Bootstrap mirrors vm_bootstrap: the HPT is sized and its backing memory
// bump-allocated first, and only then does the frame table claim the rest
// of RAM — otherwise the HPT's own pages would be handed back out by the
// frame allocator as free.
func Bootstrap(sizeBytes int, tlb vmfault.TLBWriter) (*VmSubsystem, error) {
	ram, err := hostsim.New(sizeBytes, uint32(defs.PageSize))
	if err != nil {
		return nil, err
	}

	totalPages := ram.RamGetSize() / uint32(defs.PageSize)
	table := hpt.New(ram, totalPages)
	ft := frame.Init(ram)

	return &VmSubsystem{
		ram: ram,
		hpt: table,
		ft:  ft,
		handler: &vmfault.Handler{
			FT:  ft,
			HPT: table,
			RAM: ram,
			TLB: tlb,
		},
	}, nil
}

// Close releases the subsystem's simulated RAM.
func (v *VmSubsystem) Close() error { return v.ram.Close() }

// AsCreate allocates a fresh, empty address space.
func (v *VmSubsystem) AsCreate() *addrspace.AS {
	return addrspace.Create(v.ft, v.hpt, v.ram)
}

// AsCopy duplicates curAS's region layout and physically copies every page
// curAS currently has mapped.
func (v *VmSubsystem) AsCopy(curAS *addrspace.AS) (*addrspace.AS, error) {
	return curAS.Copy(curAS, v.ft, v.hpt, v.ram)
}

// AsDestroy frees every frame and HPT entry owned by as.
func (v *VmSubsystem) AsDestroy(as *addrspace.AS) {
	as.Destroy()
}

// AsDefineRegion appends a new region to as.
func (v *VmSubsystem) AsDefineRegion(as *addrspace.AS, vbase, size uint32, read, write, execute bool) *addrspace.Region {
	return as.DefineRegion(vbase, size, read, write, execute)
}

// AsPrepareLoad relaxes as's regions to writeable for ELF loading.
func (v *VmSubsystem) AsPrepareLoad(as *addrspace.AS) { as.PrepareLoad() }

// AsCompleteLoad reverses AsPrepareLoad's relaxation.
func (v *VmSubsystem) AsCompleteLoad(as *addrspace.AS) { as.CompleteLoad() }

// AsDefineStack appends the user stack region and returns its initial
// stack pointer.
func (v *VmSubsystem) AsDefineStack(as *addrspace.AS) uint32 { return as.DefineStack() }

// AsActivate invalidates every TLB entry on the current CPU, as required
// whenever as becomes the running address space. A kernel thread with no
// current address space (as == nil) leaves the TLB untouched, matching
// original_source/kern/vm/addrspace.c's as_activate early return when
// proc_getas() is NULL. Interrupts must already be disabled around this
// call by the scheduler that owns the CPU (out of scope here, per
// spec.md §1).
func (v *VmSubsystem) AsActivate(as *addrspace.AS) {
	if as == nil {
		return
	}
	v.handler.TLB.InvalidateAll()
}

// AsDeactivate invalidates every TLB entry on the current CPU as as stops
// being the running address space. Identical to AsActivate, matching
// spec.md §4.3's "deactivate may be identical to activate", including the
// no-current-AS no-op case.
func (v *VmSubsystem) AsDeactivate(as *addrspace.AS) {
	if as == nil {
		return
	}
	v.handler.TLB.InvalidateAll()
}

// VmFault resolves a TLB miss for as.
func (v *VmSubsystem) VmFault(as *addrspace.AS, faulttype defs.FaultType, faultaddr uint32) defs.Err_t {
	return v.handler.Fault(as, faulttype, faultaddr)
}

// FrameTable exposes the frame table for diagnostics (cmd/vmdebug).
func (v *VmSubsystem) FrameTable() *frame.Table { return v.ft }
