// Package defs holds the hardware constants and error codes shared by every
// virtual-memory package. It plays the role biscuit's defs package plays for
// the rest of that kernel: a dependency-free leaf everything else imports.
package defs

import "fmt"

// PageShift is the base-2 exponent of the page size.
const PageShift uint = 12

// PageSize is the size of a single page/frame in bytes.
const PageSize int = 1 << PageShift

// PageFrame masks a virtual or physical address down to its page number,
// matching the MIPS PAGE_FRAME constant bit-for-bit.
const PageFrame uint32 = 0xFFFFF000

// UserStack is the fixed top-of-user-address-space constant.
const UserStack uint32 = 0x80000000

// StackPages is the default size of a process stack region, in pages.
const StackPages = 16

// TLB-low bit layout, placed in their MIPS positions so a packed PFN word is
// directly writable as entry-low.
const (
	TLBValid   uint32 = 1 << 9
	TLBDirty   uint32 = 1 << 10
	TLBNoCache uint32 = 1 << 11
)

// TLBFrameMask extracts the physical frame number from a packed entry-low
// word — the same mask as PageFrame, since the frame number occupies every
// bit above the page offset and the three flag bits above live inside that
// offset.
const TLBFrameMask = PageFrame

// Err_t is the integer error code surfaced to every caller across the
// vm_fault / as_* boundary. Zero means success.
type Err_t int

//go:generate stringer -type=Err_t -output=err_string.go

const (
	// EFAULT reports a permission violation or an access outside any region.
	EFAULT Err_t = iota + 1
	// ENOMEM reports frame-table exhaustion, a full HPT, or an allocation
	// failure while copying an address space.
	ENOMEM
	// EINVAL reports an unrecognized fault type. No operation here returns it
	// for a nil address space; the fault handler reports EFAULT for one.
	EINVAL
	// ENAMETOOLONG is reserved for the user-string helpers out of scope here
	// (kept so Err_t's numbering matches the host kernel's errno space).
	ENAMETOOLONG
)

// FaultType enumerates the fault classes vm_fault dispatches on.
type FaultType int

//go:generate stringer -type=FaultType -output=faulttype_string.go

const (
	FaultReadOnly FaultType = iota
	FaultRead
	FaultWrite
)

// Kprintf is the kernel's only logging primitive: a direct call to the
// console, exactly as biscuit's mem/dmap packages log (fmt.Printf, no
// structured logger) because these packages run before any heap-backed
// logging facility could exist.
func Kprintf(format string, args ...interface{}) {
	fmt.Printf(format, args...)
}
