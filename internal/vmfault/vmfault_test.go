package vmfault_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"vmkernel/internal/addrspace"
	"vmkernel/internal/defs"
	"vmkernel/internal/frame"
	"vmkernel/internal/hostsim"
	"vmkernel/internal/hpt"
	"vmkernel/internal/vmfault"
)

type fakeTLB struct {
	mu      sync.Mutex
	entries map[uint32]uint32
}

func newFakeTLB() *fakeTLB { return &fakeTLB{entries: map[uint32]uint32{}} }

func (f *fakeTLB) WriteTLB(vpn, packed uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[vpn] = packed
}

func (f *fakeTLB) InvalidateAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = map[uint32]uint32{}
}

func (f *fakeTLB) lookup(vpn uint32) (uint32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[vpn]
	return v, ok
}

func newHandler(t *testing.T) (*vmfault.Handler, *addrspace.AS) {
	t.Helper()
	ram, err := hostsim.New(4*1024*1024, uint32(defs.PageSize))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ram.Close() })

	totalPages := ram.RamGetSize() / uint32(defs.PageSize)
	table := hpt.New(ram, totalPages)
	ft := frame.Init(ram)

	as := addrspace.Create(ft, table, ram)
	as.DefineRegion(0x10000, uint32(defs.PageSize), true, true, false)
	as.DefineRegion(0x20000, uint32(defs.PageSize), true, false, false)

	return &vmfault.Handler{FT: ft, HPT: table, RAM: ram, TLB: newFakeTLB()}, as
}

func TestFaultReadOnlyAlwaysEFAULT(t *testing.T) {
	h, as := newHandler(t)
	require.Equal(t, defs.EFAULT, h.Fault(as, defs.FaultReadOnly, 0x10000))
}

func TestFaultNilAddrSpaceEFAULT(t *testing.T) {
	h, _ := newHandler(t)
	require.Equal(t, defs.EFAULT, h.Fault(nil, defs.FaultRead, 0x10000))
}

func TestFaultUnknownTypeEINVAL(t *testing.T) {
	h, as := newHandler(t)
	require.Equal(t, defs.EINVAL, h.Fault(as, defs.FaultType(99), 0x10000))
}

// TestFaultNilAddrSpaceBeatsUnknownType locks in spec.md §4.4's check
// ordering: the nil-AS check runs before the faulttype is even examined, so
// an invalid faulttype against a nil AS still reports EFAULT, not EINVAL.
func TestFaultNilAddrSpaceBeatsUnknownType(t *testing.T) {
	h, _ := newHandler(t)
	require.Equal(t, defs.EFAULT, h.Fault(nil, defs.FaultType(99), 0x10000))
}

// TestFaultUnknownTypeOutsideRegionIsEFAULT locks in the same ordering for
// the region-lookup check: it runs before the faulttype switch, so an
// invalid faulttype against an address with no region still reports EFAULT.
func TestFaultUnknownTypeOutsideRegionIsEFAULT(t *testing.T) {
	h, as := newHandler(t)
	require.Equal(t, defs.EFAULT, h.Fault(as, defs.FaultType(99), 0x99990000))
}

func TestFaultOutsideAnyRegionEFAULT(t *testing.T) {
	h, as := newHandler(t)
	require.Equal(t, defs.EFAULT, h.Fault(as, defs.FaultRead, 0x99990000))
}

func TestFaultWriteToReadOnlyRegionEFAULT(t *testing.T) {
	h, as := newHandler(t)
	require.Equal(t, defs.EFAULT, h.Fault(as, defs.FaultWrite, 0x20000))
}

func TestFaultFirstTouchAllocatesAndWritesTLB(t *testing.T) {
	h, as := newHandler(t)
	tlb := h.TLB.(*fakeTLB)

	require.Equal(t, defs.Err_t(0), h.Fault(as, defs.FaultRead, 0x10000))

	packed, ok := tlb.lookup(0x10000)
	require.True(t, ok)
	require.NotZero(t, packed&defs.TLBValid)

	_, found := h.HPT.Lookup(as.ID(), 0x10000)
	require.True(t, found)
}

func TestFaultSecondTouchHitsHPTWithoutReallocating(t *testing.T) {
	h, as := newHandler(t)

	require.Equal(t, defs.Err_t(0), h.Fault(as, defs.FaultRead, 0x10000))
	before := h.FT.FreeCount()

	require.Equal(t, defs.Err_t(0), h.Fault(as, defs.FaultWrite, 0x10000))
	after := h.FT.FreeCount()

	require.Equal(t, before, after)
}

func TestConcurrentFaultsOnDisjointPagesSucceed(t *testing.T) {
	h, as := newHandler(t)
	as.DefineRegion(0x30000, 4*uint32(defs.PageSize), true, true, false)

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		addr := 0x30000 + uint32(i)*uint32(defs.PageSize)
		g.Go(func() error {
			if code := h.Fault(as, defs.FaultWrite, addr); code != 0 {
				return fmt.Errorf("fault on %#x returned %v", addr, code)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < 4; i++ {
		addr := 0x30000 + uint32(i)*uint32(defs.PageSize)
		_, found := h.HPT.Lookup(as.ID(), addr)
		require.True(t, found)
	}
}
