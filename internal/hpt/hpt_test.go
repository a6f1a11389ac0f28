package hpt_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vmkernel/internal/defs"
	"vmkernel/internal/hostsim"
	"vmkernel/internal/hpt"
)

func newTable(t *testing.T, totalPages uint32) *hpt.Table {
	t.Helper()
	ram, err := hostsim.New(16*1024*1024, uint32(defs.PageSize))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ram.Close() })
	return hpt.New(ram, totalPages)
}

func TestInsertLookupRoundTrip(t *testing.T) {
	table := newTable(t, 64)

	_, ok := table.Insert(1, 7, 0x3000, false, true, true)
	require.True(t, ok)

	e, found := table.Lookup(1, 7)
	require.True(t, found)
	require.Equal(t, uint32(0x3000), e.Frame())
	require.True(t, e.Valid())
}

func TestLookupMissOnWrongPidOrVPN(t *testing.T) {
	table := newTable(t, 64)
	_, _ = table.Insert(1, 7, 0x1000, false, false, true)

	_, found := table.Lookup(2, 7)
	require.False(t, found)

	_, found = table.Lookup(1, 8)
	require.False(t, found)
}

func TestInsertChainsOnCollision(t *testing.T) {
	table := newTable(t, 1) // 2 slots; pids 1 and 3 both hash to bucket 1

	_, ok1 := table.Insert(1, 0, 0x1000, false, false, true)
	_, ok2 := table.Insert(3, 0, 0x2000, false, false, true)
	require.True(t, ok1)
	require.True(t, ok2)

	e1, found1 := table.Lookup(1, 0)
	e2, found2 := table.Lookup(3, 0)
	require.True(t, found1)
	require.True(t, found2)
	require.Equal(t, uint32(0x1000), e1.Frame())
	require.Equal(t, uint32(0x2000), e2.Frame())
}

func TestDeleteAnchorNoChain(t *testing.T) {
	table := newTable(t, 64)
	_, _ = table.Insert(1, 7, 0x1000, false, false, true)

	table.Delete(1, 7)

	_, found := table.Lookup(1, 7)
	require.False(t, found)
}

func TestDeleteAnchorWithChainPromotesNext(t *testing.T) {
	table := newTable(t, 1) // 2 slots; pids 1 and 3 both hash to bucket 1
	_, _ = table.Insert(1, 0, 0x1000, false, false, true)
	_, _ = table.Insert(3, 0, 0x2000, false, false, true)

	table.Delete(1, 0)

	_, found1 := table.Lookup(1, 0)
	require.False(t, found1)

	e2, found2 := table.Lookup(3, 0)
	require.True(t, found2)
	require.Equal(t, uint32(0x2000), e2.Frame())
}

func TestDeleteMidChain(t *testing.T) {
	table := newTable(t, 2) // 4 slots; pids 1, 5 and 9 all hash to bucket 1
	_, _ = table.Insert(1, 0, 0x1000, false, false, true)
	_, _ = table.Insert(5, 0, 0x2000, false, false, true)
	_, _ = table.Insert(9, 0, 0x3000, false, false, true)

	table.Delete(5, 0)

	_, found := table.Lookup(5, 0)
	require.False(t, found)

	e1, found1 := table.Lookup(1, 0)
	e3, found3 := table.Lookup(9, 0)
	require.True(t, found1)
	require.True(t, found3)
	require.Equal(t, uint32(0x1000), e1.Frame())
	require.Equal(t, uint32(0x3000), e3.Frame())
}

func TestDeleteMissingIsNoop(t *testing.T) {
	table := newTable(t, 64)
	require.NotPanics(t, func() { table.Delete(9, 9) })
}

func TestInsertExhaustion(t *testing.T) {
	table := newTable(t, 1) // 2 slots total (SizeFactor=2)

	_, ok1 := table.Insert(1, 0, 0x1000, false, false, true)
	_, ok2 := table.Insert(2, 0, 0x2000, false, false, true)
	_, ok3 := table.Insert(3, 0, 0x3000, false, false, true)

	require.True(t, ok1)
	require.True(t, ok2)
	require.False(t, ok3)
}
