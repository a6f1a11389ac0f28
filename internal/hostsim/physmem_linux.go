//go:build linux

package hostsim

import "golang.org/x/sys/unix"

// mmapPhysmem backs simulated physical RAM with a real anonymous mapping
// rather than a Go slice, so "physical memory" behaves like actual mapped
// pages (zero-filled by the kernel on first touch, reclaimable via munmap)
// instead of GC-tracked heap memory.
type mmapPhysmem struct {
	data []byte
}

func newPhysmem(size int) (physmem, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &mmapPhysmem{data: data}, nil
}

func (m *mmapPhysmem) Len() int { return len(m.data) }

func (m *mmapPhysmem) Slice(off, n uint32) []byte {
	return m.data[off : off+n]
}

func (m *mmapPhysmem) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}
