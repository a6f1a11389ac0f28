// Command vmdebug exercises the virtual-memory subsystem standalone and
// writes a pprof-format snapshot of the frame table's occupancy, so its
// output can be inspected with `go tool pprof` the same way a heap profile
// would be.
//
// Adapted from misc/depgraph/main.go's shape (a single-purpose CLI that
// shells out to a toolchain helper and streams a report to a file or
// stdout), retargeted from `go mod graph` to this module's own subsystem.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"vmkernel/internal/buildinfo"
	"vmkernel/internal/defs"
	"vmkernel/internal/vmsubsys"
)

type discardTLB struct{}

func (discardTLB) WriteTLB(vpn, packed uint32) {}
func (discardTLB) InvalidateAll()              {}

func main() {
	ramMB := flag.Int("ram-mb", 16, "simulated physical RAM size, in megabytes")
	out := flag.String("out", "", "write the frame-table pprof snapshot here (default: stdout)")
	flag.Parse()

	fmt.Fprintf(os.Stderr, "vmdebug %s\n", buildinfo.Version)

	v, err := vmsubsys.Bootstrap(*ramMB*1024*1024, discardTLB{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "bootstrap:", err)
		os.Exit(1)
	}
	defer v.Close()

	as := v.AsCreate()
	sp := v.AsDefineStack(as)
	fmt.Fprintf(os.Stderr, "created address space %d, stack pointer %#x\n", as.ID(), sp)

	for page := uint32(0); page < defs.StackPages; page++ {
		addr := sp - uint32(defs.StackPages-page)*uint32(defs.PageSize)
		if code := v.VmFault(as, defs.FaultWrite, addr); code != 0 {
			fmt.Fprintf(os.Stderr, "fault at %#x: %s\n", addr, code)
			os.Exit(1)
		}
	}

	prof := v.FrameTable().Snapshot(time.Now())

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintln(os.Stderr, "create output:", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	if err := prof.Write(w); err != nil {
		fmt.Fprintln(os.Stderr, "write profile:", err)
		os.Exit(1)
	}
}
