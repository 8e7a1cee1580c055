// Package sysinfo reports host memory and CPU, to keep an eye on memory
// blow-up while training.
package sysinfo

import (
	"fmt"
	"time"

	"github.com/klauspost/cpuid/v2"
)

// Info is a Go-ized http://man7.org/linux/man-pages/man2/sysinfo.2.html
type Info struct {
	Uptime       time.Duration // time since boot
	Loads        [3]float64    // 1, 5, and 15 minute load averages, see e.g. UPTIME(1)
	Procs        uint64        // number of current processes
	TotalRam     uint64        // total usable main memory size [kB]
	FreeRam      uint64        // available memory size [kB]
	SharedRam    uint64        // amount of shared memory [kB]
	BufferRam    uint64        // memory used by buffers [kB]
	TotalSwap    uint64        // total swap space size [kB]
	FreeSwap     uint64        // swap space still available [kB]
	TotalHighRam uint64        // total high memory size [kB]
	FreeHighRam  uint64        // available high memory size [kB]
}

// UsedRAM returns used main memory in MiB.
func (i *Info) UsedRAM() float64 {
	return float64(i.TotalRam-i.FreeRam) / 1024
}

// TotalRAM returns total main memory in MiB.
func (i *Info) TotalRAM() float64 {
	return float64(i.TotalRam) / 1024
}

// CPU describes the host processor.
func CPU() string {
	var feats []string
	for _, f := range []cpuid.FeatureID{cpuid.AVX, cpuid.AVX2, cpuid.AVX512F, cpuid.FMA3} {
		if cpuid.CPU.Supports(f) {
			feats = append(feats, f.String())
		}
	}

	return fmt.Sprintf("%s (%d cores, %d threads) %v",
		cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, feats)
}
