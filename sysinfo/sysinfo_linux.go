//go:build linux

package sysinfo

import (
	"syscall"
	"time"
)

// Read gets the linux sysinfo data structure.
//
// Ref.
// http://man7.org/linux/man-pages/man2/sysinfo.2.html
// http://man7.org/linux/man-pages/man1/uptime.1.html
func Read() (*Info, error) {
	si := &syscall.Sysinfo_t{}
	if err := syscall.Sysinfo(si); err != nil {
		return nil, err
	}
	scale := 65536.0 // fixed point load averages

	unit := uint64(si.Unit) * 1024 // kB
	if unit == 0 {
		unit = 1024 // kernels before 2.3.23 leave Unit unset
	}

	return &Info{
		Uptime:       time.Duration(si.Uptime) * time.Second,
		Loads:        [3]float64{float64(si.Loads[0]) / scale, float64(si.Loads[1]) / scale, float64(si.Loads[2]) / scale},
		Procs:        uint64(si.Procs),
		TotalRam:     uint64(si.Totalram) / unit,
		FreeRam:      uint64(si.Freeram) / unit,
		SharedRam:    uint64(si.Sharedram) / unit,
		BufferRam:    uint64(si.Bufferram) / unit,
		TotalSwap:    uint64(si.Totalswap) / unit,
		FreeSwap:     uint64(si.Freeswap) / unit,
		TotalHighRam: uint64(si.Totalhigh) / unit,
		FreeHighRam:  uint64(si.Freehigh) / unit,
	}, nil
}
