//go:build !linux

package sysinfo

import "errors"

// Read is only supported on linux.
func Read() (*Info, error) {
	return nil, errors.New("sysinfo: not supported on this platform")
}
