//go:build linux

package display

import "golang.org/x/sys/unix"

// Machine returns the hardware name reported by uname(2), e.g. "armv7l".
func Machine() string {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return ""
	}
	return unix.ByteSliceToString(u.Machine[:])
}
