//go:build !linux

package display

// Machine is empty off Linux; no display there is treated as a Pi panel.
func Machine() string {
	return ""
}
