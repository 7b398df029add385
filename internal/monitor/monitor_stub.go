//go:build !windows

package monitor

// ListMonitors returns ErrNotSupported on non-Windows platforms.
func ListMonitors() ([]Monitor, error) {
	return nil, ErrNotSupported
}
