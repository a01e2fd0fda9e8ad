//go:build !linux && !darwin && !freebsd && !windows

package capacity

func usage(path string) (*Info, error) {
	return nil, ErrUnsupported
}
