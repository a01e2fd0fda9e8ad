//go:build linux || darwin || freebsd

package capacity

import (
	"golang.org/x/sys/unix"
)

func usage(path string) (*Info, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return nil, err
	}

	bsize := uint64(st.Bsize)
	total := uint64(st.Blocks) * bsize
	free := uint64(st.Bavail) * bsize
	used := total - uint64(st.Bfree)*bsize

	return &Info{Total: total, Free: free, Used: used}, nil
}
