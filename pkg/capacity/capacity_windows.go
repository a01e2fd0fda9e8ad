//go:build windows

package capacity

import (
	"golang.org/x/sys/windows"
)

func usage(path string) (*Info, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}

	var free, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &free, &total, &totalFree); err != nil {
		return nil, err
	}

	return &Info{Total: total, Free: free, Used: total - totalFree}, nil
}
