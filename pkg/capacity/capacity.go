// Package capacity reports free and used space of the volume holding a path.
package capacity

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// WarnFraction is the used fraction above which a volume is reported as nearly full
const WarnFraction = 0.90

var (
	// ErrInsufficientSpace is returned when a transfer would not fit
	ErrInsufficientSpace = errors.New("insufficient space")
	// ErrUnsupported is returned on platforms without a capacity query
	ErrUnsupported = errors.New("capacity query not supported on this platform")
)

// Info is a snapshot of a volume's space in bytes
type Info struct {
	Path  string `json:"path"`
	Total uint64 `json:"total"`
	Free  uint64 `json:"free"` // available to the current user
	Used  uint64 `json:"used"`
}

// Usage queries the volume holding path
func Usage(path string) (*Info, error) {
	info, err := usage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to query capacity of %s: %w", path, err)
	}
	info.Path = path
	return info, nil
}

// UsedFraction returns used/total in [0,1]
func (i *Info) UsedFraction() float64 {
	if i.Total == 0 {
		return 0
	}
	return float64(i.Used) / float64(i.Total)
}

// NearlyFull reports whether the used fraction exceeds WarnFraction
func (i *Info) NearlyFull() bool {
	return i.UsedFraction() > WarnFraction
}

// String renders "1.2 TB free of 2.0 TB (40% used)"
func (i *Info) String() string {
	return fmt.Sprintf("%s free of %s (%.0f%% used)",
		humanize.Bytes(i.Free), humanize.Bytes(i.Total), i.UsedFraction()*100)
}

// Fits checks that need bytes can be written while keeping reserve bytes free
func (i *Info) Fits(need, reserve int64) error {
	if need < 0 {
		need = 0
	}
	if reserve < 0 {
		reserve = 0
	}
	required := uint64(need) + uint64(reserve)
	if required > i.Free {
		return fmt.Errorf("%w: need %s (including %s reserve), %s available",
			ErrInsufficientSpace,
			humanize.Bytes(required), humanize.Bytes(uint64(reserve)), humanize.Bytes(i.Free))
	}
	return nil
}
