package processing

import (
	"errors"
	"fmt"
)

// ErrUploadTooLarge is returned when an upload exceeds the configured limits.
var ErrUploadTooLarge = errors.New("upload exceeds limits")

// Limits bounds a single request's uploads. Zero disables a check.
type Limits struct {
	MaxBytes      int64
	MaxTotalBytes int64
	MaxFiles      int
}

// DefaultLimits allows 10 MiB per file and 40 MiB or 8 files per request.
func DefaultLimits() Limits {
	return Limits{
		MaxBytes:      10 << 20,
		MaxTotalBytes: 40 << 20,
		MaxFiles:      8,
	}
}

// Check validates a set of uploads by size.
func (l Limits) Check(uploads [][]byte) error {
	if len(uploads) == 0 {
		return fmt.Errorf("%w: no files", ErrUploadTooLarge)
	}
	if l.MaxFiles > 0 && len(uploads) > l.MaxFiles {
		return fmt.Errorf("%w: %d files, max %d", ErrUploadTooLarge, len(uploads), l.MaxFiles)
	}
	var total int64
	for i, data := range uploads {
		size := int64(len(data))
		if l.MaxBytes > 0 && size > l.MaxBytes {
			return fmt.Errorf("%w: file %d is %d bytes, max %d", ErrUploadTooLarge, i+1, size, l.MaxBytes)
		}
		total += size
	}
	if l.MaxTotalBytes > 0 && total > l.MaxTotalBytes {
		return fmt.Errorf("%w: %d bytes total, max %d", ErrUploadTooLarge, total, l.MaxTotalBytes)
	}
	return nil
}
