// content.go implements document content validation.
//
// Only size is validated. The pipeline's filetype stage owns format checks,
// and a rule may legitimately accept any bytes at all.

package validate

import "fmt"

// Content validates document content size. A maxLen of 0 means no limit.
func Content(size int64, maxLen int64) error {
	if maxLen > 0 && size > maxLen {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrContentTooLarge, size, maxLen)
	}
	return nil
}
