// errors.go defines sentinel errors for validation failures.
//
// Separated to centralise error definitions. Each sentinel wraps
// errs.ErrValidation so callers that only care about the taxonomy
// category can test for that, while callers that need the precise
// reason can test for the sentinel itself.

package validate

import (
	"fmt"

	"github.com/jpl-au/dms/internal/errs"
)

var (
	ErrInvalidFilename = fmt.Errorf("%w: invalid filename", errs.ErrValidation)
	ErrInvalidCode     = fmt.Errorf("%w: invalid document code", errs.ErrValidation)
	ErrContentTooLarge = fmt.Errorf("%w: content too large", errs.ErrValidation)
	ErrInvalidTag      = fmt.Errorf("%w: invalid tag", errs.ErrValidation)
)
