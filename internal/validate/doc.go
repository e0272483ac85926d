// Package validate provides input validation for dms's domain types.
//
// This package enforces security and data integrity rules at the boundary
// between caller input and the pipeline. Each validation function returns
// nil on success or a descriptive error on failure.
//
// # Design Philosophy
//
// Validation is minimal by design. We reject clearly dangerous inputs (null
// bytes, path separators, traversal, excessive sizes) but leave the shape of
// a document code to the rule that classifies it.
//
// # Validation Functions
//
// Filename validates an uploaded filename and splits off its extension.
// Code validates a document code before it is used to derive storage paths.
// Tag validates tag strings.
// Content validates document body size limits.
//
// # Error Handling
//
// All validation errors wrap one of the sentinel errors defined in errors.go
// (ErrInvalidFilename, ErrInvalidCode, etc.), which in turn wrap
// errs.ErrValidation. Use errors.Is() for type-safe error checking:
//
//	if errors.Is(err, validate.ErrInvalidCode) {
//	    // handle invalid code
//	}
package validate
