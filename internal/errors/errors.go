package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an upkg error code.
type ErrorCode string

const (
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrInvalidExtension ErrorCode = "INVALID_EXTENSION" // 400
	ErrOpenFailed       ErrorCode = "OPEN_FAILED"       // 404
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrPathCollision    ErrorCode = "PATH_COLLISION"    // 409
	ErrDecompressFailed ErrorCode = "DECOMPRESS_FAILED" // 422
	ErrArchiveCorrupt   ErrorCode = "ARCHIVE_CORRUPT"   // 422
	ErrUnsafePath       ErrorCode = "UNSAFE_PATH"       // 422
	ErrWarningsPresent  ErrorCode = "WARNINGS_PRESENT"  // 422 (strict mode only)
	ErrCancelled        ErrorCode = "CANCELLED"         // 499
	ErrWriteFailed      ErrorCode = "WRITE_FAILED"      // 500
	ErrInternal         ErrorCode = "INTERNAL"          // 500
)

// UpkgError represents a structured error with code, status, and details.
// Cause carries the underlying I/O error, if any.
type UpkgError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *UpkgError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *UpkgError) Unwrap() error {
	return e.Cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *UpkgError {
	return &UpkgError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidExtension creates a 400 error for an input path without the archive extension.
func NewInvalidExtension(path, want string) *UpkgError {
	return &UpkgError{
		Code:    ErrInvalidExtension,
		Status:  400,
		Message: fmt.Sprintf("invalid file type for %s, expected %s", path, want),
		Details: map[string]any{"path": path, "expected": want},
	}
}

// NewOpenFailed creates a 404 error when the archive file cannot be opened.
func NewOpenFailed(path string, cause error) *UpkgError {
	return &UpkgError{
		Code:    ErrOpenFailed,
		Status:  404,
		Message: fmt.Sprintf("cannot open %s", path),
		Details: map[string]any{"path": path},
		Cause:   cause,
	}
}

// NewNotFound creates a 404 error for a missing catalog record.
func NewNotFound(identifier string) *UpkgError {
	return &UpkgError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("run not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewPathCollision creates a 409 error when two assets resolve to the same destination.
func NewPathCollision(path string, ids []string) *UpkgError {
	return &UpkgError{
		Code:    ErrPathCollision,
		Status:  409,
		Message: fmt.Sprintf("destination %s claimed by %d assets", path, len(ids)),
		Details: map[string]any{"path": path, "asset_ids": ids},
	}
}

// NewDecompressFailed creates a 422 error when the gzip layer cannot be opened.
func NewDecompressFailed(cause error) *UpkgError {
	return &UpkgError{
		Code:    ErrDecompressFailed,
		Status:  422,
		Message: "cannot decompress archive",
		Cause:   cause,
	}
}

// NewArchiveCorrupt creates a 422 error when the tar structure cannot be read.
func NewArchiveCorrupt(cause error) *UpkgError {
	return &UpkgError{
		Code:    ErrArchiveCorrupt,
		Status:  422,
		Message: "cannot read tar structure",
		Cause:   cause,
	}
}

// NewUnsafePath creates a 422 error for a logical path that escapes the output root.
func NewUnsafePath(path string) *UpkgError {
	return &UpkgError{
		Code:    ErrUnsafePath,
		Status:  422,
		Message: fmt.Sprintf("unsafe logical path %q", path),
		Details: map[string]any{"path": path},
	}
}

// NewWarningsPresent creates a 422 error for strict mode when entries were skipped.
func NewWarningsPresent(count int) *UpkgError {
	return &UpkgError{
		Code:    ErrWarningsPresent,
		Status:  422,
		Message: fmt.Sprintf("%d entries skipped with warnings", count),
		Details: map[string]any{"warnings": count},
	}
}

// NewCancelled creates a 499 error when an operation is cancelled.
func NewCancelled(operation string) *UpkgError {
	return &UpkgError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
	}
}

// NewWriteFailed creates a 500 error summarizing failed artifact writes.
func NewWriteFailed(count int) *UpkgError {
	return &UpkgError{
		Code:    ErrWriteFailed,
		Status:  500,
		Message: fmt.Sprintf("%d artifact writes failed", count),
		Details: map[string]any{"failures": count},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details and Cause.
func NewInternal(err error) *UpkgError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &UpkgError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		Cause:   err,
	}
}

// Is checks if err (or anything it wraps) is an UpkgError with the given code.
func Is(err error, code ErrorCode) bool {
	var uErr *UpkgError
	if stderrors.As(err, &uErr) {
		return uErr.Code == code
	}
	return false
}

// As is a convenience wrapper around errors.As for *UpkgError.
func As(err error) (*UpkgError, bool) {
	var uErr *UpkgError
	ok := stderrors.As(err, &uErr)
	return uErr, ok
}
