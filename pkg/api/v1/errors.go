package v1

import "errors"

// Common API validation errors.
var (
	ErrTenantRequired   = errors.New("tenant_id is required")
	ErrMessageRequired  = errors.New("message is required")
	ErrFilenameRequired = errors.New("filename is required")
	ErrContentRequired  = errors.New("content is required")
	ErrNameRequired     = errors.New("name is required")
)
