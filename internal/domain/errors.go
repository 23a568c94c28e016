package domain

import "errors"

var (
	ErrItemNotFound          = errors.New("rental item not found")
	ErrNotFoundOrUnavailable = errors.New("rental item not found or already rented")
	ErrInvalidInput          = errors.New("invalid input")
	ErrAdminRequired         = errors.New("only admins can access this feature")
	ErrNotConfigured         = errors.New("feature is not configured")
)
