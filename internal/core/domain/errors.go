package domain

import "errors"

var (
	ErrInvalidBounds    = errors.New("invalid bounds")
	ErrInvalidPage      = errors.New("invalid page")
	ErrInvalidFilter    = errors.New("invalid filter")
	ErrNotFound         = errors.New("not found")
	ErrControllerClosed = errors.New("viewport controller closed")
)
