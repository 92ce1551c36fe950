package services

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = fmt.Errorf("%w: not allowed for this user", ErrUnauthorized)
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrOutOfStock        = errors.New("out of stock")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrBadRequest        = errors.New("bad request")
	ErrUpstream          = errors.New("upstream service unavailable")
	ErrSignature         = errors.New("invalid webhook signature")
)
