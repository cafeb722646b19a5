package usecase

import (
	"errors"

	"github.com/sabaek/bullion/internal/core/repository"
)

// Validation errors raised before anything touches storage.
var (
	ErrInvalidAmount        = errors.New("amount must be positive")
	ErrInvalidOperationType = errors.New("invalid operation type")
	ErrInvalidCurrency      = errors.New("unsupported currency")
	ErrInvalidMetal         = errors.New("unsupported metal")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrCodeGeneration       = errors.New("could not generate a unique code")
)

// Storage sentinels re-exported so handlers can match on the usecase layer
// with errors.Is.
var (
	ErrInsufficientFunds   = repository.ErrInsufficientFunds
	ErrInsufficientMetal   = repository.ErrInsufficientMetal
	ErrProductNotFound     = repository.ErrProductNotFound
	ErrStoreNotFound       = repository.ErrStoreNotFound
	ErrAssetNotFound       = repository.ErrAssetNotFound
	ErrAppointmentNotFound = repository.ErrAppointmentNotFound
	ErrTransferNotFound    = repository.ErrTransferNotFound
	ErrActiveAppointment   = repository.ErrActiveAppointment
	ErrInvalidTransition   = repository.ErrInvalidTransition
	ErrDuplicateRequest    = repository.ErrDuplicateRequest
)
