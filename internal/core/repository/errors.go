package repository

import "errors"

// Storage-level sentinel errors. The usecase layer re-exports the ones it
// surfaces so handlers can match with errors.Is across layers.
var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInsufficientMetal   = errors.New("insufficient digital metal balance")
	ErrCurrencyNotFound    = errors.New("currency not found")
	ErrProductNotFound     = errors.New("product not found")
	ErrStoreNotFound       = errors.New("store not found")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrTransferNotFound    = errors.New("transfer not found")
	ErrPriceNotFound       = errors.New("metal price not found")
	ErrSerialTaken         = errors.New("asset serial already exists")
	ErrNumberTaken         = errors.New("appointment number already exists")
	ErrPINTaken            = errors.New("appointment pin already exists")
	ErrActiveAppointment   = errors.New("asset already has an active appointment")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrDuplicateRequest    = errors.New("duplicate request")
)
