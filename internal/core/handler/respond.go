package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/usecase"
)

var validate = validator.New()

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Error: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`)) // Fallback response
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithDomainError maps usecase sentinels to HTTP statuses. Anything
// unrecognized is a 500 and gets logged with the full cause.
func respondWithDomainError(w http.ResponseWriter, log logger.Logger, err error) {
	switch {
	case errors.Is(err, usecase.ErrInsufficientFunds):
		respondWithError(w, http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, usecase.ErrInsufficientMetal):
		respondWithError(w, http.StatusBadRequest, "insufficient digital balance")
	case errors.Is(err, usecase.ErrProductNotFound),
		errors.Is(err, usecase.ErrStoreNotFound),
		errors.Is(err, usecase.ErrAssetNotFound),
		errors.Is(err, usecase.ErrAppointmentNotFound),
		errors.Is(err, usecase.ErrTransferNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, usecase.ErrActiveAppointment),
		errors.Is(err, usecase.ErrInvalidTransition),
		errors.Is(err, usecase.ErrDuplicateRequest):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, usecase.ErrInvalidAmount),
		errors.Is(err, usecase.ErrInvalidCurrency),
		errors.Is(err, usecase.ErrInvalidMetal),
		errors.Is(err, usecase.ErrInvalidPaymentMethod),
		errors.Is(err, usecase.ErrInvalidOperationType):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error("Failed to process operation", logger.ErrorField("error", err))
		respondWithError(w, http.StatusInternalServerError, "Failed to process operation")
	}
}
