package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/usecase"
)

type TransferHandler struct {
	usecase usecase.TransferUsecase
	log     logger.Logger
}

func NewTransferHandler(usecase usecase.TransferUsecase, log logger.Logger) *TransferHandler {
	return &TransferHandler{usecase: usecase, log: log}
}

func (h *TransferHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/transfers", h.CreateTransfer).Methods("POST")
	router.HandleFunc("/api/v1/transfers/{id}/resolve", h.ResolveTransfer).Methods("POST")
	router.HandleFunc("/api/v1/conversions", h.CreateConversion).Methods("POST")
}

type transferRequest struct {
	AssetID    string `json:"assetId" validate:"required,uuid"`
	FromUserID string `json:"fromUserId" validate:"required,uuid"`
	ToUserID   string `json:"toUserId" validate:"required,uuid"`
}

func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	assetID, _ := uuid.Parse(req.AssetID)
	fromUserID, _ := uuid.Parse(req.FromUserID)
	toUserID, _ := uuid.Parse(req.ToUserID)

	transfer, err := h.usecase.TransferOwnership(r.Context(), usecase.TransferRequest{
		AssetID:    assetID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
	})
	if err != nil {
		respondWithDomainError(w, h.log, err)
		return
	}

	status := http.StatusCreated
	if transfer.Status == models.TransferManualReview {
		// 202: recorded but held for an operator.
		status = http.StatusAccepted
	}
	respondWithJSON(w, status, transfer)
}

type resolveTransferRequest struct {
	Approve bool `json:"approve"`
}

func (h *TransferHandler) ResolveTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid transfer id")
		return
	}

	var req resolveTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	transfer, err := h.usecase.ResolveManualReview(r.Context(), id, req.Approve)
	if err != nil {
		respondWithDomainError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, transfer)
}

type conversionRequest struct {
	UserID  string `json:"userId" validate:"required,uuid"`
	Metal   string `json:"metal" validate:"required,oneof=gold silver"`
	Grams   string `json:"grams" validate:"required"`
	StoreID string `json:"storeId" validate:"required,uuid"`
}

func (h *TransferHandler) CreateConversion(w http.ResponseWriter, r *http.Request) {
	var req conversionRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	grams, err := decimal.NewFromString(req.Grams)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid grams")
		return
	}

	userID, _ := uuid.Parse(req.UserID)
	storeID, _ := uuid.Parse(req.StoreID)

	asset, err := h.usecase.ConvertDigitalToPhysical(r.Context(), usecase.ConvertRequest{
		UserID:  userID,
		Metal:   models.MetalType(req.Metal),
		Grams:   grams,
		StoreID: storeID,
	})
	if err != nil {
		respondWithDomainError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, asset)
}
