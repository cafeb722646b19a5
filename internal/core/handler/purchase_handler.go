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

type PurchaseHandler struct {
	usecase usecase.PurchaseUsecase
	log     logger.Logger
}

func NewPurchaseHandler(usecase usecase.PurchaseUsecase, log logger.Logger) *PurchaseHandler {
	return &PurchaseHandler{usecase: usecase, log: log}
}

func (h *PurchaseHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/purchases", h.CreatePurchase).Methods("POST")
}

type purchaseRequest struct {
	UserID        string `json:"userId" validate:"required,uuid"`
	Type          string `json:"type" validate:"required,oneof=physical digital"`
	ProductID     string `json:"productId" validate:"omitempty,uuid"`
	StoreID       string `json:"storeId" validate:"omitempty,uuid"`
	Metal         string `json:"metal" validate:"omitempty,oneof=gold silver"`
	Grams         string `json:"grams" validate:"omitempty"`
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=wallet_dinar wallet_dollar coupon cash"`
}

func (h *PurchaseHandler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("Failed to decode purchase request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := validate.Struct(req); err != nil {
		h.log.Warn("Invalid purchase request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	idempotencyKey := idempotencyKeyFrom(r)

	switch req.Type {
	case "physical":
		h.purchasePhysical(w, r, req, userID, idempotencyKey)
	case "digital":
		h.purchaseDigital(w, r, req, userID, idempotencyKey)
	}
}

func (h *PurchaseHandler) purchasePhysical(w http.ResponseWriter, r *http.Request, req purchaseRequest, userID uuid.UUID, idempotencyKey *string) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "productId is required for physical purchases")
		return
	}
	storeID, err := uuid.Parse(req.StoreID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "storeId is required for physical purchases")
		return
	}

	result, err := h.usecase.PurchasePhysical(r.Context(), usecase.PhysicalPurchaseRequest{
		UserID:         userID,
		ProductID:      productID,
		StoreID:        storeID,
		Method:         models.PaymentMethod(req.PaymentMethod),
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		respondWithDomainError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *PurchaseHandler) purchaseDigital(w http.ResponseWriter, r *http.Request, req purchaseRequest, userID uuid.UUID, idempotencyKey *string) {
	if req.Metal == "" || req.Grams == "" {
		respondWithError(w, http.StatusBadRequest, "metal and grams are required for digital purchases")
		return
	}
	grams, err := decimal.NewFromString(req.Grams)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid grams")
		return
	}

	result, err := h.usecase.PurchaseDigital(r.Context(), usecase.DigitalPurchaseRequest{
		UserID:         userID,
		Metal:          models.MetalType(req.Metal),
		Grams:          grams,
		Method:         models.PaymentMethod(req.PaymentMethod),
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		respondWithDomainError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

// idempotencyKeyFrom reads the optional client-supplied key guarding
// against double-submitted purchases.
func idempotencyKeyFrom(r *http.Request) *string {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		return nil
	}
	return &key
}
