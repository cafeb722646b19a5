package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/usecase"
)

type AssetHandler struct {
	registry  usecase.AssetRegistry
	transfers usecase.TransferUsecase
	log       logger.Logger
}

func NewAssetHandler(registry usecase.AssetRegistry, transfers usecase.TransferUsecase, log logger.Logger) *AssetHandler {
	return &AssetHandler{registry: registry, transfers: transfers, log: log}
}

func (h *AssetHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/users/{user_id}/assets", h.ListAssets).Methods("GET")
	router.HandleFunc("/api/v1/assets/{asset_id}", h.GetAsset).Methods("GET")
	router.HandleFunc("/api/v1/assets/{asset_id}/relocate", h.RelocateAsset).Methods("POST")
}

func (h *AssetHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(mux.Vars(r)["user_id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	assets, err := h.registry.ListByOwner(r.Context(), userID)
	if err != nil {
		respondWithDomainError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, assets)
}

func (h *AssetHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	assetID, err := uuid.Parse(mux.Vars(r)["asset_id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	asset, err := h.registry.Get(r.Context(), assetID)
	if err != nil {
		respondWithDomainError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, asset)
}

type relocateRequest struct {
	UserID  string `json:"userId" validate:"required,uuid"`
	StoreID string `json:"storeId" validate:"required,uuid"`
}

func (h *AssetHandler) RelocateAsset(w http.ResponseWriter, r *http.Request) {
	assetID, err := uuid.Parse(mux.Vars(r)["asset_id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	var req relocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	userID, _ := uuid.Parse(req.UserID)
	storeID, _ := uuid.Parse(req.StoreID)

	if err := h.transfers.ChangePickupLocation(r.Context(), userID, assetID, storeID); err != nil {
		respondWithDomainError(w, h.log, err)
		return
	}

	h.log.Info("Asset relocated",
		logger.StringField("asset_id", assetID.String()),
		logger.StringField("store_id", storeID.String()))
	w.WriteHeader(http.StatusNoContent)
}
