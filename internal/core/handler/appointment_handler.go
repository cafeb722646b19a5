package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/usecase"
)

type AppointmentHandler struct {
	usecase usecase.AppointmentUsecase
	log     logger.Logger
}

func NewAppointmentHandler(usecase usecase.AppointmentUsecase, log logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{usecase: usecase, log: log}
}

func (h *AppointmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/appointments", h.CreateAppointment).Methods("POST")
	router.HandleFunc("/api/v1/appointments/{id}/confirm", h.ConfirmAppointment).Methods("POST")
	router.HandleFunc("/api/v1/appointments/{id}/cancel", h.CancelAppointment).Methods("POST")
	router.HandleFunc("/api/v1/appointments/{id}/complete", h.CompleteAppointment).Methods("POST")
}

type createAppointmentRequest struct {
	UserID  string `json:"userId" validate:"required,uuid"`
	AssetID string `json:"assetId" validate:"required,uuid"`
	StoreID string `json:"storeId" validate:"required,uuid"`
	Date    string `json:"date" validate:"required"`
	Time    string `json:"time" validate:"required"`
}

func (h *AppointmentHandler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Warn("Failed to decode appointment request", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	defer r.Body.Close()

	if err := validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	userID, _ := uuid.Parse(req.UserID)
	assetID, _ := uuid.Parse(req.AssetID)
	storeID, _ := uuid.Parse(req.StoreID)

	result, err := h.usecase.Create(r.Context(), usecase.AppointmentRequest{
		UserID:  userID,
		AssetID: assetID,
		StoreID: storeID,
		Date:    date,
		Time:    req.Time,
	})
	if err != nil {
		respondWithDomainError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *AppointmentHandler) ConfirmAppointment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id uuid.UUID) error {
		return h.usecase.Confirm(r.Context(), id)
	})
}

type cancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	var req cancelAppointmentRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
		defer r.Body.Close()
	}

	h.transition(w, r, func(id uuid.UUID) error {
		return h.usecase.Cancel(r.Context(), id, req.Reason)
	})
}

func (h *AppointmentHandler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(id uuid.UUID) error {
		return h.usecase.Complete(r.Context(), id)
	})
}

func (h *AppointmentHandler) transition(w http.ResponseWriter, r *http.Request, op func(id uuid.UUID) error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid appointment id")
		return
	}

	if err := op(id); err != nil {
		respondWithDomainError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
