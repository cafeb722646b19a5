package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/sabaek/bullion/internal/core/logger"
	"github.com/sabaek/bullion/internal/core/models"
	"github.com/sabaek/bullion/internal/core/usecase"
)

type WalletHandler struct {
	usecase usecase.LedgerUsecase
	log     logger.Logger
}

type OperationResponse struct {
	Error    string    `json:"error,omitempty"`
	Balance  string    `json:"balance"`
	Currency string    `json:"currency"`
	UserID   uuid.UUID `json:"user_id"`
}

var amountRegexp = regexp.MustCompile(`^\s*\d{1,9}([.,]\d{1,2})?\s*$`)

func NewWalletHandler(usecase usecase.LedgerUsecase, log logger.Logger) *WalletHandler {
	return &WalletHandler{usecase: usecase, log: log}
}

func (h *WalletHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/wallet", h.ProcessWalletOperation).Methods("POST")
	router.HandleFunc("/api/v1/users/{user_id}/balances", h.GetBalances).Methods("GET")
	router.HandleFunc("/api/v1/users/{user_id}/transactions", h.GetTransactions).Methods("GET")
}

func (h *WalletHandler) ProcessWalletOperation(w http.ResponseWriter, r *http.Request) {
	operation, err := h.decodeRequest(w, r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if validationErr := h.validateOperation(operation); validationErr != nil {
		h.log.Warn(validationErr.Message, validationErr.Fields...)
		respondWithError(w, http.StatusBadRequest, validationErr.Message)
		return
	}

	amountDec, err := h.parseAmount(operation.Amount)
	if err != nil {
		h.log.Warn("Invalid amount", logger.StringField("amount", operation.Amount), logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	operation.DecimalAmount = amountDec

	newBalance, err := h.usecase.OperateWallet(r.Context(), *operation)
	if err != nil {
		respondWithDomainError(w, h.log, err)
		return
	}

	h.log.Info("Wallet operation successful",
		logger.StringField("user_id", operation.UserID.String()),
		logger.StringField("operation_type", string(operation.OperationType)),
		logger.StringField("amount", operation.DecimalAmount.String()),
		logger.StringField("new_balance", newBalance.StringFixedBank(2)),
	)

	respondWithJSON(w, http.StatusOK, OperationResponse{
		Balance:  newBalance.StringFixedBank(2),
		Currency: operation.CurrencyCode,
		UserID:   operation.UserID,
	})
}

func (h *WalletHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(mux.Vars(r)["user_id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	snapshot, err := h.usecase.Balances(r.Context(), userID)
	if err != nil {
		respondWithDomainError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snapshot)
}

func (h *WalletHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(mux.Vars(r)["user_id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	history, err := h.usecase.History(r.Context(), userID, limit)
	if err != nil {
		respondWithDomainError(w, h.log, err)
		return
	}
	respondWithJSON(w, http.StatusOK, history)
}

type ValidationError struct {
	Message string
	Fields  []logger.Field
}

func (h *WalletHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*models.WalletOperation, error) {
	var operation models.WalletOperation
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&operation); err != nil {
		h.log.Warn("Failed to decode request body", logger.ErrorField("error", err))
		return nil, fmt.Errorf("invalid request payload")
	}
	defer r.Body.Close()
	return &operation, nil
}

func (h *WalletHandler) validateOperation(operation *models.WalletOperation) *ValidationError {
	if operation.UserID == uuid.Nil {
		return &ValidationError{
			Message: "User ID is required",
			Fields:  []logger.Field{logger.StringField("user_id", "")},
		}
	}

	if !models.IsSupportedCurrency(operation.CurrencyCode) {
		return &ValidationError{
			Message: "Unsupported currency",
			Fields:  []logger.Field{logger.StringField("currency", operation.CurrencyCode)},
		}
	}

	operation.OperationType = models.OperationType(
		strings.ToUpper(string(operation.OperationType)),
	)

	switch operation.OperationType {
	case models.OperationDeposit, models.OperationWithdraw:
		return nil
	default:
		return &ValidationError{
			Message: "Invalid operation type",
			Fields: []logger.Field{
				logger.StringField("operation_type", string(operation.OperationType)),
			},
		}
	}
}

func (h *WalletHandler) parseAmount(amountStr string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.ReplaceAll(amountStr, " ", ""), ",", ".")

	if !amountRegexp.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("invalid amount format: %s", cleaned)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse amount: %v", err)
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}

	return amount, nil
}
