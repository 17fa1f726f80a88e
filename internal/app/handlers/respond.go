package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/linemk/order-payments/internal/gateway"
	"github.com/linemk/order-payments/internal/service"
)

var validate = validator.New()

// errorResponse — единый формат ошибки для клиента
type errorResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// dataResponse — единый формат успешного ответа
type dataResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respondJSON(log *slog.Logger, w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("failed to encode response", slog.Any("error", err))
	}
}

func respondError(log *slog.Logger, w http.ResponseWriter, code int, message string) {
	respondJSON(log, w, code, errorResponse{Success: false, Message: message})
}

// respondValidationError отдаёт 422 с пофилдовой картой ошибок
func respondValidationError(log *slog.Logger, w http.ResponseWriter, err error) {
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = "failed on rule: " + fe.Tag()
		}
	}
	respondJSON(log, w, http.StatusUnprocessableEntity, errorResponse{
		Success: false,
		Message: "Validation error",
		Errors:  fields,
	})
}

// respondServiceError переводит ошибки бизнес-слоя в HTTP-коды.
// Детали инфраструктурных сбоев клиенту не раскрываются.
func respondServiceError(log *slog.Logger, w http.ResponseWriter, err error) {
	var conflict *service.StateConflictError
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		respondError(log, w, http.StatusNotFound, "Order not found")
	case errors.Is(err, service.ErrPaymentNotFound):
		respondError(log, w, http.StatusNotFound, "Payment not found")
	case errors.Is(err, service.ErrNotOrderOwner):
		respondError(log, w, http.StatusForbidden, "This order does not belong to you")
	case errors.As(err, &conflict):
		respondError(log, w, http.StatusUnprocessableEntity, conflict.Error())
	case errors.Is(err, gateway.ErrUnsupportedMethod):
		respondError(log, w, http.StatusUnprocessableEntity, "Unsupported payment method")
	case errors.Is(err, service.ErrGatewayUnavailable):
		respondError(log, w, http.StatusBadGateway, "Payment gateway unavailable")
	default:
		log.Error("internal error", slog.Any("error", err))
		respondError(log, w, http.StatusInternalServerError, "Internal server error")
	}
}
