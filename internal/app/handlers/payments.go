package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/linemk/order-payments/internal/domain/models"
	"github.com/linemk/order-payments/internal/gateway"
	"github.com/linemk/order-payments/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/order-payments/internal/service"
	"github.com/shopspring/decimal"
)

// ProcessPaymentRequest — входной JSON оплаты заказа.
// Поля, специфичные для метода, обязательны только для него (required_if).
// Поле amount принимается, но сервис его игнорирует: списывается сумма заказа.
type ProcessPaymentRequest struct {
	OrderID         int64           `json:"order_id" validate:"required"`
	PaymentMethod   string          `json:"payment_method" validate:"required"`
	IdempotencyKey  string          `json:"idempotency_key"`
	Amount          decimal.Decimal `json:"amount"`
	CardNumber      string          `json:"card_number" validate:"required_if=PaymentMethod card"`
	CardExpiryMonth string          `json:"card_expiry_month" validate:"required_if=PaymentMethod card"`
	CardExpiryYear  string          `json:"card_expiry_year" validate:"required_if=PaymentMethod card"`
	CardCVV         string          `json:"card_cvv" validate:"required_if=PaymentMethod card"`
	WalletEmail     string          `json:"wallet_email" validate:"required_if=PaymentMethod wallet,omitempty,email"`
	AccountNumber   string          `json:"account_number" validate:"required_if=PaymentMethod bank-transfer"`
	Token           string          `json:"token" validate:"required_if=PaymentMethod hosted-token"`
}

// paymentWithStatus — ответ show-эндпоинта: запись плюс живой статус от шлюза
type paymentWithStatus struct {
	Payment    *models.Payment `json:"payment"`
	LiveStatus *gateway.Result `json:"live_status"`
}

// ProcessPaymentHandler обрабатывает запрос POST /api/payments/process
func ProcessPaymentHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ProcessPaymentHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			respondError(logger, w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req ProcessPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			respondError(logger, w, http.StatusBadRequest, "invalid request")
			return
		}

		if err := validate.Struct(req); err != nil {
			logger.Warn("invalid request: validation error", slog.Any("error", err))
			respondValidationError(logger, w, err)
			return
		}

		payment, err := paymentService.Process(r.Context(), userID, service.ProcessPaymentRequest{
			OrderID:         req.OrderID,
			Method:          req.PaymentMethod,
			IdempotencyKey:  req.IdempotencyKey,
			Amount:          req.Amount,
			CardNumber:      req.CardNumber,
			CardExpiryMonth: req.CardExpiryMonth,
			CardExpiryYear:  req.CardExpiryYear,
			CardCVV:         req.CardCVV,
			WalletEmail:     req.WalletEmail,
			AccountNumber:   req.AccountNumber,
			Token:           req.Token,
		})
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondJSON(logger, w, http.StatusOK, dataResponse{Success: true, Message: "Payment processed successfully", Data: payment})
	}
}

// ListPaymentsHandler обрабатывает запрос GET /api/payments
func ListPaymentsHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListPaymentsHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			respondError(logger, w, http.StatusUnauthorized, "unauthorized")
			return
		}

		payments, err := paymentService.ListPayments(r.Context(), userID)
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondJSON(logger, w, http.StatusOK, dataResponse{Success: true, Data: payments})
	}
}

// GetPaymentHandler обрабатывает запрос GET /api/payments/{id}
func GetPaymentHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetPaymentHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			respondError(logger, w, http.StatusUnauthorized, "unauthorized")
			return
		}

		paymentID, err := parseIDParam(r)
		if err != nil {
			respondError(logger, w, http.StatusBadRequest, "invalid payment id")
			return
		}

		payment, liveStatus, err := paymentService.GetPayment(r.Context(), userID, paymentID)
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondJSON(logger, w, http.StatusOK, dataResponse{
			Success: true,
			Data:    paymentWithStatus{Payment: payment, LiveStatus: liveStatus},
		})
	}
}

// RefundPaymentHandler обрабатывает запрос POST /api/payments/{id}/refund
func RefundPaymentHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RefundPaymentHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			respondError(logger, w, http.StatusUnauthorized, "unauthorized")
			return
		}

		paymentID, err := parseIDParam(r)
		if err != nil {
			respondError(logger, w, http.StatusBadRequest, "invalid payment id")
			return
		}

		result, err := paymentService.Refund(r.Context(), userID, paymentID)
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondJSON(logger, w, http.StatusOK, dataResponse{Success: true, Message: result.Message, Data: result})
	}
}
