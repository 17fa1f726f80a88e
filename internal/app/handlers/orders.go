package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/order-payments/internal/domain/models"
	"github.com/linemk/order-payments/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/order-payments/internal/service"
	"github.com/shopspring/decimal"
)

// CreateOrderRequest — входной JSON создания заказа
type CreateOrderRequest struct {
	ShippingAddress string            `json:"shipping_address" validate:"required"`
	BillingAddress  string            `json:"billing_address" validate:"required"`
	Notes           string            `json:"notes"`
	Items           []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
}

type CreateOrderItem struct {
	ProductName string          `json:"product_name" validate:"required"`
	Quantity    int             `json:"quantity" validate:"required,min=1"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// UpdateOrderRequest — входной JSON изменения заказа; отсутствующие поля не меняются
type UpdateOrderRequest struct {
	ShippingAddress *string `json:"shipping_address"`
	BillingAddress  *string `json:"billing_address"`
	Notes           *string `json:"notes"`
	Status          *string `json:"status" validate:"omitempty,oneof=pending confirmed cancelled"`
}

var minUnitPrice = decimal.RequireFromString("0.01")

// CreateOrderHandler обрабатывает запрос POST /api/orders
func CreateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			respondError(logger, w, http.StatusUnauthorized, "unauthorized")
			return
		}

		var req CreateOrderRequest
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
		// цена позиции валидируется отдельно: validator не умеет сравнивать decimal
		for i, item := range req.Items {
			if item.UnitPrice.LessThan(minUnitPrice) {
				respondJSON(logger, w, http.StatusUnprocessableEntity, errorResponse{
					Success: false,
					Message: "Validation error",
					Errors:  map[string]string{"items[" + strconv.Itoa(i) + "].unit_price": "must be at least 0.01"},
				})
				return
			}
		}

		items := make([]service.CreateOrderItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, service.CreateOrderItem{
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
			})
		}

		order, err := orderService.CreateOrder(r.Context(), userID, service.CreateOrderRequest{
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
			Notes:           req.Notes,
			Items:           items,
		})
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondJSON(logger, w, http.StatusCreated, dataResponse{Success: true, Message: "Order created successfully", Data: order})
	}
}

// ListOrdersHandler обрабатывает запрос GET /api/orders
func ListOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ListOrdersHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			respondError(logger, w, http.StatusUnauthorized, "unauthorized")
			return
		}

		orders, err := orderService.ListOrders(r.Context(), userID)
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondJSON(logger, w, http.StatusOK, dataResponse{Success: true, Data: orders})
	}
}

// GetOrderHandler обрабатывает запрос GET /api/orders/{id}
func GetOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			respondError(logger, w, http.StatusUnauthorized, "unauthorized")
			return
		}

		orderID, err := parseIDParam(r)
		if err != nil {
			respondError(logger, w, http.StatusBadRequest, "invalid order id")
			return
		}

		order, err := orderService.GetOrder(r.Context(), userID, orderID)
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondJSON(logger, w, http.StatusOK, dataResponse{Success: true, Data: order})
	}
}

// UpdateOrderHandler обрабатывает запрос PUT /api/orders/{id}
func UpdateOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			respondError(logger, w, http.StatusUnauthorized, "unauthorized")
			return
		}

		orderID, err := parseIDParam(r)
		if err != nil {
			respondError(logger, w, http.StatusBadRequest, "invalid order id")
			return
		}

		var req UpdateOrderRequest
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

		var status *models.OrderStatus
		if req.Status != nil {
			st := models.OrderStatus(*req.Status)
			status = &st
		}

		order, err := orderService.UpdateOrder(r.Context(), userID, orderID, service.UpdateOrderRequest{
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
			Notes:           req.Notes,
			Status:          status,
		})
		if err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondJSON(logger, w, http.StatusOK, dataResponse{Success: true, Message: "Order updated successfully", Data: order})
	}
}

// DeleteOrderHandler обрабатывает запрос DELETE /api/orders/{id}
func DeleteOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.DeleteOrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			respondError(logger, w, http.StatusUnauthorized, "unauthorized")
			return
		}

		orderID, err := parseIDParam(r)
		if err != nil {
			respondError(logger, w, http.StatusBadRequest, "invalid order id")
			return
		}

		if err := orderService.DeleteOrder(r.Context(), userID, orderID); err != nil {
			respondServiceError(logger, w, err)
			return
		}

		respondJSON(logger, w, http.StatusOK, dataResponse{Success: true, Message: "Order deleted successfully"})
	}
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
