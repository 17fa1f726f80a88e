package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/linemk/order-payments/internal/domain/models"
	"github.com/linemk/order-payments/internal/storage"
	"github.com/shopspring/decimal"
)

// OrderService определяет бизнес-операции над заказами
type OrderService interface {
	CreateOrder(ctx context.Context, userID int64, req CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error)
	ListOrders(ctx context.Context, userID int64) ([]*models.Order, error)
	UpdateOrder(ctx context.Context, userID, orderID int64, req UpdateOrderRequest) (*models.Order, error)
	DeleteOrder(ctx context.Context, userID, orderID int64) error
}

// CreateOrderRequest — входные данные создания заказа
type CreateOrderRequest struct {
	ShippingAddress string
	BillingAddress  string
	Notes           string
	Items           []CreateOrderItem
}

type CreateOrderItem struct {
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

// UpdateOrderRequest — изменяемые поля заказа; nil означает «не менять»
type UpdateOrderRequest struct {
	ShippingAddress *string
	BillingAddress  *string
	Notes           *string
	Status          *models.OrderStatus
}

type orderService struct {
	log         *slog.Logger
	db          *sql.DB
	orderRepo   storage.OrderStorage
	paymentRepo storage.PaymentStorage
}

func NewOrderService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, paymentRepo storage.PaymentStorage) OrderService {
	return &orderService{
		log:         log,
		db:          db,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
	}
}

// CreateOrder создаёт заказ вместе с позициями одной транзакцией.
// Итоговая сумма считается на сервере из позиций и после создания не пересчитывается.
func (s *orderService) CreateOrder(ctx context.Context, userID int64, req CreateOrderRequest) (*models.Order, error) {
	const op = "service.OrderService.CreateOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))
	logger.Info("creating order", slog.Int("items", len(req.Items)))

	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%s: order must contain at least one item", op)
	}

	total := decimal.Zero
	items := make([]*models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(lineTotal)
		items = append(items, &models.OrderItem{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TotalPrice:  lineTotal,
		})
	}

	order := &models.Order{
		UserID:          userID,
		OrderNumber:     newOrderNumber(),
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		TotalAmount:     total,
		Status:          models.OrderStatusPending,
		Notes:           req.Notes,
		Items:           items,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	created, err := s.orderRepo.CreateOrderTx(ctx, tx, order)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order created", slog.Int64("orderID", created.ID), slog.String("total", created.TotalAmount.String()))
	return created, nil
}

func (s *orderService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	const op = "service.OrderService.GetOrder"

	order, err := s.orderRepo.GetOrderForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID int64) ([]*models.Order, error) {
	const op = "service.OrderService.ListOrders"

	orders, err := s.orderRepo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list orders: %w", op, err)
	}
	return orders, nil
}

// UpdateOrder меняет поля заказа под блокировкой строки.
// Адрес и примечания можно менять только в статусе pending; смена статуса
// проверяется машиной состояний (в том числе confirmed -> cancelled).
func (s *orderService) UpdateOrder(ctx context.Context, userID, orderID int64, req UpdateOrderRequest) (*models.Order, error) {
	const op = "service.OrderService.UpdateOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("orderID", orderID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.lockOwnOrder(ctx, tx, userID, orderID, logger, op)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		return nil, err
	}

	fieldsChanged := req.ShippingAddress != nil || req.BillingAddress != nil || req.Notes != nil
	if fieldsChanged && !order.CanUpdate() {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		return nil, &StateConflictError{Rule: "only pending orders can be updated", Status: order.Status}
	}

	if req.Status != nil && *req.Status != order.Status {
		if !order.CanTransitionTo(*req.Status) {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("transaction rollback failed", slog.Any("error", rbErr))
			}
			return nil, &StateConflictError{
				Rule:   fmt.Sprintf("status transition to %s is not allowed", *req.Status),
				Status: order.Status,
			}
		}
		order.Status = *req.Status
	}
	if req.ShippingAddress != nil {
		order.ShippingAddress = *req.ShippingAddress
	}
	if req.BillingAddress != nil {
		order.BillingAddress = *req.BillingAddress
	}
	if req.Notes != nil {
		order.Notes = *req.Notes
	}

	if err := s.orderRepo.UpdateOrderTx(ctx, tx, order); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to update order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update order: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order updated", slog.String("status", string(order.Status)))
	return order, nil
}

// DeleteOrder удаляет заказ; удаление запрещено, если по заказу есть хотя бы одна оплата
func (s *orderService) DeleteOrder(ctx context.Context, userID, orderID int64) error {
	const op = "service.OrderService.DeleteOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("orderID", orderID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.lockOwnOrder(ctx, tx, userID, orderID, logger, op)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		return err
	}

	count, err := s.paymentRepo.CountPaymentsByOrderTx(ctx, tx, order.ID)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to count payments", slog.Any("error", err))
		return fmt.Errorf("%s: failed to count payments: %w", op, err)
	}
	if count > 0 {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Warn("order has payments, delete forbidden", slog.Int("payments", count))
		return &StateConflictError{Rule: "cannot delete an order with associated payments", Status: order.Status}
	}

	if err := s.orderRepo.DeleteOrderTx(ctx, tx, order.ID); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to delete order", slog.Any("error", err))
		return fmt.Errorf("%s: failed to delete order: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order deleted")
	return nil
}

// lockOwnOrder берёт блокировку строки заказа и проверяет принадлежность пользователю.
// Чужой или отсутствующий заказ наружу не различаются.
func (s *orderService) lockOwnOrder(ctx context.Context, tx *sql.Tx, userID, orderID int64, logger *slog.Logger, op string) (*models.Order, error) {
	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		if errors.Is(err, storage.ErrOrderLocked) {
			return nil, &StateConflictError{Rule: "order is busy with another operation"}
		}
		logger.Error("failed to lock order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock order: %w", op, err)
	}
	if order.UserID != userID {
		return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
	}
	return order, nil
}

// newOrderNumber генерирует человекочитаемый номер заказа
func newOrderNumber() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "ORD-" + raw[:10]
}
