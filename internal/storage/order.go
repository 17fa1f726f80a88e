package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/order-payments/internal/domain/models"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderLocked   = errors.New("order is locked by another operation")
)

// OrderStorage описывает методы для работы с заказами.
// Методы с суффиксом Tx выполняются внутри транзакции, управляемой вызывающей стороной.
type OrderStorage interface {
	// CreateOrderTx вставляет заказ вместе с его позициями одной транзакцией
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (*models.Order, error)
	// GetOrderForUser возвращает заказ с позициями, если он принадлежит пользователю
	GetOrderForUser(ctx context.Context, id, userID int64) (*models.Order, error)
	// ListOrdersByUser возвращает заказы пользователя, новые первыми
	ListOrdersByUser(ctx context.Context, userID int64) ([]*models.Order, error)
	// LockOrderByIDTx берёт блокировку строки заказа (FOR UPDATE NOWAIT);
	// если строка уже заблокирована конкурентной операцией — возвращает ErrOrderLocked
	LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error)
	// UpdateOrderTx сохраняет изменяемые поля заказа
	UpdateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error
	// DeleteOrderTx удаляет заказ (позиции удаляются каскадно)
	DeleteOrderTx(ctx context.Context, tx *sql.Tx, id int64) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (*models.Order, error) {
	query := `INSERT INTO orders (user_id, order_number, shipping_address, billing_address, total_amount, status, notes, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	          RETURNING id, created_at, updated_at`
	err := tx.QueryRowContext(ctx, query,
		order.UserID, order.OrderNumber, order.ShippingAddress, order.BillingAddress,
		order.TotalAmount, order.Status, order.Notes,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range order.Items {
		item.OrderID = order.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, product_name, quantity, unit_price, total_price, created_at)
			 VALUES ($1, $2, $3, $4, $5, NOW())
			 RETURNING id, created_at`,
			item.OrderID, item.ProductName, item.Quantity, item.UnitPrice, item.TotalPrice,
		).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return order, nil
}

func (r *orderRepository) GetOrderForUser(ctx context.Context, id, userID int64) (*models.Order, error) {
	order := &models.Order{}
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, order_number, shipping_address, billing_address, total_amount, status, notes, created_at, updated_at
		 FROM orders WHERE id = $1 AND user_id = $2`, id, userID)
	if err := scanOrder(row, order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	items, err := r.getItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, order_number, shipping_address, billing_address, total_amount, status, notes, created_at, updated_at
		 FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		if err := scanOrder(rows, order); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	order := &models.Order{}
	row := tx.QueryRowContext(ctx,
		`SELECT id, user_id, order_number, shipping_address, billing_address, total_amount, status, notes, created_at, updated_at
		 FROM orders WHERE id = $1 FOR UPDATE NOWAIT`, id)
	if err := scanOrder(row, order); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "55P03" { // lock_not_available
				return nil, ErrOrderLocked
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) UpdateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET shipping_address = $1, billing_address = $2, status = $3, notes = $4, updated_at = NOW()
		 WHERE id = $5`,
		order.ShippingAddress, order.BillingAddress, order.Status, order.Notes, order.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) DeleteOrderTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) getItemsByOrderID(ctx context.Context, orderID int64) ([]*models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_name, quantity, unit_price, total_price, created_at
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		item := &models.OrderItem{}
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductName, &item.Quantity, &item.UnitPrice, &item.TotalPrice, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// rowScanner покрывает *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner, order *models.Order) error {
	return row.Scan(
		&order.ID, &order.UserID, &order.OrderNumber,
		&order.ShippingAddress, &order.BillingAddress,
		&order.TotalAmount, &order.Status, &order.Notes,
		&order.CreatedAt, &order.UpdatedAt,
	)
}
