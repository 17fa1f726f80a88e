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
	ErrPaymentNotFound  = errors.New("payment not found")
	ErrDuplicatePayment = errors.New("duplicate payment")
)

// PaymentStorage описывает методы для работы с записями об оплатах.
// Запись создаётся один раз и далее не изменяется; уникальность внешнего
// идентификатора и пары (order_id, idempotency_key) обеспечивается на уровне БД.
type PaymentStorage interface {
	// CreatePaymentTx вставляет запись об оплате внутри транзакции вызывающей стороны
	CreatePaymentTx(ctx context.Context, tx *sql.Tx, payment *models.Payment) (*models.Payment, error)
	// FindByOrderAndKeyTx ищет ранее созданную запись по ключу идемпотентности
	FindByOrderAndKeyTx(ctx context.Context, tx *sql.Tx, orderID int64, key string) (*models.Payment, error)
	// CountPaymentsByOrderTx возвращает число записей об оплате по заказу
	CountPaymentsByOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) (int, error)
	// GetPaymentForUser возвращает запись, если заказ принадлежит пользователю
	GetPaymentForUser(ctx context.Context, id, userID int64) (*models.Payment, error)
	// ListPaymentsByUser возвращает оплаты по всем заказам пользователя, новые первыми
	ListPaymentsByUser(ctx context.Context, userID int64) ([]*models.Payment, error)
}

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт новый репозиторий оплат.
func NewPaymentRepository(db *sql.DB) PaymentStorage {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) CreatePaymentTx(ctx context.Context, tx *sql.Tx, payment *models.Payment) (*models.Payment, error) {
	err := tx.QueryRowContext(ctx,
		`INSERT INTO payments (order_id, payment_id, status, payment_method, amount, transaction_details, idempotency_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		 RETURNING id, created_at`,
		payment.OrderID, payment.PaymentID, payment.Status, payment.Method,
		payment.Amount, payment.TransactionDetails, payment.IdempotencyKey,
	).Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return nil, ErrDuplicatePayment
			}
		}
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return payment, nil
}

func (r *paymentRepository) FindByOrderAndKeyTx(ctx context.Context, tx *sql.Tx, orderID int64, key string) (*models.Payment, error) {
	payment := &models.Payment{}
	row := tx.QueryRowContext(ctx,
		`SELECT id, order_id, payment_id, status, payment_method, amount, transaction_details, idempotency_key, created_at
		 FROM payments WHERE order_id = $1 AND idempotency_key = $2`, orderID, key)
	if err := scanPayment(row, payment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepository) CountPaymentsByOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) (int, error) {
	var count int
	row := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments WHERE order_id = $1", orderID)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *paymentRepository) GetPaymentForUser(ctx context.Context, id, userID int64) (*models.Payment, error) {
	payment := &models.Payment{}
	row := r.db.QueryRowContext(ctx,
		`SELECT p.id, p.order_id, p.payment_id, p.status, p.payment_method, p.amount, p.transaction_details, p.idempotency_key, p.created_at
		 FROM payments p
		 JOIN orders o ON p.order_id = o.id
		 WHERE p.id = $1 AND o.user_id = $2`, id, userID)
	if err := scanPayment(row, payment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

func (r *paymentRepository) ListPaymentsByUser(ctx context.Context, userID int64) ([]*models.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.order_id, p.payment_id, p.status, p.payment_method, p.amount, p.transaction_details, p.idempotency_key, p.created_at
		 FROM payments p
		 JOIN orders o ON p.order_id = o.id
		 WHERE o.user_id = $1
		 ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		payment := &models.Payment{}
		if err := scanPayment(rows, payment); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func scanPayment(row rowScanner, payment *models.Payment) error {
	return row.Scan(
		&payment.ID, &payment.OrderID, &payment.PaymentID, &payment.Status,
		&payment.Method, &payment.Amount, &payment.TransactionDetails,
		&payment.IdempotencyKey, &payment.CreatedAt,
	)
}
