package storage_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/linemk/order-payments/internal/domain/models"
	"github.com/linemk/order-payments/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGetUserByEmail_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	email := "test@example.com"

	rows := sqlmock.NewRows([]string{"id", "username", "pass_hash"}).
		AddRow(1, email, []byte("hashed-password"))
	query := regexp.QuoteMeta("SELECT id, username, pass_hash FROM users WHERE username = $1")
	mock.ExpectQuery(query).WithArgs(email).WillReturnRows(rows)

	user, err := repo.GetUserByEmail(ctx, email)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, email, user.Email)
	assert.Equal(t, []byte("hashed-password"), user.PassHash)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	email := "nonexistent@example.com"

	rows := sqlmock.NewRows([]string{"id", "username", "pass_hash"})
	query := regexp.QuoteMeta("SELECT id, username, pass_hash FROM users WHERE username = $1")
	mock.ExpectQuery(query).WithArgs(email).WillReturnRows(rows)

	user, err := repo.GetUserByEmail(ctx, email)
	assert.Error(t, err)
	assert.Nil(t, user)
	assert.True(t, errors.Is(err, storage.ErrUserNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewUserRepository(db)
	ctx := context.Background()
	email := "create@example.com"
	passHash := []byte("hashed")

	query := regexp.QuoteMeta("INSERT INTO users (username, pass_hash) VALUES ($1, $2) RETURNING id")
	mock.ExpectQuery(query).WithArgs(email, passHash).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	user, err := repo.CreateUser(ctx, &models.User{Email: email, PassHash: passHash})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// orderColumns — колонки выборки заказа в порядке scanOrder
func orderRows(id, userID int64, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "user_id", "order_number", "shipping_address", "billing_address",
		"total_amount", "status", "notes", "created_at", "updated_at",
	}).AddRow(id, userID, "ORD-ABCDE12345", "123 Main St", "123 Main St", "250.00", status, "", now, now)
}

func TestLockOrderByIDTx_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	query := regexp.QuoteMeta("FROM orders WHERE id = $1 FOR UPDATE NOWAIT")
	mock.ExpectQuery(query).WithArgs(int64(1)).WillReturnRows(orderRows(1, 7, "confirmed"))

	order, err := repo.LockOrderByIDTx(ctx, tx, 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), order.ID)
	assert.Equal(t, int64(7), order.UserID)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("250.00")))

	mock.ExpectCommit()
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockOrderByIDTx_LockConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	// Строка занята конкурентной транзакцией: NOWAIT возвращает 55P03
	query := regexp.QuoteMeta("FROM orders WHERE id = $1 FOR UPDATE NOWAIT")
	mock.ExpectQuery(query).WithArgs(int64(1)).WillReturnError(&pq.Error{Code: "55P03"})

	order, err := repo.LockOrderByIDTx(ctx, tx, 1)
	assert.Nil(t, order)
	assert.True(t, errors.Is(err, storage.ErrOrderLocked))

	mock.ExpectRollback()
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockOrderByIDTx_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	query := regexp.QuoteMeta("FROM orders WHERE id = $1 FOR UPDATE NOWAIT")
	mock.ExpectQuery(query).WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	order, err := repo.LockOrderByIDTx(ctx, tx, 99)
	assert.Nil(t, order)
	assert.True(t, errors.Is(err, storage.ErrOrderNotFound))

	mock.ExpectRollback()
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderForUser_WithItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	ctx := context.Background()

	query := regexp.QuoteMeta("FROM orders WHERE id = $1 AND user_id = $2")
	mock.ExpectQuery(query).WithArgs(int64(1), int64(7)).WillReturnRows(orderRows(1, 7, "pending"))

	now := time.Now()
	itemRows := sqlmock.NewRows([]string{"id", "order_id", "product_name", "quantity", "unit_price", "total_price", "created_at"}).
		AddRow(1, 1, "Keyboard", 2, "99.99", "199.98", now).
		AddRow(2, 1, "Mouse", 1, "50.02", "50.02", now)
	itemQuery := regexp.QuoteMeta("FROM order_items WHERE order_id = $1 ORDER BY id")
	mock.ExpectQuery(itemQuery).WithArgs(int64(1)).WillReturnRows(itemRows)

	order, err := repo.GetOrderForUser(ctx, 1, 7)
	assert.NoError(t, err)
	assert.Len(t, order.Items, 2)
	assert.Equal(t, "Keyboard", order.Items[0].ProductName)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderTx_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewOrderRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	query := regexp.QuoteMeta("UPDATE orders SET")
	mock.ExpectExec(query).
		WithArgs("addr", "addr", "confirmed", "", int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.UpdateOrderTx(ctx, tx, &models.Order{
		ID:              99,
		ShippingAddress: "addr",
		BillingAddress:  "addr",
		Status:          models.OrderStatusConfirmed,
	})
	assert.True(t, errors.Is(err, storage.ErrOrderNotFound))

	mock.ExpectRollback()
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePaymentTx_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewPaymentRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	query := regexp.QuoteMeta("INSERT INTO payments")
	mock.ExpectQuery(query).
		WithArgs(int64(1), "payment_abc", "successful", "card", decimal.RequireFromString("250.00"), `{"card_last_four":"****1111"}`, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

	payment, err := repo.CreatePaymentTx(ctx, tx, &models.Payment{
		OrderID:            1,
		PaymentID:          "payment_abc",
		Status:             models.PaymentStatusSuccessful,
		Method:             "card",
		Amount:             decimal.RequireFromString("250.00"),
		TransactionDetails: `{"card_last_four":"****1111"}`,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), payment.ID)

	mock.ExpectCommit()
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePaymentTx_DuplicateKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewPaymentRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	// Нарушение уникальности (order_id, idempotency_key) — код 23505
	key := "retry-key-1"
	query := regexp.QuoteMeta("INSERT INTO payments")
	mock.ExpectQuery(query).
		WithArgs(int64(1), "payment_abc", "successful", "card", decimal.RequireFromString("250.00"), "", key).
		WillReturnError(&pq.Error{Code: "23505"})

	payment, err := repo.CreatePaymentTx(ctx, tx, &models.Payment{
		OrderID:        1,
		PaymentID:      "payment_abc",
		Status:         models.PaymentStatusSuccessful,
		Method:         "card",
		Amount:         decimal.RequireFromString("250.00"),
		IdempotencyKey: &key,
	})
	assert.Nil(t, payment)
	assert.True(t, errors.Is(err, storage.ErrDuplicatePayment))

	mock.ExpectRollback()
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByOrderAndKeyTx_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewPaymentRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	query := regexp.QuoteMeta("FROM payments WHERE order_id = $1 AND idempotency_key = $2")
	mock.ExpectQuery(query).WithArgs(int64(1), "missing-key").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	payment, err := repo.FindByOrderAndKeyTx(ctx, tx, 1, "missing-key")
	assert.Nil(t, payment)
	assert.True(t, errors.Is(err, storage.ErrPaymentNotFound))

	mock.ExpectRollback()
	assert.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPaymentsByOrderTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewPaymentRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	tx, err := db.Begin()
	assert.NoError(t, err)

	query := regexp.QuoteMeta("SELECT COUNT(*) FROM payments WHERE order_id = $1")
	mock.ExpectQuery(query).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountPaymentsByOrderTx(ctx, tx, 1)
	assert.NoError(t, err)
	assert.Equal(t, 3, count)

	mock.ExpectCommit()
	assert.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPaymentForUser_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	repo := storage.NewPaymentRepository(db)
	ctx := context.Background()

	// Чужая или отсутствующая запись: JOIN по владельцу не находит строку
	query := regexp.QuoteMeta("JOIN orders o ON p.order_id = o.id")
	mock.ExpectQuery(query).WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	payment, err := repo.GetPaymentForUser(ctx, 1, 2)
	assert.Nil(t, payment)
	assert.True(t, errors.Is(err, storage.ErrPaymentNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}
