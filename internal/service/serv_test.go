package service_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/linemk/order-payments/internal/domain/models"
	"github.com/linemk/order-payments/internal/service"
	"github.com/linemk/order-payments/internal/storage"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	users map[string]*models.User // ключ — email
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = int64(len(f.users) + 1)
	f.users[user.Email] = user
	return user, nil
}

// fakeOrderRepo хранит заказы в памяти; lockedIDs имитирует занятые строки
type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[int64]*models.Order
	lockedIDs map[int64]bool
	nextID    int64
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:    make(map[int64]*models.Order),
		lockedIDs: make(map[int64]bool),
		nextID:    1,
	}
}

func (f *fakeOrderRepo) add(order *models.Order) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	if order.ID == 0 {
		order.ID = f.nextID
		f.nextID++
	}
	f.orders[order.ID] = order
	return order
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (*models.Order, error) {
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	return f.add(order), nil
}

func (f *fakeOrderRepo) GetOrderForUser(ctx context.Context, id, userID int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok || order.UserID != userID {
		return nil, storage.ErrOrderNotFound
	}
	return order, nil
}

func (f *fakeOrderRepo) ListOrdersByUser(ctx context.Context, userID int64) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.Order
	for _, order := range f.orders {
		if order.UserID == userID {
			result = append(result, order)
		}
	}
	return result, nil
}

// LockOrderByIDTx имитирует FOR UPDATE NOWAIT: повторный захват той же
// строки до releaseLock сразу возвращает ErrOrderLocked
func (f *fakeOrderRepo) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	if f.lockedIDs[id] {
		return nil, storage.ErrOrderLocked
	}
	f.lockedIDs[id] = true
	return order, nil
}

func (f *fakeOrderRepo) releaseLock(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lockedIDs, id)
}

func (f *fakeOrderRepo) UpdateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[order.ID]; !ok {
		return storage.ErrOrderNotFound
	}
	order.UpdatedAt = time.Now()
	f.orders[order.ID] = order
	return nil
}

func (f *fakeOrderRepo) DeleteOrderTx(ctx context.Context, tx *sql.Tx, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return storage.ErrOrderNotFound
	}
	delete(f.orders, id)
	return nil
}

// fakePaymentRepo хранит записи об оплатах в памяти
type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[int64]*models.Payment
	nextID   int64
}

var _ storage.PaymentStorage = (*fakePaymentRepo)(nil)

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[int64]*models.Payment), nextID: 1}
}

func (f *fakePaymentRepo) CreatePaymentTx(ctx context.Context, tx *sql.Tx, payment *models.Payment) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment.ID = f.nextID
	f.nextID++
	payment.CreatedAt = time.Now()
	f.payments[payment.ID] = payment
	return payment, nil
}

func (f *fakePaymentRepo) FindByOrderAndKeyTx(ctx context.Context, tx *sql.Tx, orderID int64, key string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.OrderID == orderID && p.IdempotencyKey != nil && *p.IdempotencyKey == key {
			return p, nil
		}
	}
	return nil, storage.ErrPaymentNotFound
}

func (f *fakePaymentRepo) CountPaymentsByOrderTx(ctx context.Context, tx *sql.Tx, orderID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, p := range f.payments {
		if p.OrderID == orderID {
			count++
		}
	}
	return count, nil
}

func (f *fakePaymentRepo) GetPaymentForUser(ctx context.Context, id, userID int64) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, storage.ErrPaymentNotFound
	}
	return p, nil
}

func (f *fakePaymentRepo) ListPaymentsByUser(ctx context.Context, userID int64) ([]*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.Payment
	for _, p := range f.payments {
		result = append(result, p)
	}
	return result, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func TestAuthService_Login_NewUser(t *testing.T) {
	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	fakeRepo := newFakeUserRepo()
	authSvc := service.NewAuthService(testLogger(), fakeRepo, 60*time.Minute)
	ctx := context.Background()

	email := "newuser@example.com"
	password := "password123"

	token, err := authSvc.Login(ctx, email, password)
	assert.NoError(t, err, "Login should succeed for a new user")
	assert.NotEmpty(t, token, "Token should not be empty")

	user, err := fakeRepo.GetUserByEmail(ctx, email)
	assert.NoError(t, err, "User should exist after creation")
	// Проверяем, что пароль хэширован (не равен исходному паролю)
	assert.NotEqual(t, password, string(user.PassHash), "Password should be hashed")
}

func TestAuthService_Login_ExistingUser_CorrectPassword(t *testing.T) {
	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	fakeRepo := newFakeUserRepo()
	authSvc := service.NewAuthService(testLogger(), fakeRepo, 60*time.Minute)
	ctx := context.Background()

	email := "existing@example.com"
	password := "password123"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	assert.NoError(t, err)
	user := &models.User{
		Email:    email,
		PassHash: hashed,
	}
	_, err = fakeRepo.CreateUser(ctx, user)
	assert.NoError(t, err)

	token, err := authSvc.Login(ctx, email, password)
	assert.NoError(t, err, "Login should succeed with correct password")
	assert.NotEmpty(t, token, "Token should be returned")
}

func TestAuthService_Login_ExistingUser_WrongPassword(t *testing.T) {
	os.Setenv("JWT_SECRET", "testsecret")
	defer os.Unsetenv("JWT_SECRET")

	fakeRepo := newFakeUserRepo()
	authSvc := service.NewAuthService(testLogger(), fakeRepo, 60*time.Minute)
	ctx := context.Background()

	email := "existing@example.com"
	password := "password123"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	assert.NoError(t, err)
	user := &models.User{
		Email:    email,
		PassHash: hashed,
	}
	_, err = fakeRepo.CreateUser(ctx, user)
	assert.NoError(t, err)

	token, err := authSvc.Login(ctx, email, "wrongpassword")
	assert.Error(t, err, "Login should fail with incorrect password")
	assert.Empty(t, token, "Token should be empty on failed login")
}
