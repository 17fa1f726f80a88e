package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/order-payments/internal/domain/models"
	"github.com/linemk/order-payments/internal/gateway"
	"github.com/linemk/order-payments/internal/storage"
	"github.com/shopspring/decimal"
)

// PaymentService определяет операции обработки платежей
type PaymentService interface {
	// Process выполняет одну попытку оплаты заказа; failed-исход шлюза —
	// валидный результат и тоже фиксируется записью
	Process(ctx context.Context, userID int64, req ProcessPaymentRequest) (*models.Payment, error)
	// GetPayment возвращает запись об оплате вместе с актуальным статусом от шлюза
	GetPayment(ctx context.Context, userID, paymentID int64) (*models.Payment, *gateway.Result, error)
	// ListPayments возвращает оплаты по всем заказам пользователя
	ListPayments(ctx context.Context, userID int64) ([]*models.Payment, error)
	// Refund выполняет возврат по ранее созданной оплате
	Refund(ctx context.Context, userID, paymentID int64) (*gateway.Result, error)
}

// GatewayResolver сопоставляет тег способа оплаты с шлюзом; реализуется gateway.Registry
type GatewayResolver interface {
	Resolve(method string) (gateway.Gateway, error)
}

// ProcessPaymentRequest — входные данные попытки оплаты.
// Amount принимается от клиента, но намеренно игнорируется: списывается
// всегда total_amount заказа.
type ProcessPaymentRequest struct {
	OrderID         int64
	Method          string
	IdempotencyKey  string
	Amount          decimal.Decimal
	CardNumber      string
	CardExpiryMonth string
	CardExpiryYear  string
	CardCVV         string
	WalletEmail     string
	AccountNumber   string
	Token           string
}

type paymentService struct {
	log            *slog.Logger
	db             *sql.DB
	orderRepo      storage.OrderStorage
	paymentRepo    storage.PaymentStorage
	gateways       GatewayResolver
	gatewayTimeout time.Duration
}

func NewPaymentService(
	log *slog.Logger,
	db *sql.DB,
	orderRepo storage.OrderStorage,
	paymentRepo storage.PaymentStorage,
	gateways GatewayResolver,
	gatewayTimeout time.Duration,
) PaymentService {
	return &paymentService{
		log:            log,
		db:             db,
		orderRepo:      orderRepo,
		paymentRepo:    paymentRepo,
		gateways:       gateways,
		gatewayTimeout: gatewayTimeout,
	}
}

// Process обрабатывает оплату заказа в одной транзакции:
// блокировка строки заказа -> проверка допуска -> диспетчеризация в шлюз ->
// запись результата. Блокировка держится до коммита, поэтому две конкурентные
// попытки по одному заказу не могут обе пройти проверку допуска: проигравшая
// сразу получает конфликт (FOR UPDATE NOWAIT), а не ждёт.
func (s *paymentService) Process(ctx context.Context, userID int64, req ProcessPaymentRequest) (*models.Payment, error) {
	const op = "service.PaymentService.Process"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.Int64("orderID", req.OrderID),
		slog.String("method", req.Method),
	)
	logger.Info("starting payment transaction")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.lockOrderForPayment(ctx, tx, userID, req.OrderID, logger, op)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		return nil, err
	}

	// Повтор запроса с тем же ключом идемпотентности возвращает уже
	// созданную запись без нового обращения к шлюзу
	if req.IdempotencyKey != "" {
		existing, err := s.paymentRepo.FindByOrderAndKeyTx(ctx, tx, order.ID, req.IdempotencyKey)
		if err == nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("transaction rollback failed", slog.Any("error", rbErr))
			}
			logger.Info("idempotent replay, returning existing payment", slog.String("paymentID", existing.PaymentID))
			return existing, nil
		}
		if !errors.Is(err, storage.ErrPaymentNotFound) {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Error("transaction rollback failed", slog.Any("error", rbErr))
			}
			logger.Error("failed to check idempotency key", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to check idempotency key: %w", op, err)
		}
	}

	// Неизвестный способ оплаты отклоняется до любых денежных действий
	gw, err := s.gateways.Resolve(req.Method)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Warn("unsupported payment method")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Вызов шлюза — единственная точка внешнего ожидания, поэтому он
	// ограничен собственным дедлайном; его превышение — ошибка
	// инфраструктуры, запись при этом не создаётся
	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	result, err := gw.ProcessPayment(gwCtx, gateway.Request{
		OrderNumber:     order.OrderNumber,
		Amount:          order.TotalAmount,
		CardNumber:      req.CardNumber,
		CardExpiryMonth: req.CardExpiryMonth,
		CardExpiryYear:  req.CardExpiryYear,
		CardCVV:         req.CardCVV,
		WalletEmail:     req.WalletEmail,
		AccountNumber:   req.AccountNumber,
		Token:           req.Token,
	})
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("gateway call failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %v", op, ErrGatewayUnavailable, err)
	}

	details, err := json.Marshal(result.Metadata)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		return nil, fmt.Errorf("%s: failed to serialize transaction details: %w", op, err)
	}

	payment := &models.Payment{
		OrderID:   order.ID,
		PaymentID: result.PaymentID,
		Status:    result.Status,
		Method:    req.Method,
		// сумма всегда берётся из заказа, а не из запроса клиента
		Amount:             order.TotalAmount,
		TransactionDetails: string(details),
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		payment.IdempotencyKey = &key
	}

	created, err := s.paymentRepo.CreatePaymentTx(ctx, tx, payment)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("transaction rollback failed", slog.Any("error", rbErr))
		}
		logger.Error("failed to create payment record", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create payment record: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	// аудит попытки: только маскированные данные из метаданных шлюза
	logger.Info("payment attempt recorded",
		slog.String("paymentID", created.PaymentID),
		slog.String("status", string(created.Status)),
		slog.String("amount", created.Amount.String()),
	)
	return created, nil
}

// GetPayment возвращает сохранённую запись и живой статус от шлюза.
// Если шлюз недоступен, статус деградирует до сохранённого в записи.
func (s *paymentService) GetPayment(ctx context.Context, userID, paymentID int64) (*models.Payment, *gateway.Result, error) {
	const op = "service.PaymentService.GetPayment"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("paymentID", paymentID))

	payment, err := s.paymentRepo.GetPaymentForUser(ctx, paymentID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrPaymentNotFound) {
			return nil, nil, fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
		}
		return nil, nil, fmt.Errorf("%s: failed to get payment: %w", op, err)
	}

	gw, err := s.gateways.Resolve(payment.Method)
	if err != nil {
		logger.Warn("stored method no longer resolvable", slog.Any("error", err))
		return payment, s.fallbackStatus(payment), nil
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	status, err := gw.GetStatus(gwCtx, payment.PaymentID)
	if err != nil {
		logger.Warn("failed to get live status from gateway", slog.Any("error", err))
		return payment, s.fallbackStatus(payment), nil
	}
	return payment, status, nil
}

func (s *paymentService) ListPayments(ctx context.Context, userID int64) ([]*models.Payment, error) {
	const op = "service.PaymentService.ListPayments"

	payments, err := s.paymentRepo.ListPaymentsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list payments: %w", op, err)
	}
	return payments, nil
}

// Refund выполняет возврат через шлюз, выдавший платёж.
// Сохранённая запись об оплате при этом не изменяется.
func (s *paymentService) Refund(ctx context.Context, userID, paymentID int64) (*gateway.Result, error) {
	const op = "service.PaymentService.Refund"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("paymentID", paymentID))

	payment, err := s.paymentRepo.GetPaymentForUser(ctx, paymentID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrPaymentNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("%s: failed to get payment: %w", op, err)
	}

	gw, err := s.gateways.Resolve(payment.Method)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	result, err := gw.Refund(gwCtx, payment.PaymentID)
	if err != nil {
		logger.Error("refund call failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w: %v", op, ErrGatewayUnavailable, err)
	}

	logger.Info("refund processed", slog.String("status", string(result.Status)))
	return result, nil
}

// lockOrderForPayment берёт блокировку заказа и проверяет владение и допуск к оплате
func (s *paymentService) lockOrderForPayment(ctx context.Context, tx *sql.Tx, userID, orderID int64, logger *slog.Logger, op string) (*models.Order, error) {
	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrOrderNotFound)
		}
		if errors.Is(err, storage.ErrOrderLocked) {
			logger.Warn("concurrent payment attempt rejected")
			return nil, &StateConflictError{Rule: "payment already in progress for this order"}
		}
		logger.Error("failed to lock order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock order: %w", op, err)
	}

	if order.UserID != userID {
		logger.Warn("order belongs to another user")
		return nil, fmt.Errorf("%s: %w", op, ErrNotOrderOwner)
	}

	if !order.CanProcessPayment() {
		logger.Warn("order is not eligible for payment", slog.String("status", string(order.Status)))
		return nil, &StateConflictError{Rule: "payment can only be processed for confirmed orders", Status: order.Status}
	}
	return order, nil
}

// fallbackStatus строит ответ о статусе из сохранённой записи,
// когда живой опрос шлюза невозможен
func (s *paymentService) fallbackStatus(payment *models.Payment) *gateway.Result {
	return &gateway.Result{
		PaymentID: payment.PaymentID,
		Status:    payment.Status,
		Message:   "Unable to get live status from gateway",
	}
}
