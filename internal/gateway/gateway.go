package gateway

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/linemk/order-payments/internal/domain/models"
	"github.com/shopspring/decimal"
)

// Закрытый набор поддерживаемых способов оплаты
const (
	MethodCard         = "card"
	MethodWallet       = "wallet"
	MethodBankTransfer = "bank-transfer"
	MethodHostedToken  = "hosted-token"
)

// Request — данные одной попытки оплаты. Обязательность полей,
// специфичных для метода, проверяется вызывающей стороной до диспетчеризации.
type Request struct {
	OrderNumber     string
	Amount          decimal.Decimal
	CardNumber      string
	CardExpiryMonth string
	CardExpiryYear  string
	CardCVV         string
	WalletEmail     string
	AccountNumber   string
	Token           string
}

// Result — итог одного обращения к шлюзу.
// Статус failed — нормальный бизнес-результат, а не ошибка инфраструктуры.
type Result struct {
	PaymentID string               `json:"payment_id"`
	Status    models.PaymentStatus `json:"status"`
	Message   string               `json:"message"`
	Metadata  map[string]string    `json:"metadata,omitempty"`
}

// Gateway — единый контракт платёжного шлюза. Каждый вариант инкапсулирует
// одну внешнюю границу; здесь она имитируется задержкой и случайным исходом.
type Gateway interface {
	// ProcessPayment выполняет одну попытку оплаты
	ProcessPayment(ctx context.Context, req Request) (*Result, error)
	// GetStatus возвращает статус ранее выданного платежа
	GetStatus(ctx context.Context, paymentID string) (*Result, error)
	// Refund выполняет возврат по ранее выданному платежу
	Refund(ctx context.Context, paymentID string) (*Result, error)
}

// RandSource — источник случайности для имитации исхода оплаты.
// В тестах подменяется детерминированной реализацией.
type RandSource interface {
	Float64() float64
}

// systemRand использует общий генератор math/rand (безопасен для конкурентного вызова)
type systemRand struct{}

func (systemRand) Float64() float64 { return rand.Float64() }

// baseGateway — общая часть всех вариантов: имя, задержка, источник случайности
type baseGateway struct {
	name    string
	sandbox bool
	latency time.Duration
	rnd     RandSource
}

func newBaseGateway(name string, sandbox bool, latency time.Duration, rnd RandSource) baseGateway {
	if rnd == nil {
		rnd = systemRand{}
	}
	return baseGateway{name: name, sandbox: sandbox, latency: latency, rnd: rnd}
}

// simulateLatency имитирует сетевой вызов. Отмена/дедлайн контекста
// прерывает ожидание и возвращает ошибку инфраструктуры, а не результат.
func (g *baseGateway) simulateLatency(ctx context.Context) error {
	if g.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(g.latency)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// succeeds возвращает исход попытки с заданной вероятностью успеха
func (g *baseGateway) succeeds(rate float64) bool {
	return g.rnd.Float64() < rate
}

// newPaymentID генерирует уникальный внешний идентификатор платежа
func newPaymentID() string {
	return "payment_" + uuid.NewString()
}

// maskLastFour оставляет только последние четыре символа значения
func maskLastFour(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
