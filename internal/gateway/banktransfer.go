package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/linemk/order-payments/internal/config"
	"github.com/linemk/order-payments/internal/domain/models"
)

// вероятность успешного банковского перевода
const bankTransferSuccessRate = 0.7

// BankTransferGateway имитирует оплату банковским переводом.
// Номер счёта сохраняется только последними четырьмя символами.
type BankTransferGateway struct {
	baseGateway
}

var _ Gateway = (*BankTransferGateway)(nil)

func NewBankTransferGateway(cfg config.GatewayConfig, latency time.Duration, rnd RandSource) *BankTransferGateway {
	return &BankTransferGateway{baseGateway: newBaseGateway(MethodBankTransfer, cfg.Sandbox(), latency, rnd)}
}

func (g *BankTransferGateway) ProcessPayment(ctx context.Context, req Request) (*Result, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return nil, err
	}

	status := models.PaymentStatusFailed
	message := "Bank transfer failed"
	if g.succeeds(bankTransferSuccessRate) {
		status = models.PaymentStatusSuccessful
		message = "Bank transfer processed successfully"
	}

	return &Result{
		PaymentID: newPaymentID(),
		Status:    status,
		Message:   message,
		Metadata: map[string]string{
			"processor":    "Bank Transfer Gateway",
			"timestamp":    nowTimestamp(),
			"bank_account": maskLastFour(req.AccountNumber),
			"reference":    fmt.Sprintf("REF-%05d", rand.Intn(100000)),
		},
	}, nil
}

// GetStatus не делает реального запроса к банку и всегда отвечает successful
func (g *BankTransferGateway) GetStatus(ctx context.Context, paymentID string) (*Result, error) {
	return &Result{
		PaymentID: paymentID,
		Status:    models.PaymentStatusSuccessful,
		Message:   "Bank transfer processed successfully",
		Metadata:  map[string]string{"timestamp": nowTimestamp()},
	}, nil
}

// Refund для банковских переводов автоматически не выполняется:
// возврат оформляется вручную, поэтому всегда возвращается failed
func (g *BankTransferGateway) Refund(ctx context.Context, paymentID string) (*Result, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return nil, err
	}
	return &Result{
		PaymentID: paymentID,
		Status:    models.PaymentStatusFailed,
		Message:   "Bank transfer refunds require manual processing",
		Metadata:  map[string]string{"processor": "Bank Transfer Gateway", "timestamp": nowTimestamp()},
	}, nil
}
