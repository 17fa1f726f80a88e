package gateway

import (
	"context"
	"time"

	"github.com/linemk/order-payments/internal/config"
	"github.com/linemk/order-payments/internal/domain/models"
)

// вероятность успешного списания по карте
const cardSuccessRate = 0.8

// CardGateway имитирует процессинг банковских карт.
// В метаданные попадают только последние четыре цифры номера карты, CVV не сохраняется.
type CardGateway struct {
	baseGateway
}

var _ Gateway = (*CardGateway)(nil)

func NewCardGateway(cfg config.GatewayConfig, latency time.Duration, rnd RandSource) *CardGateway {
	return &CardGateway{baseGateway: newBaseGateway(MethodCard, cfg.Sandbox(), latency, rnd)}
}

func (g *CardGateway) ProcessPayment(ctx context.Context, req Request) (*Result, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return nil, err
	}

	status := models.PaymentStatusFailed
	message := "Credit card payment failed"
	if g.succeeds(cardSuccessRate) {
		status = models.PaymentStatusSuccessful
		message = "Payment processed successfully"
	}

	return &Result{
		PaymentID: newPaymentID(),
		Status:    status,
		Message:   message,
		Metadata: map[string]string{
			"processor":      "Card Gateway",
			"timestamp":      nowTimestamp(),
			"card_last_four": maskLastFour(req.CardNumber),
		},
	}, nil
}

// GetStatus не делает реального запроса к процессингу и всегда отвечает successful
func (g *CardGateway) GetStatus(ctx context.Context, paymentID string) (*Result, error) {
	return &Result{
		PaymentID: paymentID,
		Status:    models.PaymentStatusSuccessful,
		Message:   "Payment processed successfully",
		Metadata:  map[string]string{"timestamp": nowTimestamp()},
	}, nil
}

func (g *CardGateway) Refund(ctx context.Context, paymentID string) (*Result, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return nil, err
	}
	return &Result{
		PaymentID: paymentID,
		Status:    models.PaymentStatusSuccessful,
		Message:   "Card refund processed successfully",
		Metadata:  map[string]string{"processor": "Card Gateway", "timestamp": nowTimestamp()},
	}, nil
}
