package gateway

import (
	"context"
	"time"

	"github.com/linemk/order-payments/internal/config"
	"github.com/linemk/order-payments/internal/domain/models"
)

// вероятность успешной оплаты по токену hosted-checkout
const hostedTokenSuccessRate = 0.9

// HostedTokenGateway имитирует оплату по токену, выданному внешней hosted-страницей
type HostedTokenGateway struct {
	baseGateway
}

var _ Gateway = (*HostedTokenGateway)(nil)

func NewHostedTokenGateway(cfg config.GatewayConfig, latency time.Duration, rnd RandSource) *HostedTokenGateway {
	return &HostedTokenGateway{baseGateway: newBaseGateway(MethodHostedToken, cfg.Sandbox(), latency, rnd)}
}

func (g *HostedTokenGateway) ProcessPayment(ctx context.Context, req Request) (*Result, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return nil, err
	}

	status := models.PaymentStatusFailed
	message := "Hosted checkout payment failed"
	if g.succeeds(hostedTokenSuccessRate) {
		status = models.PaymentStatusSuccessful
		message = "Hosted checkout payment processed successfully"
	}

	return &Result{
		PaymentID: newPaymentID(),
		Status:    status,
		Message:   message,
		Metadata: map[string]string{
			"processor": "Hosted Token Gateway",
			"timestamp": nowTimestamp(),
			"token":     req.Token,
		},
	}, nil
}

// GetStatus не делает реального запроса к провайдеру и всегда отвечает successful
func (g *HostedTokenGateway) GetStatus(ctx context.Context, paymentID string) (*Result, error) {
	return &Result{
		PaymentID: paymentID,
		Status:    models.PaymentStatusSuccessful,
		Message:   "Hosted checkout payment processed successfully",
		Metadata:  map[string]string{"timestamp": nowTimestamp()},
	}, nil
}

func (g *HostedTokenGateway) Refund(ctx context.Context, paymentID string) (*Result, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return nil, err
	}
	return &Result{
		PaymentID: paymentID,
		Status:    models.PaymentStatusSuccessful,
		Message:   "Hosted checkout refund processed successfully",
		Metadata:  map[string]string{"processor": "Hosted Token Gateway", "timestamp": nowTimestamp()},
	}, nil
}
