package gateway

import (
	"context"
	"time"

	"github.com/linemk/order-payments/internal/config"
	"github.com/linemk/order-payments/internal/domain/models"
)

// вероятность успешной оплаты через электронный кошелёк
const walletSuccessRate = 0.9

// WalletGateway имитирует оплату через электронный кошелёк (по email)
type WalletGateway struct {
	baseGateway
}

var _ Gateway = (*WalletGateway)(nil)

func NewWalletGateway(cfg config.GatewayConfig, latency time.Duration, rnd RandSource) *WalletGateway {
	return &WalletGateway{baseGateway: newBaseGateway(MethodWallet, cfg.Sandbox(), latency, rnd)}
}

func (g *WalletGateway) ProcessPayment(ctx context.Context, req Request) (*Result, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return nil, err
	}

	status := models.PaymentStatusFailed
	message := "Wallet payment failed"
	if g.succeeds(walletSuccessRate) {
		status = models.PaymentStatusSuccessful
		message = "Wallet payment processed successfully"
	}

	return &Result{
		PaymentID: newPaymentID(),
		Status:    status,
		Message:   message,
		Metadata: map[string]string{
			"processor":    "Wallet Gateway",
			"timestamp":    nowTimestamp(),
			"wallet_email": req.WalletEmail,
		},
	}, nil
}

// GetStatus не делает реального запроса к провайдеру и всегда отвечает successful
func (g *WalletGateway) GetStatus(ctx context.Context, paymentID string) (*Result, error) {
	return &Result{
		PaymentID: paymentID,
		Status:    models.PaymentStatusSuccessful,
		Message:   "Wallet payment processed successfully",
		Metadata:  map[string]string{"timestamp": nowTimestamp()},
	}, nil
}

func (g *WalletGateway) Refund(ctx context.Context, paymentID string) (*Result, error) {
	if err := g.simulateLatency(ctx); err != nil {
		return nil, err
	}
	return &Result{
		PaymentID: paymentID,
		Status:    models.PaymentStatusSuccessful,
		Message:   "Wallet refund processed successfully",
		Metadata:  map[string]string{"processor": "Wallet Gateway", "timestamp": nowTimestamp()},
	}, nil
}
