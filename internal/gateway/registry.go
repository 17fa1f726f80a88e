package gateway

import (
	"errors"
	"fmt"

	"github.com/linemk/order-payments/internal/config"
)

var ErrUnsupportedMethod = errors.New("unsupported payment method")

// Registry сопоставляет тег способа оплаты с экземпляром шлюза.
// Карта заполняется один раз при создании и далее только читается,
// поэтому Resolve безопасен для конкурентного вызова.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry собирает реестр из конфигурации со штатным источником случайности
func NewRegistry(cfg config.GatewaysConfig) *Registry {
	return &Registry{
		gateways: map[string]Gateway{
			MethodCard:         NewCardGateway(cfg.Card, cfg.Latency, nil),
			MethodWallet:       NewWalletGateway(cfg.Wallet, cfg.Latency, nil),
			MethodBankTransfer: NewBankTransferGateway(cfg.BankTransfer, cfg.Latency, nil),
			MethodHostedToken:  NewHostedTokenGateway(cfg.HostedToken, cfg.Latency, nil),
		},
	}
}

// Resolve возвращает шлюз по тегу способа оплаты. Неизвестный тег
// (в том числе пустая строка и другой регистр) отклоняется до любых
// денежных действий.
func (r *Registry) Resolve(method string) (Gateway, error) {
	gw, ok := r.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	return gw, nil
}
