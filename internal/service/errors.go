package service

import (
	"errors"
	"fmt"

	"github.com/linemk/order-payments/internal/domain/models"
)

var (
	// ErrOrderNotFound — заказ отсутствует либо не принадлежит пользователю
	// (наружу эти случаи не различаются)
	ErrOrderNotFound = errors.New("order not found")
	// ErrPaymentNotFound — запись об оплате отсутствует либо не принадлежит пользователю
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrNotOrderOwner — заказ существует, но принадлежит другому пользователю
	ErrNotOrderOwner = errors.New("order does not belong to the user")
	// ErrGatewayUnavailable — вызов шлюза не завершился (таймаут, обрыв);
	// отличается от зафиксированного статуса failed
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// StateConflictError — действие запрещено текущим состоянием заказа.
// Наружу отдаётся нарушенное правило и текущий статус.
type StateConflictError struct {
	Rule   string
	Status models.OrderStatus
}

func (e *StateConflictError) Error() string {
	if e.Status == "" {
		return e.Rule
	}
	return fmt.Sprintf("%s (current status: %s)", e.Rule, e.Status)
}
