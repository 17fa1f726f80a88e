package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus — статус жизненного цикла заказа
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order представляет заказ пользователя с позициями
type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	OrderNumber     string          `json:"order_number"`
	ShippingAddress string          `json:"shipping_address"`
	BillingAddress  string          `json:"billing_address"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	Notes           string          `json:"notes,omitempty"`
	Items           []*OrderItem    `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem — позиция заказа; создаётся только вместе с заказом и далее неизменна
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"` // quantity * unit_price
	CreatedAt   time.Time       `json:"created_at"`
}

// CanProcessPayment возвращает true, если по заказу можно инициировать оплату.
// Единственное правило допуска: статус заказа должен быть confirmed.
func (o *Order) CanProcessPayment() bool {
	return o.Status == OrderStatusConfirmed
}

// CanUpdate возвращает true, если поля заказа ещё можно менять (только pending)
func (o *Order) CanUpdate() bool {
	return o.Status == OrderStatusPending
}

// CanTransitionTo проверяет допустимость перехода статуса.
// Разрешено: pending -> confirmed, pending -> cancelled, confirmed -> cancelled.
// Из cancelled переходов нет.
func (o *Order) CanTransitionTo(next OrderStatus) bool {
	switch o.Status {
	case OrderStatusPending:
		return next == OrderStatusConfirmed || next == OrderStatusCancelled
	case OrderStatusConfirmed:
		return next == OrderStatusCancelled
	default:
		return false
	}
}
