package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus — итог отдельной попытки оплаты
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// Payment — неизменяемая запись об одной попытке оплаты заказа.
// PaymentID выдаётся шлюзом и уникален; Amount всегда равен total_amount заказа
// на момент обработки. TransactionDetails — непрозрачные метаданные шлюза (JSON).
type Payment struct {
	ID                 int64           `json:"id"`
	OrderID            int64           `json:"order_id"`
	PaymentID          string          `json:"payment_id"`
	Status             PaymentStatus   `json:"status"`
	Method             string          `json:"payment_method"`
	Amount             decimal.Decimal `json:"amount"`
	TransactionDetails string          `json:"transaction_details,omitempty"`
	IdempotencyKey     *string         `json:"idempotency_key,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}
