package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderPlacedEvent carries everything needed to render the order summary
// without reading the store again.
type OrderPlacedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber int64           `json:"order_number"`
	UserID      uuid.UUID       `json:"user_id"`
	StoreName   string          `json:"store_name"`
	StoreEmail  string          `json:"store_email"`
	Address     Address         `json:"address"`
	Lines       []OrderLine     `json:"lines"`
	Total       decimal.Decimal `json:"total"`
	PlacedAt    time.Time       `json:"placed_at"`
}

func NewOrderPlacedEvent(order Order, user User) OrderPlacedEvent {
	return OrderPlacedEvent{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		UserID:      order.UserID,
		StoreName:   user.StoreName,
		StoreEmail:  user.Email,
		Address:     user.Address,
		Lines:       order.Lines,
		Total:       order.Total,
		PlacedAt:    order.CreatedAt,
	}
}

func (OrderPlacedEvent) EventType() string { return "order.placed" }
