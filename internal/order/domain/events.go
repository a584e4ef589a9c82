package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventOrderRecorded = "OrderRecorded"

type OrderRecorded struct {
	EventID       string          `json:"event_id"`
	OrderID       int64           `json:"order_id"`
	CustomerLabel string          `json:"customer_label"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Items         []EventItem     `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
}

type EventItem struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

func NewOrderRecorded(eventID string, orderID int64, d Draft) OrderRecorded {
	items := make([]EventItem, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, EventItem(it))
	}
	return OrderRecorded{
		EventID:       eventID,
		OrderID:       orderID,
		CustomerLabel: d.CustomerLabel,
		TotalAmount:   d.TotalAmount,
		Items:         items,
		CreatedAt:     d.CreatedAt,
	}
}
