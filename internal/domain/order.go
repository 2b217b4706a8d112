package domain

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type OrderItem struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
	UnitPaise int64  `json:"unitPaise"`
}

type Pricing struct {
	SubtotalPaise int64  `json:"subtotalPaise"`
	ShippingPaise int64  `json:"shippingPaise"`
	TaxPaise      int64  `json:"taxPaise"`
	TotalPaise    int64  `json:"totalPaise"`
	Currency      string `json:"currency"`
}

type PaymentInfo struct {
	Method            string        `json:"method"`
	ProviderOrderID   string        `json:"providerOrderId"`
	ProviderPaymentID string        `json:"providerPaymentId"`
	Status            PaymentStatus `json:"status"`
}

type Order struct {
	OrderID   string      `json:"orderId"`
	UserID    string      `json:"userId"`
	Items     []OrderItem `json:"items"`
	Status    OrderStatus `json:"status"`
	Pricing   Pricing     `json:"pricing"`
	Payment   PaymentInfo `json:"payment"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Payable reports whether a gateway order may still be created or a callback
// verified against this order. paid is terminal for the confirm path; failed
// stays payable so a genuine callback after a rejected one can still land.
func (o *Order) Payable() bool {
	if o.Status == OrderCancelled {
		return false
	}
	return o.Payment.Status == PaymentPending || o.Payment.Status == PaymentFailed
}
