package usecase

import (
	"time"

	"github.com/google/uuid"

	"fragransia-payments/internal/domain"
)

type OrderService struct {
	Repo OrderRepo
}

// Create records a checkout as a pending order with its pricing breakdown.
// Totals are computed server-side from the line items.
func (s *OrderService) Create(userID string, items []domain.OrderItem, shippingPaise, taxPaise int64, currency string) (*domain.Order, error) {
	if userID == "" {
		return nil, ErrBadRequest("user required")
	}
	if len(items) == 0 {
		return nil, ErrBadRequest("at least one line item required")
	}
	var subtotal int64
	for _, it := range items {
		if it.ProductID == "" || it.Qty <= 0 || it.UnitPaise <= 0 {
			return nil, ErrBadRequest("invalid line item")
		}
		subtotal += int64(it.Qty) * it.UnitPaise
	}
	if shippingPaise < 0 || taxPaise < 0 {
		return nil, ErrBadRequest("negative pricing component")
	}
	if currency == "" {
		currency = "INR"
	}
	now := time.Now().UTC()
	o := &domain.Order{
		OrderID: uuid.NewString(),
		UserID:  userID,
		Items:   items,
		Status:  domain.OrderPending,
		Pricing: domain.Pricing{
			SubtotalPaise: subtotal,
			ShippingPaise: shippingPaise,
			TaxPaise:      taxPaise,
			TotalPaise:    subtotal + shippingPaise + taxPaise,
			Currency:      currency,
		},
		Payment:   domain.PaymentInfo{Status: domain.PaymentPending},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.PutOrder(o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetForUser returns the order only to its owner.
func (s *OrderService) GetForUser(orderID, userID string) (*domain.Order, error) {
	o, ok := s.Repo.GetOrder(orderID)
	if !ok || o.UserID != userID {
		return nil, ErrNotFound("order")
	}
	return o, nil
}
