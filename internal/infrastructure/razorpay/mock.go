package razorpay

import (
	"context"
	"crypto/rand"
	"strconv"
	"sync"
	"time"
)

// Mock is an in-process stand-in for the gateway, selected by config in dev
// and used by tests. Ids follow the gateway's prefixes and callbacks signed
// with the configured secret verify end to end.
type Mock struct {
	Secret string

	mu      sync.Mutex
	orders  map[string]Order
	refunds map[string]Refund
}

func NewMock(secret string) *Mock {
	return &Mock{
		Secret:  secret,
		orders:  map[string]Order{},
		refunds: map[string]Refund{},
	}
}

func (m *Mock) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (Order, error) {
	o := Order{
		ID:       "order_" + randomToken(14),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
		Notes:    notes,
	}
	m.mu.Lock()
	m.orders[o.ID] = o
	m.mu.Unlock()
	return o, nil
}

func (m *Mock) CreateRefund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (Refund, error) {
	r := Refund{
		ID:        "rfnd_" + randomToken(14),
		PaymentID: paymentID,
		Amount:    amount,
		Currency:  "INR",
		Status:    "processed",
		Notes:     notes,
		CreatedAt: time.Now().Unix(),
	}
	m.mu.Lock()
	m.refunds[r.ID] = r
	m.mu.Unlock()
	return r, nil
}

func (m *Mock) FetchRefund(ctx context.Context, refundID string) (Refund, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.refunds[refundID]
	if !ok {
		return Refund{}, &APIError{StatusCode: 404, Body: `{"error":{"code":"BAD_REQUEST_ERROR","description":"refund not found"}}`}
	}
	return r, nil
}

// SetRefundStatus lets dev tooling and tests simulate the gateway moving a
// refund after creation.
func (m *Mock) SetRefundStatus(refundID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.refunds[refundID]; ok {
		r.Status = status
		m.refunds[refundID] = r
	}
}

// SignPayment mints a valid callback signature for a simulated payment.
func (m *Mock) SignPayment(orderID, paymentID string) string {
	return PaymentSignature(orderID, paymentID, m.Secret)
}

func randomToken(n int) string {
	const letters = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b)
}
