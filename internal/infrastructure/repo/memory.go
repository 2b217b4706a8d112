package repo

import (
	"errors"
	"sync"
	"time"

	"fragransia-payments/internal/domain"
)

var errMissing = errors.New("record missing")

type MemoryOrderRepo struct {
	mu sync.RWMutex
	m  map[string]*domain.Order
}

func NewMemoryOrderRepo() *MemoryOrderRepo {
	return &MemoryOrderRepo{m: make(map[string]*domain.Order)}
}

// copyOrder clones the order including its line items so a caller mutating
// the returned value never writes through to the stored one.
func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	if o.Items != nil {
		cp.Items = make([]domain.OrderItem, len(o.Items))
		copy(cp.Items, o.Items)
	}
	return &cp
}

func (r *MemoryOrderRepo) PutOrder(o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[o.OrderID] = copyOrder(o)
	return nil
}

func (r *MemoryOrderRepo) GetOrder(id string) (*domain.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.m[id]
	if !ok {
		return nil, false
	}
	return copyOrder(o), true
}

func (r *MemoryOrderRepo) ConfirmPayment(orderID, providerOrderID, providerPaymentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.m[orderID]
	if !ok {
		return false, errMissing
	}
	if o.Payment.Status != domain.PaymentPending && o.Payment.Status != domain.PaymentFailed {
		return false, nil
	}
	o.Status = domain.OrderConfirmed
	o.Payment.Status = domain.PaymentPaid
	o.Payment.Method = "razorpay"
	o.Payment.ProviderOrderID = providerOrderID
	o.Payment.ProviderPaymentID = providerPaymentID
	o.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryOrderRepo) SetPaymentStatus(orderID string, st domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.m[orderID]
	if !ok {
		return errMissing
	}
	o.Payment.Status = st
	o.UpdatedAt = time.Now().UTC()
	return nil
}

type MemoryTxnRepo struct {
	mu     sync.RWMutex
	byID   map[string]*domain.Transaction
	byPair map[string]string
}

func NewMemoryTxnRepo() *MemoryTxnRepo {
	return &MemoryTxnRepo{byID: make(map[string]*domain.Transaction), byPair: make(map[string]string)}
}

func pairKey(providerOrderID, providerPaymentID string) string {
	return providerOrderID + "|" + providerPaymentID
}

func (r *MemoryTxnRepo) InsertTransaction(t *domain.Transaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := pairKey(t.ProviderOrderID, t.ProviderPaymentID)
	if _, dup := r.byPair[k]; dup {
		return false, nil
	}
	cp := *t
	r.byID[t.TxnID] = &cp
	r.byPair[k] = t.TxnID
	return true, nil
}

func (r *MemoryTxnRepo) GetByProviderPaymentID(providerPaymentID string) (*domain.Transaction, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.byID {
		if t.ProviderPaymentID == providerPaymentID {
			cp := *t
			return &cp, true
		}
	}
	return nil, false
}

func (r *MemoryTxnRepo) SetStatus(txnID string, st domain.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[txnID]
	if !ok {
		return errMissing
	}
	t.Status = st
	return nil
}

type MemoryRefundRepo struct {
	mu sync.RWMutex
	m  map[string]*domain.Refund
}

func NewMemoryRefundRepo() *MemoryRefundRepo {
	return &MemoryRefundRepo{m: make(map[string]*domain.Refund)}
}

func (r *MemoryRefundRepo) PutRefund(ref *domain.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ref
	r.m[ref.RefundID] = &cp
	return nil
}

func (r *MemoryRefundRepo) GetRefund(id string) (*domain.Refund, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.m[id]
	if !ok {
		return nil, false
	}
	cp := *ref
	return &cp, true
}

func (r *MemoryRefundRepo) RefundedPaise(providerPaymentID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, ref := range r.m {
		if ref.ProviderPaymentID == providerPaymentID && ref.Status != domain.RefundFailed {
			sum += ref.AmountPaise
		}
	}
	return sum, nil
}
