package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fragransia-payments/internal/domain"
	"fragransia-payments/internal/infrastructure/razorpay"
)

type OrderRepo interface {
	PutOrder(*domain.Order) error
	GetOrder(id string) (*domain.Order, bool)
	// ConfirmPayment transitions the order to confirmed/paid and stamps the
	// provider ids, but only while the payment is still pending or failed.
	// Returns false when the order was already paid.
	ConfirmPayment(orderID, providerOrderID, providerPaymentID string) (bool, error)
	SetPaymentStatus(orderID string, st domain.PaymentStatus) error
}

type TransactionRepo interface {
	// InsertTransaction appends the record unless one already exists for the
	// same (provider order id, provider payment id) pair; returns false on
	// the duplicate, which is the replay signal.
	InsertTransaction(*domain.Transaction) (bool, error)
	GetByProviderPaymentID(providerPaymentID string) (*domain.Transaction, bool)
	SetStatus(txnID string, st domain.TransactionStatus) error
}

type RefundRepo interface {
	PutRefund(*domain.Refund) error
	GetRefund(id string) (*domain.Refund, bool)
	// RefundedPaise sums non-failed refund amounts against a provider payment.
	RefundedPaise(providerPaymentID string) (int64, error)
}

type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (razorpay.Order, error)
	CreateRefund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (razorpay.Refund, error)
	FetchRefund(ctx context.Context, refundID string) (razorpay.Refund, error)
}

type AuditWriter interface {
	Write(orderID, kind string, payload []byte) error
}

type PaymentService struct {
	Orders  OrderRepo
	Txns    TransactionRepo
	Refunds RefundRepo
	Gateway Gateway
	Audit   AuditWriter
	// Secret is the gateway key secret used to recompute callback signatures.
	Secret string
	Log    *slog.Logger
}

func (s *PaymentService) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// CreateProviderOrder creates the gateway-side order for a local order and
// stamps the provider order id onto it. Only the order's owner may start a
// payment. amount must match the order total when given; zero means "use the
// order total".
func (s *PaymentService) CreateProviderOrder(ctx context.Context, orderID, userID string, amount int64, currency, receipt string, notes map[string]string) (razorpay.Order, error) {
	o, ok := s.Orders.GetOrder(orderID)
	if !ok || (userID != "" && o.UserID != userID) {
		return razorpay.Order{}, ErrNotFound("order")
	}
	if !o.Payable() {
		return razorpay.Order{}, ErrConflict("order is not payable")
	}
	if amount == 0 {
		amount = o.Pricing.TotalPaise
	}
	if amount != o.Pricing.TotalPaise {
		return razorpay.Order{}, ErrBadRequest("amount does not match order total")
	}
	if currency == "" {
		currency = o.Pricing.Currency
	}
	if receipt == "" {
		receipt = o.OrderID
	}
	if notes == nil {
		notes = map[string]string{}
	}
	notes["order_id"] = o.OrderID
	notes["user_id"] = o.UserID

	po, err := s.Gateway.CreateOrder(ctx, amount, currency, receipt, notes)
	if err != nil {
		s.log().Error("gateway order creation failed", "orderId", orderID, "err", err)
		return razorpay.Order{}, &GatewayError{Op: "create order", Err: err}
	}
	s.audit(o.OrderID, "provider_order", po)

	o.Payment.Method = "razorpay"
	o.Payment.ProviderOrderID = po.ID
	o.UpdatedAt = time.Now().UTC()
	if err := s.Orders.PutOrder(o); err != nil {
		return razorpay.Order{}, err
	}
	s.log().Info("provider order created", "orderId", o.OrderID, "providerOrderId", po.ID, "amount", po.Amount, "currency", po.Currency)
	return po, nil
}

// VerifyPayment validates a signed payment callback and settles the order
// exactly once. Replays of an already-verified callback return the confirmed
// order with no further writes.
func (s *PaymentService) VerifyPayment(ctx context.Context, providerOrderID, providerPaymentID, signature, orderID, userID string) (*domain.Order, error) {
	o, ok := s.Orders.GetOrder(orderID)
	if !ok || (userID != "" && o.UserID != userID) {
		return nil, ErrNotFound("order")
	}
	if !razorpay.VerifyPaymentSignature(providerOrderID, providerPaymentID, signature, s.Secret) {
		s.audit(orderID, "verify_rejected", map[string]string{
			"razorpay_order_id":   providerOrderID,
			"razorpay_payment_id": providerPaymentID,
			"razorpay_signature":  signature,
		})
		if o.Payment.Status == domain.PaymentPending {
			_ = s.Orders.SetPaymentStatus(orderID, domain.PaymentFailed)
		}
		s.log().Warn("payment signature mismatch, flag for fraud review",
			"orderId", orderID, "providerOrderId", providerOrderID, "providerPaymentId", providerPaymentID)
		return nil, &ErrInvalidSignature{OrderID: orderID, ProviderOrderID: providerOrderID, ProviderPaymentID: providerPaymentID}
	}
	// The callback must be bound to the provider order stamped on this
	// order at creation time; a signature minted for a different order's
	// provider pair must never settle this one.
	if o.Payment.ProviderOrderID == "" || o.Payment.ProviderOrderID != providerOrderID {
		return nil, ErrConflict("provider order does not belong to this order")
	}

	updated, err := s.Orders.ConfirmPayment(orderID, providerOrderID, providerPaymentID)
	if err != nil {
		return nil, err
	}
	if !updated {
		cur, ok := s.Orders.GetOrder(orderID)
		if !ok {
			return nil, ErrNotFound("order")
		}
		if cur.Payment.ProviderPaymentID == providerPaymentID {
			s.log().Info("verify replay, no-op", "orderId", orderID, "providerPaymentId", providerPaymentID)
			return cur, nil
		}
		return nil, ErrConflict("order already paid by a different payment")
	}

	txn := &domain.Transaction{
		TxnID:             uuid.NewString(),
		OrderID:           o.OrderID,
		UserID:            o.UserID,
		ProviderOrderID:   providerOrderID,
		ProviderPaymentID: providerPaymentID,
		ProviderSignature: signature,
		AmountPaise:       o.Pricing.TotalPaise,
		Currency:          o.Pricing.Currency,
		Status:            domain.TxnCaptured,
		CreatedAt:         time.Now().UTC(),
	}
	inserted, err := s.Txns.InsertTransaction(txn)
	if err != nil {
		return nil, err
	}
	cur, ok := s.Orders.GetOrder(orderID)
	if !ok {
		return nil, ErrNotFound("order")
	}
	if !inserted {
		// The pair was already recorded. Benign only when the existing
		// transaction settled this same order (a concurrent duplicate
		// callback); anything else is a cross-order replay.
		prior, ok := s.Txns.GetByProviderPaymentID(providerPaymentID)
		if !ok || prior.OrderID != orderID {
			s.log().Warn("payment already captured against a different order, flag for fraud review",
				"orderId", orderID, "providerPaymentId", providerPaymentID)
			return nil, ErrConflict("payment already captured against a different order")
		}
		s.log().Info("verify raced, transaction already recorded", "orderId", orderID, "providerPaymentId", providerPaymentID)
		return cur, nil
	}
	s.audit(orderID, "verify_ok", txn)
	s.log().Info("payment captured", "orderId", orderID, "txnId", txn.TxnID,
		"providerOrderId", providerOrderID, "providerPaymentId", providerPaymentID, "amount", txn.AmountPaise)
	return cur, nil
}

// InitiateRefund refunds part or all of a captured payment. amount <= 0 means
// the remaining refundable balance; amounts above that balance are rejected,
// never clamped.
func (s *PaymentService) InitiateRefund(ctx context.Context, providerPaymentID string, amount int64, reason, actor string) (*domain.Refund, error) {
	txn, ok := s.Txns.GetByProviderPaymentID(providerPaymentID)
	if !ok {
		return nil, ErrNotFound("transaction")
	}
	if txn.Status == domain.TxnFailed {
		return nil, ErrConflict("cannot refund a failed transaction")
	}
	already, err := s.Refunds.RefundedPaise(providerPaymentID)
	if err != nil {
		return nil, err
	}
	refundable := txn.AmountPaise - already
	if refundable <= 0 {
		return nil, ErrConflict("payment already fully refunded")
	}
	if amount <= 0 {
		amount = refundable
	}
	if amount > refundable {
		return nil, ErrBadRequest("refund amount exceeds refundable balance")
	}

	gw, err := s.Gateway.CreateRefund(ctx, providerPaymentID, amount, map[string]string{
		"order_id": txn.OrderID,
		"reason":   reason,
	})
	if err != nil {
		s.log().Error("gateway refund failed", "orderId", txn.OrderID, "providerPaymentId", providerPaymentID, "err", err)
		return nil, &GatewayError{Op: "create refund", Err: err}
	}
	payload, _ := json.Marshal(gw)
	now := time.Now().UTC()
	ref := &domain.Refund{
		RefundID:          uuid.NewString(),
		TxnID:             txn.TxnID,
		ProviderPaymentID: providerPaymentID,
		ProviderRefundID:  gw.ID,
		AmountPaise:       gw.Amount,
		Status:            refundStatusOf(gw.Status),
		Reason:            reason,
		Actor:             actor,
		ProviderPayload:   string(payload),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if ref.AmountPaise == 0 {
		ref.AmountPaise = amount
	}
	if err := s.Refunds.PutRefund(ref); err != nil {
		return nil, err
	}
	s.audit(txn.OrderID, "refund", gw)

	if already+ref.AmountPaise >= txn.AmountPaise {
		_ = s.Txns.SetStatus(txn.TxnID, domain.TxnRefunded)
		_ = s.Orders.SetPaymentStatus(txn.OrderID, domain.PaymentRefunded)
	}
	s.log().Info("refund initiated", "orderId", txn.OrderID, "refundId", ref.RefundID,
		"providerRefundId", gw.ID, "amount", ref.AmountPaise, "actor", actor)
	return ref, nil
}

// RefundStatus re-fetches the gateway's view of a refund and reconciles the
// local record if it drifted.
func (s *PaymentService) RefundStatus(ctx context.Context, refundID string) (*domain.Refund, error) {
	ref, ok := s.Refunds.GetRefund(refundID)
	if !ok {
		return nil, ErrNotFound("refund")
	}
	gw, err := s.Gateway.FetchRefund(ctx, ref.ProviderRefundID)
	if err != nil {
		return nil, &GatewayError{Op: "fetch refund", Err: err}
	}
	if st := refundStatusOf(gw.Status); st != ref.Status {
		s.log().Info("refund status drifted, reconciling", "refundId", ref.RefundID, "local", ref.Status, "gateway", st)
		ref.Status = st
		payload, _ := json.Marshal(gw)
		ref.ProviderPayload = string(payload)
		ref.UpdatedAt = time.Now().UTC()
		if err := s.Refunds.PutRefund(ref); err != nil {
			return nil, err
		}
	}
	return ref, nil
}

func refundStatusOf(gatewayStatus string) domain.RefundStatus {
	switch gatewayStatus {
	case "processed":
		return domain.RefundProcessed
	case "failed":
		return domain.RefundFailed
	default:
		return domain.RefundPending
	}
}

func (s *PaymentService) audit(orderID, kind string, v any) {
	if s.Audit == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.Audit.Write(orderID, kind, payload); err != nil {
		s.log().Warn("audit write failed", "orderId", orderID, "kind", kind, "err", err)
	}
}
