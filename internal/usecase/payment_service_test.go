package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fragransia-payments/internal/domain"
	"fragransia-payments/internal/infrastructure/razorpay"
	"fragransia-payments/internal/infrastructure/repo"
)

const testSecret = "test_key_secret"

type failingGateway struct {
	err error
}

func (g *failingGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (razorpay.Order, error) {
	return razorpay.Order{}, g.err
}
func (g *failingGateway) CreateRefund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (razorpay.Refund, error) {
	return razorpay.Refund{}, g.err
}
func (g *failingGateway) FetchRefund(ctx context.Context, refundID string) (razorpay.Refund, error) {
	return razorpay.Refund{}, g.err
}

type fixture struct {
	orders  *repo.MemoryOrderRepo
	txns    *repo.MemoryTxnRepo
	refunds *repo.MemoryRefundRepo
	mock    *razorpay.Mock
	svc     *PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:  repo.NewMemoryOrderRepo(),
		txns:    repo.NewMemoryTxnRepo(),
		refunds: repo.NewMemoryRefundRepo(),
		mock:    razorpay.NewMock(testSecret),
	}
	f.svc = &PaymentService{
		Orders:  f.orders,
		Txns:    f.txns,
		Refunds: f.refunds,
		Gateway: f.mock,
		Secret:  testSecret,
	}
	return f
}

func (f *fixture) seedOrder(t *testing.T, totalPaise int64) *domain.Order {
	t.Helper()
	os := &OrderService{Repo: f.orders}
	o, err := os.Create("user-1", []domain.OrderItem{
		{ProductID: "frag-001", Qty: 1, UnitPaise: totalPaise},
	}, 0, 0, "INR")
	require.NoError(t, err)
	return o
}

// seedPaid walks an order through provider order creation and a verified
// callback, returning the order and the provider payment id.
func (f *fixture) seedPaid(t *testing.T, totalPaise int64) (*domain.Order, string) {
	t.Helper()
	o := f.seedOrder(t, totalPaise)
	po, err := f.svc.CreateProviderOrder(context.Background(), o.OrderID, "user-1", 0, "", "", nil)
	require.NoError(t, err)
	paymentID := "pay_" + o.OrderID[:8]
	sig := f.mock.SignPayment(po.ID, paymentID)
	got, err := f.svc.VerifyPayment(context.Background(), po.ID, paymentID, sig, o.OrderID, "user-1")
	require.NoError(t, err)
	return got, paymentID
}

func TestCreateProviderOrder(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, 2999)

	po, err := f.svc.CreateProviderOrder(context.Background(), o.OrderID, "user-1", 2999, "INR", "rcpt-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2999), po.Amount)
	assert.Equal(t, "INR", po.Currency)
	assert.NotEmpty(t, po.ID)

	stored, ok := f.orders.GetOrder(o.OrderID)
	require.True(t, ok)
	assert.Equal(t, po.ID, stored.Payment.ProviderOrderID)
	assert.Equal(t, "razorpay", stored.Payment.Method)
}

func TestCreateProviderOrder_AmountMismatch(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, 2999)

	_, err := f.svc.CreateProviderOrder(context.Background(), o.OrderID, "user-1", 100, "INR", "", nil)
	var br ErrBadRequest
	require.ErrorAs(t, err, &br)
}

func TestCreateProviderOrder_GatewayFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, 2999)
	f.svc.Gateway = &failingGateway{err: errors.New("connection timed out")}

	_, err := f.svc.CreateProviderOrder(context.Background(), o.OrderID, "user-1", 0, "", "", nil)
	var gw *GatewayError
	require.ErrorAs(t, err, &gw)

	// Nothing stamped on the order on an ambiguous failure.
	stored, ok := f.orders.GetOrder(o.OrderID)
	require.True(t, ok)
	assert.Empty(t, stored.Payment.ProviderOrderID)
}

func TestVerifyPayment_ConfirmsOrderAndRecordsTransaction(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, 2999)
	po, err := f.svc.CreateProviderOrder(context.Background(), o.OrderID, "user-1", 0, "", "", nil)
	require.NoError(t, err)

	sig := f.mock.SignPayment(po.ID, "pay_abc123")
	got, err := f.svc.VerifyPayment(context.Background(), po.ID, "pay_abc123", sig, o.OrderID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, got.Status)
	assert.Equal(t, domain.PaymentPaid, got.Payment.Status)
	assert.Equal(t, "pay_abc123", got.Payment.ProviderPaymentID)

	txn, ok := f.txns.GetByProviderPaymentID("pay_abc123")
	require.True(t, ok)
	assert.Equal(t, int64(2999), txn.AmountPaise)
	assert.Equal(t, "INR", txn.Currency)
	assert.Equal(t, domain.TxnCaptured, txn.Status)
	assert.Equal(t, o.OrderID, txn.OrderID)
}

func TestVerifyPayment_ReplayIsNoOp(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, 2999)
	po, err := f.svc.CreateProviderOrder(context.Background(), o.OrderID, "user-1", 0, "", "", nil)
	require.NoError(t, err)
	sig := f.mock.SignPayment(po.ID, "pay_abc123")

	first, err := f.svc.VerifyPayment(context.Background(), po.ID, "pay_abc123", sig, o.OrderID, "user-1")
	require.NoError(t, err)
	second, err := f.svc.VerifyPayment(context.Background(), po.ID, "pay_abc123", sig, o.OrderID, "user-1")
	require.NoError(t, err)

	assert.Equal(t, first.Payment, second.Payment)
	assert.Equal(t, domain.OrderConfirmed, second.Status)

	// Still exactly one transaction: a fresh insert of the same pair is
	// rejected by the uniqueness guard.
	dup := &domain.Transaction{TxnID: "x", ProviderOrderID: po.ID, ProviderPaymentID: "pay_abc123"}
	inserted, err := f.txns.InsertTransaction(dup)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestVerifyPayment_TamperedSignature(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, 2999)
	po, err := f.svc.CreateProviderOrder(context.Background(), o.OrderID, "user-1", 0, "", "", nil)
	require.NoError(t, err)

	sig := f.mock.SignPayment(po.ID, "pay_other")
	_, err = f.svc.VerifyPayment(context.Background(), po.ID, "pay_abc123", sig, o.OrderID, "user-1")
	var sigErr *ErrInvalidSignature
	require.ErrorAs(t, err, &sigErr)

	stored, ok := f.orders.GetOrder(o.OrderID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderPending, stored.Status)
	assert.Equal(t, domain.PaymentFailed, stored.Payment.Status)
	assert.Empty(t, stored.Payment.ProviderPaymentID)
	_, found := f.txns.GetByProviderPaymentID("pay_abc123")
	assert.False(t, found)
}

func TestVerifyPayment_RetryAfterFailedAttempt(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, 2999)
	po, err := f.svc.CreateProviderOrder(context.Background(), o.OrderID, "user-1", 0, "", "", nil)
	require.NoError(t, err)

	_, err = f.svc.VerifyPayment(context.Background(), po.ID, "pay_abc123", "deadbeef", o.OrderID, "user-1")
	require.Error(t, err)

	// A later genuine callback still lands: failed is not terminal.
	sig := f.mock.SignPayment(po.ID, "pay_abc123")
	got, err := f.svc.VerifyPayment(context.Background(), po.ID, "pay_abc123", sig, o.OrderID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, got.Payment.Status)
}

func TestCreateProviderOrder_WrongUser(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, 2999)

	_, err := f.svc.CreateProviderOrder(context.Background(), o.OrderID, "someone-else", 0, "", "", nil)
	var nf ErrNotFound
	require.ErrorAs(t, err, &nf)

	// Nothing stamped on the order for the failed attempt.
	stored, ok := f.orders.GetOrder(o.OrderID)
	require.True(t, ok)
	assert.Empty(t, stored.Payment.ProviderOrderID)
}

func TestVerifyPayment_SignatureFromAnotherOrder(t *testing.T) {
	f := newFixture(t)
	a := f.seedOrder(t, 2999)
	b := f.seedOrder(t, 2999)
	poA, err := f.svc.CreateProviderOrder(context.Background(), a.OrderID, "user-1", 0, "", "", nil)
	require.NoError(t, err)
	sig := f.mock.SignPayment(poA.ID, "pay_abc123")

	// The signature is genuine, but it belongs to order A's provider pair.
	// Against B, which has no provider order stamped, it must not settle.
	_, err = f.svc.VerifyPayment(context.Background(), poA.ID, "pay_abc123", sig, b.OrderID, "user-1")
	var cf ErrConflict
	require.ErrorAs(t, err, &cf)

	storedB, ok := f.orders.GetOrder(b.OrderID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderPending, storedB.Status)
	assert.Equal(t, domain.PaymentPending, storedB.Payment.Status)

	// Same replay against B after B has its own provider order: still rejected.
	_, err = f.svc.CreateProviderOrder(context.Background(), b.OrderID, "user-1", 0, "", "", nil)
	require.NoError(t, err)
	_, err = f.svc.VerifyPayment(context.Background(), poA.ID, "pay_abc123", sig, b.OrderID, "user-1")
	require.ErrorAs(t, err, &cf)

	// The rightful order still settles, exactly once.
	got, err := f.svc.VerifyPayment(context.Background(), poA.ID, "pay_abc123", sig, a.OrderID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, got.Status)
	txn, ok := f.txns.GetByProviderPaymentID("pay_abc123")
	require.True(t, ok)
	assert.Equal(t, a.OrderID, txn.OrderID)
}

func TestVerifyPayment_WrongUser(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, 2999)
	po, err := f.svc.CreateProviderOrder(context.Background(), o.OrderID, "user-1", 0, "", "", nil)
	require.NoError(t, err)

	sig := f.mock.SignPayment(po.ID, "pay_abc123")
	_, err = f.svc.VerifyPayment(context.Background(), po.ID, "pay_abc123", sig, o.OrderID, "someone-else")
	var nf ErrNotFound
	require.ErrorAs(t, err, &nf)
}

func TestVerifyPayment_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	o := f.seedOrder(t, 2999)
	po, err := f.svc.CreateProviderOrder(context.Background(), o.OrderID, "user-1", 0, "", "", nil)
	require.NoError(t, err)
	sig := f.mock.SignPayment(po.ID, "pay_abc123")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.VerifyPayment(context.Background(), po.ID, "pay_abc123", sig, o.OrderID, "user-1")
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	dup := &domain.Transaction{TxnID: "x", ProviderOrderID: po.ID, ProviderPaymentID: "pay_abc123"}
	inserted, err := f.txns.InsertTransaction(dup)
	require.NoError(t, err)
	assert.False(t, inserted, "duplicate callbacks must record exactly one transaction")
}

func TestInitiateRefund_Full(t *testing.T) {
	f := newFixture(t)
	o, paymentID := f.seedPaid(t, 2999)

	ref, err := f.svc.InitiateRefund(context.Background(), paymentID, 0, "customer request", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2999), ref.AmountPaise)
	assert.Equal(t, "admin-1", ref.Actor)

	stored, ok := f.orders.GetOrder(o.OrderID)
	require.True(t, ok)
	assert.Equal(t, domain.PaymentRefunded, stored.Payment.Status)
	txn, ok := f.txns.GetByProviderPaymentID(paymentID)
	require.True(t, ok)
	assert.Equal(t, domain.TxnRefunded, txn.Status)
}

func TestInitiateRefund_PartialThenCapped(t *testing.T) {
	f := newFixture(t)
	o, paymentID := f.seedPaid(t, 2999)

	ref, err := f.svc.InitiateRefund(context.Background(), paymentID, 1000, "partial", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), ref.AmountPaise)

	// Order stays paid until the captured amount is fully refunded.
	stored, _ := f.orders.GetOrder(o.OrderID)
	assert.Equal(t, domain.PaymentPaid, stored.Payment.Status)

	// Above the remaining balance: rejected, not clamped.
	_, err = f.svc.InitiateRefund(context.Background(), paymentID, 2500, "too much", "admin-1")
	var br ErrBadRequest
	require.ErrorAs(t, err, &br)

	_, err = f.svc.InitiateRefund(context.Background(), paymentID, 1999, "rest", "admin-1")
	require.NoError(t, err)
	stored, _ = f.orders.GetOrder(o.OrderID)
	assert.Equal(t, domain.PaymentRefunded, stored.Payment.Status)

	_, err = f.svc.InitiateRefund(context.Background(), paymentID, 1, "again", "admin-1")
	var cf ErrConflict
	require.ErrorAs(t, err, &cf)
}

func TestInitiateRefund_ExceedsCapture(t *testing.T) {
	f := newFixture(t)
	_, paymentID := f.seedPaid(t, 2999)

	_, err := f.svc.InitiateRefund(context.Background(), paymentID, 3000, "too much", "admin-1")
	var br ErrBadRequest
	require.ErrorAs(t, err, &br)

	sum, err := f.refunds.RefundedPaise(paymentID)
	require.NoError(t, err)
	assert.Zero(t, sum)
}

func TestInitiateRefund_UnknownPayment(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.InitiateRefund(context.Background(), "pay_unknown", 0, "", "admin-1")
	var nf ErrNotFound
	require.ErrorAs(t, err, &nf)
}

func TestRefundStatus_ReconcilesDrift(t *testing.T) {
	f := newFixture(t)
	_, paymentID := f.seedPaid(t, 2999)
	ref, err := f.svc.InitiateRefund(context.Background(), paymentID, 0, "customer request", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RefundProcessed, ref.Status)

	f.mock.SetRefundStatus(ref.ProviderRefundID, "failed")
	got, err := f.svc.RefundStatus(context.Background(), ref.RefundID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundFailed, got.Status)

	stored, ok := f.refunds.GetRefund(ref.RefundID)
	require.True(t, ok)
	assert.Equal(t, domain.RefundFailed, stored.Status)
}

func TestRefundStatus_GatewayDown(t *testing.T) {
	f := newFixture(t)
	_, paymentID := f.seedPaid(t, 2999)
	ref, err := f.svc.InitiateRefund(context.Background(), paymentID, 0, "", "admin-1")
	require.NoError(t, err)

	f.svc.Gateway = &failingGateway{err: errors.New("connection refused")}
	_, err = f.svc.RefundStatus(context.Background(), ref.RefundID)
	var gw *GatewayError
	require.ErrorAs(t, err, &gw)
}
