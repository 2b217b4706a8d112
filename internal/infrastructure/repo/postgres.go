package repo

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"fragransia-payments/internal/domain"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	r := &PostgresRepo{db: db}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepo) init() error {
	_, err := r.db.Exec(`CREATE TABLE IF NOT EXISTS orders (
		order_id TEXT PRIMARY KEY,
		user_id TEXT,
		items TEXT,
		status TEXT,
		subtotal_paise BIGINT,
		shipping_paise BIGINT,
		tax_paise BIGINT,
		total_paise BIGINT,
		currency TEXT,
		pay_method TEXT,
		provider_order_id TEXT,
		provider_payment_id TEXT,
		payment_status TEXT,
		created_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ
	);`)
	if err != nil {
		return err
	}
	// The unique pair constraint is what makes the transaction write
	// at-most-once; application code never does check-then-write.
	_, err = r.db.Exec(`CREATE TABLE IF NOT EXISTS transactions (
		txn_id TEXT PRIMARY KEY,
		order_id TEXT,
		user_id TEXT,
		provider_order_id TEXT,
		provider_payment_id TEXT,
		provider_signature TEXT,
		amount_paise BIGINT,
		currency TEXT,
		status TEXT,
		created_at TIMESTAMPTZ,
		UNIQUE (provider_order_id, provider_payment_id)
	);`)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`CREATE TABLE IF NOT EXISTS refunds (
		refund_id TEXT PRIMARY KEY,
		txn_id TEXT,
		provider_payment_id TEXT,
		provider_refund_id TEXT,
		amount_paise BIGINT,
		status TEXT,
		reason TEXT,
		actor TEXT,
		provider_payload TEXT,
		created_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ
	);`)
	return err
}

func (r *PostgresRepo) PutOrder(o *domain.Order) error {
	items, _ := json.Marshal(o.Items)
	_, err := r.db.Exec(`INSERT INTO orders (order_id,user_id,items,status,subtotal_paise,shipping_paise,tax_paise,total_paise,currency,pay_method,provider_order_id,provider_payment_id,payment_status,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (order_id) DO UPDATE SET user_id=$2,items=$3,status=$4,subtotal_paise=$5,shipping_paise=$6,tax_paise=$7,total_paise=$8,currency=$9,pay_method=$10,provider_order_id=$11,provider_payment_id=$12,payment_status=$13,updated_at=$15`,
		o.OrderID, o.UserID, string(items), string(o.Status),
		o.Pricing.SubtotalPaise, o.Pricing.ShippingPaise, o.Pricing.TaxPaise, o.Pricing.TotalPaise, o.Pricing.Currency,
		o.Payment.Method, o.Payment.ProviderOrderID, o.Payment.ProviderPaymentID, string(o.Payment.Status),
		o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *PostgresRepo) GetOrder(id string) (*domain.Order, bool) {
	var o domain.Order
	var items string
	err := r.db.QueryRow(`SELECT order_id,user_id,items,status,subtotal_paise,shipping_paise,tax_paise,total_paise,currency,pay_method,provider_order_id,provider_payment_id,payment_status,created_at,updated_at FROM orders WHERE order_id=$1`, id).
		Scan(&o.OrderID, &o.UserID, &items, (*string)(&o.Status),
			&o.Pricing.SubtotalPaise, &o.Pricing.ShippingPaise, &o.Pricing.TaxPaise, &o.Pricing.TotalPaise, &o.Pricing.Currency,
			&o.Payment.Method, &o.Payment.ProviderOrderID, &o.Payment.ProviderPaymentID, (*string)(&o.Payment.Status),
			&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, false
	}
	_ = json.Unmarshal([]byte(items), &o.Items)
	return &o, true
}

// ConfirmPayment is a single conditional update: it only lands while the
// payment is still pending or failed, so a racing duplicate observes zero
// rows affected.
func (r *PostgresRepo) ConfirmPayment(orderID, providerOrderID, providerPaymentID string) (bool, error) {
	res, err := r.db.Exec(`UPDATE orders SET status=$2, payment_status=$3, pay_method='razorpay', provider_order_id=$4, provider_payment_id=$5, updated_at=$6
		WHERE order_id=$1 AND payment_status IN ($7,$8)`,
		orderID, string(domain.OrderConfirmed), string(domain.PaymentPaid),
		providerOrderID, providerPaymentID, time.Now().UTC(),
		string(domain.PaymentPending), string(domain.PaymentFailed))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PostgresRepo) SetPaymentStatus(orderID string, st domain.PaymentStatus) error {
	res, err := r.db.Exec(`UPDATE orders SET payment_status=$2, updated_at=$3 WHERE order_id=$1`,
		orderID, string(st), time.Now().UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresRepo) InsertTransaction(t *domain.Transaction) (bool, error) {
	_, err := r.db.Exec(`INSERT INTO transactions (txn_id,order_id,user_id,provider_order_id,provider_payment_id,provider_signature,amount_paise,currency,status,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.TxnID, t.OrderID, t.UserID, t.ProviderOrderID, t.ProviderPaymentID, t.ProviderSignature,
		t.AmountPaise, t.Currency, string(t.Status), t.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *PostgresRepo) GetByProviderPaymentID(providerPaymentID string) (*domain.Transaction, bool) {
	var t domain.Transaction
	err := r.db.QueryRow(`SELECT txn_id,order_id,user_id,provider_order_id,provider_payment_id,provider_signature,amount_paise,currency,status,created_at FROM transactions WHERE provider_payment_id=$1`, providerPaymentID).
		Scan(&t.TxnID, &t.OrderID, &t.UserID, &t.ProviderOrderID, &t.ProviderPaymentID, &t.ProviderSignature,
			&t.AmountPaise, &t.Currency, (*string)(&t.Status), &t.CreatedAt)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func (r *PostgresRepo) SetStatus(txnID string, st domain.TransactionStatus) error {
	_, err := r.db.Exec(`UPDATE transactions SET status=$2 WHERE txn_id=$1`, txnID, string(st))
	return err
}

func (r *PostgresRepo) PutRefund(ref *domain.Refund) error {
	_, err := r.db.Exec(`INSERT INTO refunds (refund_id,txn_id,provider_payment_id,provider_refund_id,amount_paise,status,reason,actor,provider_payload,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (refund_id) DO UPDATE SET provider_refund_id=$4,amount_paise=$5,status=$6,provider_payload=$9,updated_at=$11`,
		ref.RefundID, ref.TxnID, ref.ProviderPaymentID, ref.ProviderRefundID, ref.AmountPaise,
		string(ref.Status), ref.Reason, ref.Actor, ref.ProviderPayload, ref.CreatedAt, ref.UpdatedAt)
	return err
}

func (r *PostgresRepo) GetRefund(id string) (*domain.Refund, bool) {
	var ref domain.Refund
	err := r.db.QueryRow(`SELECT refund_id,txn_id,provider_payment_id,provider_refund_id,amount_paise,status,reason,actor,provider_payload,created_at,updated_at FROM refunds WHERE refund_id=$1`, id).
		Scan(&ref.RefundID, &ref.TxnID, &ref.ProviderPaymentID, &ref.ProviderRefundID, &ref.AmountPaise,
			(*string)(&ref.Status), &ref.Reason, &ref.Actor, &ref.ProviderPayload, &ref.CreatedAt, &ref.UpdatedAt)
	if err != nil {
		return nil, false
	}
	return &ref, true
}

func (r *PostgresRepo) RefundedPaise(providerPaymentID string) (int64, error) {
	var sum int64
	err := r.db.QueryRow(`SELECT COALESCE(SUM(amount_paise),0) FROM refunds WHERE provider_payment_id=$1 AND status<>$2`,
		providerPaymentID, string(domain.RefundFailed)).Scan(&sum)
	return sum, err
}
