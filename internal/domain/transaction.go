package domain

import "time"

type TransactionStatus string

const (
	TxnCaptured TransactionStatus = "captured"
	TxnFailed   TransactionStatus = "failed"
	TxnRefunded TransactionStatus = "refunded"
)

// Transaction is an append-only record of a captured payment event. At most
// one exists per (provider order id, provider payment id) pair.
type Transaction struct {
	TxnID             string            `json:"txnId"`
	OrderID           string            `json:"orderId"`
	UserID            string            `json:"userId"`
	ProviderOrderID   string            `json:"providerOrderId"`
	ProviderPaymentID string            `json:"providerPaymentId"`
	ProviderSignature string            `json:"-"`
	AmountPaise       int64             `json:"amountPaise"`
	Currency          string            `json:"currency"`
	Status            TransactionStatus `json:"status"`
	CreatedAt         time.Time         `json:"createdAt"`
}
