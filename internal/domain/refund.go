package domain

import "time"

type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundProcessed RefundStatus = "processed"
	RefundFailed    RefundStatus = "failed"
)

type Refund struct {
	RefundID          string       `json:"refundId"`
	TxnID             string       `json:"txnId"`
	ProviderPaymentID string       `json:"providerPaymentId"`
	ProviderRefundID  string       `json:"providerRefundId"`
	AmountPaise       int64        `json:"amountPaise"`
	Status            RefundStatus `json:"status"`
	Reason            string       `json:"reason"`
	Actor             string       `json:"actor"`
	ProviderPayload   string       `json:"-"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}
