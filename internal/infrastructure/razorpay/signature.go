package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// PaymentSignature computes the checkout callback signature: hex HMAC-SHA256
// over "<order_id>|<payment_id>" keyed with the API key secret.
func PaymentSignature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks a callback signature in constant time.
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	want := PaymentSignature(orderID, paymentID, secret)
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	raw, _ := hex.DecodeString(want)
	return hmac.Equal(raw, got)
}
