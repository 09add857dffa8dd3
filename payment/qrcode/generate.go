package qrcode

import (
	"errors"
	"fmt"
	"net/url"

	"go-mpesa/payment/db"

	qrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 256

var ErrNotCompleted = errors.New("payment has no receipt yet")

// ReceiptURI is the text encoded in a receipt QR code.
func ReceiptURI(rec *db.PaymentRecord) (string, error) {
	if rec.Status != db.StatusCompleted || rec.MpesaReceiptNumber == nil {
		return "", ErrNotCompleted
	}

	q := url.Values{}
	q.Set("amount", fmt.Sprint(rec.Amount))
	q.Set("phone", rec.Phone)
	q.Set("checkout", rec.CheckoutRequestID)
	return fmt.Sprintf("mpesa-receipt:%s?%s", *rec.MpesaReceiptNumber, q.Encode()), nil
}

func ReceiptPNG(rec *db.PaymentRecord, size int) ([]byte, error) {
	uri, err := ReceiptURI(rec)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(uri, qrcode.Medium, size)
}
