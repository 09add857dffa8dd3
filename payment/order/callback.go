package order

import (
	"context"
	"fmt"

	"go-mpesa/mpesa"
	"go-mpesa/payment/db"

	"go.uber.org/zap"
)

// Reconcile applies a gateway callback. Unknown ids and records that are
// already final are acknowledged without change, so redelivery is harmless.
func (s *Service) Reconcile(ctx context.Context, cb mpesa.STKCallback) (Outcome, error) {
	if cb.CheckoutRequestID == "" {
		return "", fmt.Errorf("%w: callback without CheckoutRequestID", ErrValidation)
	}

	u := db.StatusUpdate{Status: db.StatusFailed, ResultDesc: cb.ResultDesc}
	if cb.Succeeded() {
		u.Status = db.StatusCompleted
		u.ReceiptNumber = cb.ReceiptNumber()
		if t, ok := cb.TransactionDate(); ok {
			u.TransactionDate = &t
		}
	}

	outcome, err := s.finalize(ctx, cb.CheckoutRequestID, u)
	if err != nil {
		return "", err
	}

	// A status query may have completed the record before this callback
	// arrived; the receipt only comes with the callback.
	if outcome == OutcomeAlreadyFinal && u.Status == db.StatusCompleted {
		filled, err := s.store.FillReceipt(ctx, cb.CheckoutRequestID, u.ReceiptNumber, u.TransactionDate)
		if err != nil {
			return "", err
		}
		if filled {
			outcome = OutcomeReceiptAdded
		}
	}

	s.log.Info("callback reconciled",
		zap.String("checkoutRequestId", cb.CheckoutRequestID),
		zap.Int("resultCode", cb.ResultCode),
		zap.String("outcome", string(outcome)))
	return outcome, nil
}
