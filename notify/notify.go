// Package notify delivers payment status changes to collaborators outside
// the payment flow. Delivery is always fire and forget.
package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	EventCompleted = "payment.completed"
	EventFailed    = "payment.failed"
)

type Event struct {
	Type              string    `json:"type"`
	CheckoutRequestID string    `json:"checkoutRequestId"`
	Phone             string    `json:"phone"`
	Amount            int64     `json:"amount"`
	Status            string    `json:"status"`
	ReceiptNumber     string    `json:"receiptNumber,omitempty"`
	ResultDesc        string    `json:"resultDesc,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatch runs n in the background with its own deadline. Failures are
// logged, never returned.
func Dispatch(n Notifier, ev Event, log *zap.Logger, timeout time.Duration) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := n.Notify(ctx, ev); err != nil {
			log.Warn("payment notification failed",
				zap.String("type", ev.Type),
				zap.String("checkoutRequestId", ev.CheckoutRequestID),
				zap.Error(err))
		}
	}()
}
