package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

// Mailer is satisfied by *gomail.Dialer.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier mails payment outcomes to the operators' mailboxes.
type EmailNotifier struct {
	mailer Mailer
	from   string
	to     []string
}

func NewEmailNotifier(host string, port int, user, pass, from string, to []string) *EmailNotifier {
	return &EmailNotifier{mailer: gomail.NewDialer(host, port, user, pass), from: from, to: to}
}

func NewEmailNotifierWithMailer(m Mailer, from string, to []string) *EmailNotifier {
	return &EmailNotifier{mailer: m, from: from, to: to}
}

func (e *EmailNotifier) Message(ev Event) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", e.to...)

	switch ev.Type {
	case EventCompleted:
		m.SetHeader("Subject", fmt.Sprintf("Payment received: KES %d from %s", ev.Amount, ev.Phone))
		m.SetBody("text/plain", fmt.Sprintf(
			"Mpesa payment completed.\n\nAmount: KES %d\nPhone: %s\nReceipt: %s\nCheckout request: %s\nTime: %s\n",
			ev.Amount, ev.Phone, ev.ReceiptNumber, ev.CheckoutRequestID, ev.OccurredAt.Format("2006-01-02 15:04:05 MST")))
	default:
		m.SetHeader("Subject", fmt.Sprintf("Payment failed: KES %d from %s", ev.Amount, ev.Phone))
		m.SetBody("text/plain", fmt.Sprintf(
			"Mpesa payment did not complete.\n\nAmount: KES %d\nPhone: %s\nReason: %s\nCheckout request: %s\nTime: %s\n",
			ev.Amount, ev.Phone, ev.ResultDesc, ev.CheckoutRequestID, ev.OccurredAt.Format("2006-01-02 15:04:05 MST")))
	}
	return m
}

func (e *EmailNotifier) Notify(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.mailer.DialAndSend(e.Message(ev)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
