package order

import (
	"context"
	"errors"
	"time"

	"go-mpesa/mpesa"
	"go-mpesa/notify"
	"go-mpesa/payment/db"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const notifyTimeout = 30 * time.Second

type Gateway interface {
	STKPush(ctx context.Context, req mpesa.PushRequest) (*mpesa.PushResponse, error)
	QuerySTK(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResponse, error)
}

type Store interface {
	InsertPending(ctx context.Context, rec *db.PaymentRecord) error
	FindByCheckoutID(ctx context.Context, checkoutID string) (*db.PaymentRecord, error)
	UpdateStatus(ctx context.Context, checkoutID string, u db.StatusUpdate) (bool, error)
	FillReceipt(ctx context.Context, checkoutID, receipt string, txDate *time.Time) (bool, error)
	FindByPhone(ctx context.Context, phone string, page, limit int) ([]db.PaymentRecord, error)
	CountByPhone(ctx context.Context, phone string) (int64, error)
	List(ctx context.Context, status string, page, limit int) ([]db.PaymentRecord, error)
	Count(ctx context.Context, status string) (int64, error)
	PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]db.PaymentRecord, error)
}

type Config struct {
	Gateway   Gateway
	Store     Store
	Notifier  notify.Notifier
	Logger    *zap.Logger
	MaxAmount int64
}

type Service struct {
	gateway   Gateway
	store     Store
	notifier  notify.Notifier
	log       *zap.Logger
	maxAmount int64
	now       func() time.Time
}

func NewService(cfg Config) *Service {
	s := &Service{
		gateway:   cfg.Gateway,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		log:       cfg.Logger,
		maxAmount: cfg.MaxAmount,
		now:       time.Now,
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.maxAmount <= 0 {
		s.maxAmount = DefaultMaxAmount
	}
	return s
}

type InitiateRequest struct {
	Phone   string
	Amount  decimal.Decimal
	PayerID *uint
}

type InitiateResult struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
	ResponseCode      string `json:"responseCode"`
	Message           string `json:"message"`
}

// Initiate validates the charge, submits the STK push and records it as
// Pending. Nothing is stored unless the gateway accepted the push.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	phone, err := ValidatePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	amount, err := ValidateAmount(req.Amount, s.maxAmount)
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.STKPush(ctx, mpesa.PushRequest{Phone: phone, Amount: amount})
	if err != nil {
		s.log.Warn("stk push failed", zap.String("phone", phone), zap.Int64("amount", amount), zap.Error(err))
		return nil, err
	}

	rec := &db.PaymentRecord{
		PayerID:           req.PayerID,
		Phone:             phone,
		Amount:            amount,
		CheckoutRequestID: resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
	}

	// The charge is already live upstream; a client hanging up must not stop the write.
	if err := s.store.InsertPending(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Error("stk push accepted but payment not recorded, manual reconciliation required",
			zap.String("checkoutRequestId", resp.CheckoutRequestID),
			zap.String("merchantRequestId", resp.MerchantRequestID),
			zap.String("phone", phone),
			zap.Int64("amount", amount),
			zap.Error(err))
		return nil, err
	}

	s.log.Info("stk push submitted",
		zap.String("checkoutRequestId", rec.CheckoutRequestID),
		zap.String("phone", phone),
		zap.Int64("amount", amount))

	msg := resp.CustomerMessage
	if msg == "" {
		msg = resp.ResponseDescription
	}
	return &InitiateResult{
		CheckoutRequestID: resp.CheckoutRequestID,
		ResponseCode:      resp.ResponseCode,
		Message:           msg,
	}, nil
}

// Status returns the record for one checkout id.
func (s *Service) Status(ctx context.Context, checkoutID string) (*db.PaymentRecord, error) {
	return s.store.FindByCheckoutID(ctx, checkoutID)
}

type Outcome string

const (
	OutcomeCompleted    Outcome = "completed"
	OutcomeFailed       Outcome = "failed"
	OutcomeUnknown      Outcome = "unknown"
	OutcomeAlreadyFinal Outcome = "already_final"
	// The record was already Completed and only gained its receipt.
	OutcomeReceiptAdded Outcome = "receipt_added"
)

// finalize applies a terminal status through the store's Pending-only
// update and announces real transitions.
func (s *Service) finalize(ctx context.Context, checkoutID string, u db.StatusUpdate) (Outcome, error) {
	changed, err := s.store.UpdateStatus(ctx, checkoutID, u)
	if err != nil {
		return "", err
	}

	if !changed {
		_, err := s.store.FindByCheckoutID(ctx, checkoutID)
		if errors.Is(err, db.ErrNotFound) {
			return OutcomeUnknown, nil
		}
		if err != nil {
			return "", err
		}
		return OutcomeAlreadyFinal, nil
	}

	outcome, evType := OutcomeFailed, notify.EventFailed
	if u.Status == db.StatusCompleted {
		outcome, evType = OutcomeCompleted, notify.EventCompleted
	}

	rec, err := s.store.FindByCheckoutID(ctx, checkoutID)
	if err != nil {
		s.log.Warn("payment finalized but could not be reloaded for notification",
			zap.String("checkoutRequestId", checkoutID), zap.Error(err))
		return outcome, nil
	}

	notify.Dispatch(s.notifier, notify.Event{
		Type:              evType,
		CheckoutRequestID: checkoutID,
		Phone:             rec.Phone,
		Amount:            rec.Amount,
		Status:            rec.Status,
		ReceiptNumber:     u.ReceiptNumber,
		ResultDesc:        u.ResultDesc,
		OccurredAt:        s.now(),
	}, s.log, notifyTimeout)

	return outcome, nil
}
