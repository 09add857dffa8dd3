package controllers

import (
	"context"

	"go-mpesa/mpesa"
	"go-mpesa/payment/db"
	"go-mpesa/payment/order"

	"go.uber.org/zap"
)

// Payments is the slice of order.Service the handlers call.
type Payments interface {
	Initiate(ctx context.Context, req order.InitiateRequest) (*order.InitiateResult, error)
	Reconcile(ctx context.Context, cb mpesa.STKCallback) (order.Outcome, error)
	History(ctx context.Context, q order.HistoryQuery) (*order.Page, error)
	Status(ctx context.Context, checkoutID string) (*db.PaymentRecord, error)
	List(ctx context.Context, status string, page, limit int) (*order.Page, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Handler struct {
	payments   Payments
	database   Pinger
	tokens     TokenSource
	log        *zap.Logger
	production bool
}

func NewHandler(payments Payments, database Pinger, tokens TokenSource, log *zap.Logger, production bool) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		payments:   payments,
		database:   database,
		tokens:     tokens,
		log:        log,
		production: production,
	}
}
