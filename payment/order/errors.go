package order

import (
	"errors"

	"go-mpesa/mpesa"
	"go-mpesa/payment/db"
)

var ErrValidation = errors.New("invalid request")

// Errors from the layers below, re-exported so callers need only this package.
var (
	ErrUpstreamAuth      = mpesa.ErrUpstreamAuth
	ErrUpstreamTimeout   = mpesa.ErrUpstreamTimeout
	ErrGatewaySubmission = mpesa.ErrGatewaySubmission

	ErrNotFound            = db.ErrNotFound
	ErrDuplicateCheckoutID = db.ErrDuplicateCheckoutID
	ErrStorage             = db.ErrStorage
	ErrStorageTimeout      = db.ErrStorageTimeout
)
