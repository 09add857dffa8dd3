package controllers

import (
	"errors"
	"net/http"

	"go-mpesa/mpesa"
	"go-mpesa/payment/order"

	"github.com/gin-gonic/gin"
)

type errorKind struct {
	status  int
	code    string
	message string
}

// classify maps a service error onto its HTTP status and error code. Order
// matters: a storage timeout is also a storage error.
func classify(err error) errorKind {
	switch {
	case errors.Is(err, order.ErrValidation):
		return errorKind{http.StatusBadRequest, "validation_error", ""}
	case errors.Is(err, order.ErrUpstreamTimeout):
		return errorKind{http.StatusServiceUnavailable, "upstream_timeout", "The payment gateway did not respond in time, please retry."}
	case errors.Is(err, order.ErrUpstreamAuth):
		return errorKind{http.StatusBadGateway, "upstream_auth_error", "Could not authenticate with the payment gateway."}
	case errors.Is(err, order.ErrGatewaySubmission):
		return errorKind{http.StatusBadGateway, "gateway_submission_error", "The payment gateway rejected the request."}
	case errors.Is(err, order.ErrDuplicateCheckoutID):
		return errorKind{http.StatusInternalServerError, "duplicate_checkout_id", "The gateway returned a checkout id that is already recorded."}
	case errors.Is(err, order.ErrNotFound):
		return errorKind{http.StatusNotFound, "not_found", "Payment not found."}
	case errors.Is(err, order.ErrStorageTimeout):
		return errorKind{http.StatusServiceUnavailable, "storage_timeout", "The database did not respond in time, please retry."}
	default:
		return errorKind{http.StatusServiceUnavailable, "storage_error", "The database is unavailable, please retry."}
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	k := classify(err)

	msg := k.message
	switch {
	case k.code == "validation_error":
		msg = err.Error()
	case k.code == "gateway_submission_error" && mpesa.Description(err) != "":
		msg = mpesa.Description(err)
	}

	body := gin.H{"error": k.code, "message": msg}
	if !h.production {
		body["detail"] = err.Error()
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(k.status, body)
}

func (h *Handler) invalid(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": msg})
}
