package controllers

import (
	"errors"
	"net/http"

	"go-mpesa/mpesa"
	"go-mpesa/payment/order"
	"go-mpesa/payment/qrcode"
	"go-mpesa/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (h *Handler) Initiate(c *gin.Context) {
	var req struct {
		Phone  string          `json:"phone"`
		Amount decimal.Decimal `json:"amount"` // number or numeric string
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.invalid(c, "Body must be JSON with a phone and a numeric amount")
		return
	}

	res, err := h.payments.Initiate(c.Request.Context(), order.InitiateRequest{
		Phone:   req.Phone,
		Amount:  req.Amount,
		PayerID: middleware.PayerID(c),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Callback always acknowledges once the request got past CallbackAuth. The
// gateway retries anything else, and a retry cannot fix a bad body or a
// database outage; those are logged instead.
func (h *Handler) Callback(c *gin.Context) {
	var env mpesa.CallbackEnvelope
	if err := c.ShouldBindJSON(&env); err != nil {
		h.log.Warn("malformed callback body", zap.Error(err))
		c.JSON(http.StatusOK, mpesa.Accepted)
		return
	}

	cb := env.Body.STKCallback
	if _, err := h.payments.Reconcile(c.Request.Context(), cb); err != nil {
		h.log.Error("callback not applied",
			zap.String("checkoutRequestId", cb.CheckoutRequestID),
			zap.Int("resultCode", cb.ResultCode),
			zap.Error(err))
	}

	c.JSON(http.StatusOK, mpesa.Accepted)
}

func (h *Handler) History(c *gin.Context) {
	page, limit, err := order.ParsePagination(c.Query("page"), c.Query("limit"))
	if err != nil {
		h.fail(c, err)
		return
	}

	p, err := h.payments.History(c.Request.Context(), order.HistoryQuery{
		Phone: c.Param("phone"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, pageBody(p))
}

func (h *Handler) Status(c *gin.Context) {
	rec, err := h.payments.Status(c.Request.Context(), c.Param("checkoutRequestId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": rec})
}

// Receipt renders a QR code for a completed payment.
func (h *Handler) Receipt(c *gin.Context) {
	rec, err := h.payments.Status(c.Request.Context(), c.Param("checkoutRequestId"))
	if err != nil {
		h.fail(c, err)
		return
	}

	png, err := qrcode.ReceiptPNG(rec, qrcode.DefaultSize)
	if errors.Is(err, qrcode.ErrNotCompleted) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":   "payment_not_completed",
			"message": "Payment is " + rec.Status + ", no receipt is available.",
		})
		return
	}
	if err != nil {
		h.log.Error("receipt qr code", zap.String("checkoutRequestId", rec.CheckoutRequestID), zap.Error(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) AdminList(c *gin.Context) {
	page, limit, err := order.ParsePagination(c.Query("page"), c.Query("limit"))
	if err != nil {
		h.fail(c, err)
		return
	}

	p, err := h.payments.List(c.Request.Context(), c.Query("status"), page, limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, pageBody(p))
}

func pageBody(p *order.Page) gin.H {
	return gin.H{
		"status":     "success",
		"data":       p.Data,
		"total":      p.Total,
		"page":       p.Page,
		"limit":      p.Limit,
		"totalPages": p.TotalPages,
	}
}
