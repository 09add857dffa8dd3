package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
)

// PaymentRecord is one STK Push charge attempt. Rows are never deleted.
type PaymentRecord struct {
	ID                 string     `gorm:"primaryKey;size:36" json:"id"`
	PayerID            *uint      `gorm:"index" json:"payerId"`
	Phone              string     `gorm:"size:12;not null;index:idx_phone_created,priority:1" json:"phone"`
	Amount             int64      `gorm:"not null" json:"amount"` // whole shillings
	CheckoutRequestID  string     `gorm:"size:64;not null;uniqueIndex" json:"checkoutRequestId"`
	MerchantRequestID  string     `gorm:"size:64" json:"merchantRequestId,omitempty"`
	MpesaReceiptNumber *string    `gorm:"size:32" json:"mpesaReceiptNumber,omitempty"`
	ResultDesc         string     `gorm:"size:255" json:"resultDesc,omitempty"`
	TransactionDate    *time.Time `json:"transactionDate,omitempty"`
	Status             string     `gorm:"size:16;not null;index" json:"status"`
	CreatedAt          time.Time  `gorm:"index:idx_phone_created,priority:2" json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func (p *PaymentRecord) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (p *PaymentRecord) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

// StatusUpdate carries the fields written together with a terminal status.
type StatusUpdate struct {
	Status          string
	ReceiptNumber   string
	ResultDesc      string
	TransactionDate *time.Time
}
