package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const defaultTimeout = 5 * time.Second

// Store is the payment ledger. Uniqueness of checkout ids and the
// Pending-only status transition are enforced by the database.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewStore(db *gorm.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{db: db, timeout: timeout}
}

func (s *Store) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

func (s *Store) InsertPending(ctx context.Context, rec *PaymentRecord) error {
	tx, cancel := s.conn(ctx)
	defer cancel()

	rec.Status = StatusPending
	return storageError("insert payment", tx.Create(rec).Error)
}

func (s *Store) FindByCheckoutID(ctx context.Context, checkoutID string) (*PaymentRecord, error) {
	tx, cancel := s.conn(ctx)
	defer cancel()

	var rec PaymentRecord
	if err := tx.Where("checkout_request_id = ?", checkoutID).First(&rec).Error; err != nil {
		return nil, storageError("find payment", err)
	}
	return &rec, nil
}

// UpdateStatus moves a Pending record to a terminal status. It reports false
// when no Pending record matched, either because the id is unknown or because
// another delivery already finalised it.
func (s *Store) UpdateStatus(ctx context.Context, checkoutID string, u StatusUpdate) (bool, error) {
	if u.Status != StatusCompleted && u.Status != StatusFailed {
		return false, fmt.Errorf("update payment: %w: %q is not a terminal status", ErrStorage, u.Status)
	}

	tx, cancel := s.conn(ctx)
	defer cancel()

	updates := map[string]any{
		"status":      u.Status,
		"result_desc": u.ResultDesc,
	}
	if u.ReceiptNumber != "" {
		updates["mpesa_receipt_number"] = u.ReceiptNumber
	}
	if u.TransactionDate != nil {
		updates["transaction_date"] = *u.TransactionDate
	}

	res := tx.Model(&PaymentRecord{}).
		Where("checkout_request_id = ? AND status = ?", checkoutID, StatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, storageError("update payment", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// FillReceipt records the receipt of a payment that was marked Completed
// without one, as happens when a status query beats the callback. The status
// is untouched; it reports false when there was nothing to fill.
func (s *Store) FillReceipt(ctx context.Context, checkoutID, receipt string, txDate *time.Time) (bool, error) {
	if receipt == "" {
		return false, nil
	}

	tx, cancel := s.conn(ctx)
	defer cancel()

	updates := map[string]any{"mpesa_receipt_number": receipt}
	if txDate != nil {
		updates["transaction_date"] = *txDate
	}

	res := tx.Model(&PaymentRecord{}).
		Where("checkout_request_id = ? AND status = ? AND mpesa_receipt_number IS NULL", checkoutID, StatusCompleted).
		Updates(updates)
	if res.Error != nil {
		return false, storageError("fill receipt", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) FindByPhone(ctx context.Context, phone string, page, limit int) ([]PaymentRecord, error) {
	tx, cancel := s.conn(ctx)
	defer cancel()

	records := []PaymentRecord{}
	err := tx.Where("phone = ?", phone).
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, storageError("list payments by phone", err)
	}
	return records, nil
}

func (s *Store) CountByPhone(ctx context.Context, phone string) (int64, error) {
	tx, cancel := s.conn(ctx)
	defer cancel()

	var total int64
	if err := tx.Model(&PaymentRecord{}).Where("phone = ?", phone).Count(&total).Error; err != nil {
		return 0, storageError("count payments by phone", err)
	}
	return total, nil
}

// List returns every record, newest first, optionally narrowed to one status.
func (s *Store) List(ctx context.Context, status string, page, limit int) ([]PaymentRecord, error) {
	tx, cancel := s.conn(ctx)
	defer cancel()

	q := tx.Order("created_at DESC").Order("id DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	records := []PaymentRecord{}
	if err := q.Offset((page - 1) * limit).Limit(limit).Find(&records).Error; err != nil {
		return nil, storageError("list payments", err)
	}
	return records, nil
}

func (s *Store) Count(ctx context.Context, status string) (int64, error) {
	tx, cancel := s.conn(ctx)
	defer cancel()

	q := tx.Model(&PaymentRecord{})
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, storageError("count payments", err)
	}
	return total, nil
}

// PendingBefore returns the oldest Pending records created before cutoff.
func (s *Store) PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]PaymentRecord, error) {
	tx, cancel := s.conn(ctx)
	defer cancel()

	records := []PaymentRecord{}
	err := tx.Where("status = ? AND created_at < ?", StatusPending, cutoff).
		Order("created_at ASC").Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, storageError("list pending payments", err)
	}
	return records, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storageError("ping", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return storageError("ping", sqlDB.PingContext(ctx))
}
