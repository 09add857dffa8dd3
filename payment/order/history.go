package order

import (
	"context"
	"fmt"

	"go-mpesa/payment/db"
)

type HistoryQuery struct {
	Phone string
	Page  int
	Limit int
}

type Page struct {
	Data       []db.PaymentRecord `json:"data"`
	Total      int64              `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"totalPages"`
}

func newPage(records []db.PaymentRecord, total int64, page, limit int) *Page {
	return &Page{
		Data:       records,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int((total + int64(limit) - 1) / int64(limit)),
	}
}

// History returns one page of a payer's records, newest first. A page past
// the end is empty, not an error.
func (s *Service) History(ctx context.Context, q HistoryQuery) (*Page, error) {
	phone, err := ValidatePhone(q.Phone)
	if err != nil {
		return nil, err
	}
	page, limit, err := normalizePaging(q.Page, q.Limit)
	if err != nil {
		return nil, err
	}

	total, err := s.store.CountByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	records, err := s.store.FindByPhone(ctx, phone, page, limit)
	if err != nil {
		return nil, err
	}
	return newPage(records, total, page, limit), nil
}

// List pages through every record for the admin view.
func (s *Service) List(ctx context.Context, status string, page, limit int) (*Page, error) {
	if err := ValidateStatus(status); err != nil {
		return nil, err
	}
	page, limit, err := normalizePaging(page, limit)
	if err != nil {
		return nil, err
	}

	total, err := s.store.Count(ctx, status)
	if err != nil {
		return nil, err
	}
	records, err := s.store.List(ctx, status, page, limit)
	if err != nil {
		return nil, err
	}
	return newPage(records, total, page, limit), nil
}

func normalizePaging(page, limit int) (int, int, error) {
	if page == 0 {
		page = DefaultPage
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if page < 1 {
		return 0, 0, fmt.Errorf("%w: page must be an integer >= 1", ErrValidation)
	}
	if limit < 1 || limit > MaxLimit {
		return 0, 0, fmt.Errorf("%w: limit must be an integer between 1 and %d", ErrValidation, MaxLimit)
	}
	return page, limit, nil
}
