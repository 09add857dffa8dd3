package order

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go-mpesa/payment/db"

	"github.com/shopspring/decimal"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	DefaultMaxAmount = 250000
)

// Safaricom numbers in international form, no plus sign.
var phonePattern = regexp.MustCompile(`^254(7|1)\d{8}$`)

var phoneCleaner = strings.NewReplacer(" ", "", "-", "")

// NormalizePhone rewrites 07XXXXXXXX, 01XXXXXXXX and +254... into 254....
// It does not validate.
func NormalizePhone(raw string) string {
	p := phoneCleaner.Replace(strings.TrimSpace(raw))
	p = strings.TrimPrefix(p, "+")
	if len(p) == 10 && p[0] == '0' {
		p = "254" + p[1:]
	}
	return p
}

func ValidatePhone(raw string) (string, error) {
	p := NormalizePhone(raw)
	if !phonePattern.MatchString(p) {
		return "", fmt.Errorf("%w: phone must be a Safaricom mobile number such as 254712345678", ErrValidation)
	}
	return p, nil
}

// ValidateAmount accepts whole shillings between 1 and maxAmount.
func ValidateAmount(amount decimal.Decimal, maxAmount int64) (int64, error) {
	if !amount.IsInteger() {
		return 0, fmt.Errorf("%w: amount must be a whole number of shillings", ErrValidation)
	}
	if amount.LessThan(decimal.NewFromInt(1)) {
		return 0, fmt.Errorf("%w: amount must be at least 1", ErrValidation)
	}
	if amount.GreaterThan(decimal.NewFromInt(maxAmount)) {
		return 0, fmt.Errorf("%w: amount must not exceed %d", ErrValidation, maxAmount)
	}
	return amount.IntPart(), nil
}

// ParsePagination reads page and limit query values. Empty values take the
// defaults; anything out of range is rejected rather than clamped.
func ParsePagination(pageRaw, limitRaw string) (page, limit int, err error) {
	page, limit = DefaultPage, DefaultLimit

	if pageRaw != "" {
		page, err = strconv.Atoi(pageRaw)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("%w: page must be an integer >= 1", ErrValidation)
		}
	}
	if limitRaw != "" {
		limit, err = strconv.Atoi(limitRaw)
		if err != nil || limit < 1 || limit > MaxLimit {
			return 0, 0, fmt.Errorf("%w: limit must be an integer between 1 and %d", ErrValidation, MaxLimit)
		}
	}
	return page, limit, nil
}

func ValidateStatus(status string) error {
	switch status {
	case "", db.StatusPending, db.StatusCompleted, db.StatusFailed:
		return nil
	}
	return fmt.Errorf("%w: status must be one of %s, %s, %s", ErrValidation, db.StatusPending, db.StatusCompleted, db.StatusFailed)
}
