package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrExhausted        = errors.New("no units available")
	ErrCapReached       = errors.New("cart already holds every available unit")
	ErrStorage          = errors.New("storage failure")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrDefective        = errors.New("device is marked defective")
	ErrStockBelowLoaned = errors.New("stock quantity below loaned quantity")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrInvalidBorrower  = errors.New("borrower name required")
	ErrInvalidInput     = errors.New("invalid input")
	ErrScanCodeTaken    = errors.New("scan code already in use")
)

var known = []error{
	ErrNotFound, ErrExhausted, ErrCapReached, ErrStorage, ErrEmptyCart,
	ErrDefective, ErrStockBelowLoaned, ErrInvalidQuantity, ErrInvalidBorrower, ErrInvalidInput, ErrScanCodeTaken,
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// classified reports whether err already carries one of the ledger kinds.
func classified(err error) bool {
	for _, k := range known {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
