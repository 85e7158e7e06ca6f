package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/Matti-Krebelder/DMS/ledger"
	"github.com/Matti-Krebelder/DMS/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func withLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Lines", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	}).Preload("Lines.Device")
}

func (r *Repo) FindLoan(ctx context.Context, warehouseID, loanID string) (*models.Loan, error) {
	if _, err := uuid.Parse(loanID); err != nil {
		return nil, fmt.Errorf("loan %s: %w", loanID, ledger.ErrNotFound)
	}
	var l models.Loan
	if err := withLines(r.DB.WithContext(ctx)).
		First(&l, "id = ? AND warehouse_id = ?", loanID, warehouseID).Error; err != nil {
		return nil, notFound("loan "+loanID, err)
	}
	return &l, nil
}

type LoanFilter struct {
	Status     string // "", active, returned
	Borrower   string // substring of name
	BorrowerID string
	Page       int
	Size       int // 0 returns every row
}

type PagedLoans struct {
	Total int64         `json:"total"`
	Items []models.Loan `json:"items"`
}

func (r *Repo) ListLoans(ctx context.Context, warehouseID string, f LoanFilter) (*PagedLoans, error) {
	q := r.DB.WithContext(ctx).Model(&models.Loan{}).Where("warehouse_id = ?", warehouseID)
	switch f.Status {
	case string(models.LoanActive), string(models.LoanReturned):
		q = q.Where("status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Borrower); s != "" {
		q = q.Where("LOWER(borrower_name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if f.BorrowerID != "" {
		q = q.Where("borrower_id = ?", f.BorrowerID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	q = withLines(q).Order("borrowed_at DESC")
	if f.Size > 0 {
		page, size := clampPage(f.Page, f.Size, 200)
		q = q.Offset((page - 1) * size).Limit(size)
	}
	var ls []models.Loan
	if err := q.Find(&ls).Error; err != nil {
		return nil, err
	}
	return &PagedLoans{Total: total, Items: ls}, nil
}

// FindActiveLoanByToken resolves the code printed on a borrow slip.
func (r *Repo) FindActiveLoanByToken(ctx context.Context, warehouseID, token string) (*models.Loan, error) {
	var l models.Loan
	if err := withLines(r.DB.WithContext(ctx)).
		First(&l, "warehouse_id = ? AND return_token = ? AND status = ?", warehouseID, strings.TrimSpace(token), models.LoanActive).Error; err != nil {
		return nil, notFound("return token "+token, err)
	}
	return &l, nil
}

// FindActiveLoansByScanCode lists active loans holding the scanned device.
func (r *Repo) FindActiveLoansByScanCode(ctx context.Context, warehouseID, code string) ([]models.Loan, error) {
	var ls []models.Loan
	err := withLines(r.DB.WithContext(ctx)).
		Where("warehouse_id = ? AND status = ?", warehouseID, models.LoanActive).
		Where("id IN (SELECT loan_id FROM "+models.LoanLineTable+" WHERE scan_code = ?)", strings.TrimSpace(code)).
		Order("borrowed_at ASC").
		Find(&ls).Error
	return ls, err
}

// ActiveLoansForDevice lists active loans that include the device.
func (r *Repo) ActiveLoansForDevice(ctx context.Context, warehouseID string, deviceID int64) ([]models.Loan, error) {
	var ls []models.Loan
	err := withLines(r.DB.WithContext(ctx)).
		Where("warehouse_id = ? AND status = ?", warehouseID, models.LoanActive).
		Where("id IN (SELECT loan_id FROM "+models.LoanLineTable+" WHERE device_id = ?)", deviceID).
		Order("borrowed_at ASC").
		Find(&ls).Error
	return ls, err
}

// ListActiveLoansForBorrower backs the "my loans" view in personal warehouses.
func (r *Repo) ListActiveLoansForBorrower(ctx context.Context, warehouseID, borrowerID string) ([]models.Loan, error) {
	res, err := r.ListLoans(ctx, warehouseID, LoanFilter{Status: string(models.LoanActive), BorrowerID: borrowerID})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}
