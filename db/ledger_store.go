package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Matti-Krebelder/DMS/ledger"
	"github.com/Matti-Krebelder/DMS/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ledgerStore implements ledger.Store on gorm. Inside Atomic, db is the transaction.
type ledgerStore struct{ db *gorm.DB }

func (r *Repo) LedgerStore() ledger.Store { return &ledgerStore{db: r.DB} }

// lockWarehouse takes the row lock that serializes ledger writes across instances.
func lockWarehouse(tx *gorm.DB, warehouseID string) error {
	if _, err := uuid.Parse(warehouseID); err != nil {
		return fmt.Errorf("warehouse %s: %w", warehouseID, ledger.ErrNotFound)
	}
	var w models.Warehouse
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&w, "id = ?", warehouseID).Error; err != nil {
		return notFound("warehouse "+warehouseID, err)
	}
	return nil
}

func (s *ledgerStore) Atomic(ctx context.Context, warehouseID string, fn func(tx ledger.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockWarehouse(tx, warehouseID); err != nil {
			return err
		}
		return fn(&ledgerStore{db: tx})
	})
}

func firstOrNil[T any](res *gorm.DB, v *T) (*T, error) {
	if err := res.Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func (s *ledgerStore) DeviceByID(ctx context.Context, warehouseID string, id int64) (*models.Device, error) {
	var d models.Device
	return firstOrNil(s.db.WithContext(ctx).First(&d, "id = ? AND warehouse_id = ?", id, warehouseID), &d)
}

func (s *ledgerStore) DeviceByScanCode(ctx context.Context, warehouseID, code string) (*models.Device, error) {
	var d models.Device
	return firstOrNil(s.db.WithContext(ctx).First(&d, "scan_code = ? AND warehouse_id = ?", code, warehouseID), &d)
}

func (s *ledgerStore) SaveDevice(ctx context.Context, d *models.Device) error {
	return s.db.WithContext(ctx).Save(d).Error
}

func (s *ledgerStore) UpdateDeviceStatus(ctx context.Context, deviceID int64, status string) error {
	return s.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", deviceID).
		Update("status", status).Error
}

func (s *ledgerStore) activeLines(ctx context.Context, deviceID int64) *gorm.DB {
	return s.db.WithContext(ctx).
		Table(models.LoanLineTable+" ll").
		Joins("JOIN "+models.LoanTable+" l ON l.id = ll.loan_id").
		Where("ll.device_id = ? AND l.status = ?", deviceID, models.LoanActive)
}

func (s *ledgerStore) LoanedQuantity(ctx context.Context, deviceID int64) (int, error) {
	var n int
	err := s.activeLines(ctx, deviceID).
		Select("COALESCE(SUM(ll.quantity), 0)").
		Scan(&n).Error
	return n, err
}

func (s *ledgerStore) ActiveBorrowers(ctx context.Context, deviceID int64) ([]ledger.BorrowerQuantity, error) {
	var rows []ledger.BorrowerQuantity
	err := s.activeLines(ctx, deviceID).
		Select("l.borrower_name AS name, SUM(ll.quantity) AS quantity").
		Group("l.borrower_name").
		Order("l.borrower_name").
		Scan(&rows).Error
	return rows, err
}

func (s *ledgerStore) LoanByID(ctx context.Context, warehouseID, loanID string) (*models.Loan, error) {
	if _, err := uuid.Parse(loanID); err != nil {
		return nil, nil
	}
	var l models.Loan
	return firstOrNil(s.db.WithContext(ctx).First(&l, "id = ? AND warehouse_id = ?", loanID, warehouseID), &l)
}

func (s *ledgerStore) ReturnTokenInUse(ctx context.Context, warehouseID, token string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Loan{}).
		Where("warehouse_id = ? AND return_token = ? AND status = ?", warehouseID, token, models.LoanActive).
		Count(&n).Error
	return n > 0, err
}

func (s *ledgerStore) InsertLoan(ctx context.Context, loan *models.Loan) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(loan).Error
}

func (s *ledgerStore) MarkLoanReturned(ctx context.Context, loanID string, at time.Time, by string) error {
	return s.db.WithContext(ctx).Model(&models.Loan{}).
		Where("id = ?", loanID).
		Updates(map[string]any{
			"status":      models.LoanReturned,
			"returned_at": at,
			"returned_by": by,
		}).Error
}

func (s *ledgerStore) LoanLine(ctx context.Context, loanID string, deviceID int64) (*models.LoanLine, error) {
	var l models.LoanLine
	return firstOrNil(s.db.WithContext(ctx).First(&l, "loan_id = ? AND device_id = ?", loanID, deviceID), &l)
}

func (s *ledgerStore) InsertLoanLine(ctx context.Context, line *models.LoanLine) error {
	return s.db.WithContext(ctx).Omit(clause.Associations).Create(line).Error
}

func (s *ledgerStore) UpdateLoanLineQuantity(ctx context.Context, lineID int64, quantity int) error {
	return s.db.WithContext(ctx).Model(&models.LoanLine{}).
		Where("id = ?", lineID).
		Update("quantity", quantity).Error
}

func (s *ledgerStore) DeleteLoanLine(ctx context.Context, lineID int64) error {
	return s.db.WithContext(ctx).Delete(&models.LoanLine{}, lineID).Error
}

func (s *ledgerStore) CountLoanLines(ctx context.Context, loanID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.LoanLine{}).
		Where("loan_id = ?", loanID).
		Count(&n).Error
	return n, err
}
