package db

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/Matti-Krebelder/DMS/ledger"
	"github.com/Matti-Krebelder/DMS/models"

	"gorm.io/gorm"
)

const scanCodeAttempts = 50

func (r *Repo) ScanCodeTaken(ctx context.Context, warehouseID, code string) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Device{}).
		Where("warehouse_id = ? AND scan_code = ?", warehouseID, code).
		Count(&n).Error
	return n > 0, err
}

// CreateDevice inserts a device, generating a 6-digit scan code when none is given.
func (r *Repo) CreateDevice(ctx context.Context, d *models.Device) error {
	d.Name = strings.TrimSpace(d.Name)
	d.ScanCode = strings.TrimSpace(d.ScanCode)
	if d.Name == "" {
		return fmt.Errorf("device name: %w", ledger.ErrInvalidInput)
	}
	if d.StockQuantity == 0 {
		d.StockQuantity = 1
	}
	if d.StockQuantity < 1 {
		return fmt.Errorf("stock %d: %w", d.StockQuantity, ledger.ErrInvalidQuantity)
	}
	if d.UnitPrice < 0 {
		return fmt.Errorf("price %.2f: %w", d.UnitPrice, ledger.ErrInvalidInput)
	}

	if d.ScanCode == "" {
		code, err := r.freeScanCode(ctx, d.WarehouseID)
		if err != nil {
			return err
		}
		d.ScanCode = code
	} else if taken, err := r.ScanCodeTaken(ctx, d.WarehouseID, d.ScanCode); err != nil {
		return err
	} else if taken {
		return fmt.Errorf("%q: %w", d.ScanCode, ledger.ErrScanCodeTaken)
	}

	d.Status = ledger.DeriveStatus(d.Defective, nil).String()
	return r.DB.WithContext(ctx).Create(d).Error
}

func (r *Repo) freeScanCode(ctx context.Context, warehouseID string) (string, error) {
	for i := 0; i < scanCodeAttempts; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(900000))
		if err != nil {
			return "", err
		}
		code := fmt.Sprintf("%06d", 100000+n.Int64())
		taken, err := r.ScanCodeTaken(ctx, warehouseID, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free scan code after %d attempts", scanCodeAttempts)
}

func (r *Repo) FindDevice(ctx context.Context, warehouseID string, id int64) (*models.Device, error) {
	var d models.Device
	if err := r.DB.WithContext(ctx).First(&d, "id = ? AND warehouse_id = ?", id, warehouseID).Error; err != nil {
		return nil, notFound(fmt.Sprintf("device %d", id), err)
	}
	return &d, nil
}

func (r *Repo) FindDeviceByScanCode(ctx context.Context, warehouseID, code string) (*models.Device, error) {
	var d models.Device
	if err := r.DB.WithContext(ctx).First(&d, "scan_code = ? AND warehouse_id = ?", strings.TrimSpace(code), warehouseID).Error; err != nil {
		return nil, notFound("scan code "+code, err)
	}
	return &d, nil
}

// DeleteDevice refuses while any unit of the device is out on loan.
func (r *Repo) DeleteDevice(ctx context.Context, warehouseID string, id int64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockWarehouse(tx, warehouseID); err != nil {
			return err
		}
		var d models.Device
		if err := tx.First(&d, "id = ? AND warehouse_id = ?", id, warehouseID).Error; err != nil {
			return notFound(fmt.Sprintf("device %d", id), err)
		}
		var lines int64
		if err := tx.Model(&models.LoanLine{}).Where("device_id = ?", id).Count(&lines).Error; err != nil {
			return err
		}
		if lines > 0 {
			return fmt.Errorf("%s: %w", d.Name, ErrDeviceOnLoan)
		}
		return tx.Delete(&d).Error
	})
}

// DeviceRow is a device with the borrowers currently holding it.
type DeviceRow struct {
	models.Device
	Borrowers      string     `json:"borrowers"`
	BorrowerGroups string     `json:"borrowerGroups"`
	BorrowerEmails string     `json:"borrowerEmails"`
	Destinations   string     `json:"destinations"`
	LastBorrowedAt *time.Time `json:"lastBorrowedAt,omitempty"`
}

type DeviceQuery struct {
	Search     string
	Status     string // "", available, borrowed, defective
	Categories []string
	Groups     []string
	SortBy     string // name, category, location, status, model
	Page       int
	Size       int // 0 returns every row
}

var sortColumns = map[string]string{
	"name":     "d.name",
	"category": "d.category",
	"location": "d.location",
	"status":   "d.status",
	"model":    "d.model",
}

func (r *Repo) SearchDevices(ctx context.Context, warehouseID string, q DeviceQuery) ([]DeviceRow, error) {
	db := r.DB.WithContext(ctx)

	active := db.
		Table(models.LoanLineTable+" ll").
		Select(`
			ll.device_id,
			COALESCE(string_agg(DISTINCT l.borrower_name, ', '), '') AS borrowers,
			COALESCE(string_agg(DISTINCT NULLIF(l.borrower_group, ''), ', '), '') AS borrower_groups,
			COALESCE(string_agg(DISTINCT NULLIF(l.borrower_email, ''), ', '), '') AS borrower_emails,
			COALESCE(string_agg(DISTINCT NULLIF(l.destination, ''), ', '), '') AS destinations,
			MAX(l.borrowed_at) AS last_borrowed_at
		`).
		Joins("JOIN "+models.LoanTable+" l ON l.id = ll.loan_id AND l.status = ?", models.LoanActive).
		Group("ll.device_id")

	qry := db.
		Table(models.DeviceTable+" d").
		Select(`d.*,
			COALESCE(al.borrowers, '') AS borrowers,
			COALESCE(al.borrower_groups, '') AS borrower_groups,
			COALESCE(al.borrower_emails, '') AS borrower_emails,
			COALESCE(al.destinations, '') AS destinations,
			al.last_borrowed_at`).
		Joins("LEFT JOIN (?) AS al ON al.device_id = d.id", active).
		Where("d.warehouse_id = ?", warehouseID)

	if s := strings.TrimSpace(q.Search); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		cols := []string{"d.name", "d.scan_code", "d.location", "d.serial_number", "d.model", "d.category",
			"COALESCE(al.borrowers, '')", "COALESCE(al.borrower_groups, '')"}
		conds := make([]string, len(cols))
		args := make([]any, len(cols))
		for i, c := range cols {
			conds[i] = "LOWER(" + c + ") LIKE ?"
			args[i] = pat
		}
		qry = qry.Where("("+strings.Join(conds, " OR ")+")", args...)
	}
	switch q.Status {
	case "available":
		qry = qry.Where("d.defective = FALSE AND al.device_id IS NULL")
	case "borrowed":
		qry = qry.Where("d.defective = FALSE AND al.device_id IS NOT NULL")
	case "defective":
		qry = qry.Where("d.defective = TRUE")
	}
	if len(q.Categories) > 0 {
		qry = qry.Where("d.category IN ?", q.Categories)
	}
	if len(q.Groups) > 0 {
		qry = qry.Where(`EXISTS (SELECT 1 FROM `+models.LoanLineTable+` gl
			JOIN `+models.LoanTable+` g ON g.id = gl.loan_id AND g.status = ?
			WHERE gl.device_id = d.id AND g.borrower_group IN ?)`, models.LoanActive, q.Groups)
	}

	if col, ok := sortColumns[q.SortBy]; ok && q.SortBy != "name" {
		qry = qry.Order(col + " ASC")
	}
	qry = qry.Order("d.name ASC").Order("d.id ASC")

	if q.Size > 0 {
		page, size := clampPage(q.Page, q.Size, 500)
		qry = qry.Offset((page - 1) * size).Limit(size)
	}

	var rows []DeviceRow
	if err := qry.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type DeviceFacets struct {
	Categories []string `json:"categories"`
	Groups     []string `json:"groups"`
}

// Facets lists the distinct categories and borrower groups for filter menus.
func (r *Repo) Facets(ctx context.Context, warehouseID string) (DeviceFacets, error) {
	f := DeviceFacets{Categories: []string{}, Groups: []string{}}
	db := r.DB.WithContext(ctx)
	if err := db.Model(&models.Device{}).
		Where("warehouse_id = ? AND category <> ''", warehouseID).
		Distinct().Order("category").
		Pluck("category", &f.Categories).Error; err != nil {
		return f, err
	}
	if err := db.Model(&models.Loan{}).
		Where("warehouse_id = ? AND borrower_group <> ''", warehouseID).
		Distinct().Order("borrower_group").
		Pluck("borrower_group", &f.Groups).Error; err != nil {
		return f, err
	}
	return f, nil
}
