package ledger

import (
	"context"
	"time"

	"github.com/Matti-Krebelder/DMS/models"
)

// Store is the persistence port the ledger runs on. Lookups return (nil, nil)
// when the record does not exist.
type Store interface {
	// Atomic runs fn inside one transaction scoped to the warehouse.
	Atomic(ctx context.Context, warehouseID string, fn func(tx Store) error) error

	DeviceByID(ctx context.Context, warehouseID string, id int64) (*models.Device, error)
	DeviceByScanCode(ctx context.Context, warehouseID, code string) (*models.Device, error)
	SaveDevice(ctx context.Context, d *models.Device) error
	UpdateDeviceStatus(ctx context.Context, deviceID int64, status string) error

	// LoanedQuantity sums line quantities of active loans for the device.
	LoanedQuantity(ctx context.Context, deviceID int64) (int, error)
	// ActiveBorrowers returns borrower name and summed quantity per borrower.
	ActiveBorrowers(ctx context.Context, deviceID int64) ([]BorrowerQuantity, error)

	LoanByID(ctx context.Context, warehouseID, loanID string) (*models.Loan, error)
	ReturnTokenInUse(ctx context.Context, warehouseID, token string) (bool, error)
	InsertLoan(ctx context.Context, loan *models.Loan) error
	MarkLoanReturned(ctx context.Context, loanID string, at time.Time, by string) error

	LoanLine(ctx context.Context, loanID string, deviceID int64) (*models.LoanLine, error)
	InsertLoanLine(ctx context.Context, line *models.LoanLine) error
	UpdateLoanLineQuantity(ctx context.Context, lineID int64, quantity int) error
	DeleteLoanLine(ctx context.Context, lineID int64) error
	CountLoanLines(ctx context.Context, loanID string) (int64, error)
}
