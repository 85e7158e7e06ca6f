// models/device_loan.go
package models

import "time"

const (
	DeviceTable   = "dms_devices"
	LoanTable     = "dms_loans"
	LoanLineTable = "dms_loan_lines"
)

type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
)

// Device is one inventory record; StockQuantity interchangeable units share it.
type Device struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	WarehouseID     string    `gorm:"type:uuid;not null;uniqueIndex:idx_dms_device_scan,priority:1;index" json:"warehouseId"`
	Name            string    `gorm:"size:200;not null" json:"name"`
	ScanCode        string    `gorm:"size:64;not null;uniqueIndex:idx_dms_device_scan,priority:2" json:"scanCode"`
	Location        string    `gorm:"size:200" json:"location"`
	Description     string    `gorm:"type:text" json:"description"` // append-only change log
	SerialNumber    string    `gorm:"size:120" json:"serialNumber"`
	Model           string    `gorm:"size:120" json:"model"`
	Category        string    `gorm:"size:120;index" json:"category"`
	InventoryNumber string    `gorm:"size:120" json:"inventoryNumber"`
	PurchaseDate    string    `gorm:"size:32" json:"purchaseDate"`
	UnitPrice       float64   `gorm:"not null;default:0" json:"unitPrice"`
	StockQuantity   int       `gorm:"not null;default:1;check:stock_quantity >= 1" json:"stockQuantity"`
	Manufacturer    string    `gorm:"size:120" json:"manufacturer"`
	Defective       bool      `gorm:"not null;default:false" json:"defective"`
	Status          string    `gorm:"size:1000;not null;default:'available'" json:"status"` // derived, see ledger.Status
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Loan is one borrow transaction. It is never deleted; returned loans are history.
type Loan struct {
	ID            string     `gorm:"type:uuid;primaryKey" json:"id"`
	WarehouseID   string     `gorm:"type:uuid;not null;index" json:"warehouseId"`
	BorrowerID    string     `gorm:"size:120;index" json:"borrowerId"`
	BorrowerName  string     `gorm:"size:200;not null" json:"borrowerName"`
	BorrowerEmail string     `gorm:"size:255" json:"borrowerEmail,omitempty"`
	BorrowerGroup string     `gorm:"size:120" json:"borrowerGroup,omitempty"`
	Destination   string     `gorm:"size:200" json:"destination,omitempty"`
	ReturnToken   string     `gorm:"size:16;not null" json:"returnToken"`
	Status        LoanStatus `gorm:"size:20;not null;default:'active';index" json:"status"`
	BorrowedAt    time.Time  `gorm:"index;not null" json:"borrowedAt"`
	ReturnedAt    *time.Time `json:"returnedAt,omitempty"`
	ReturnedBy    *string    `gorm:"size:120" json:"returnedBy,omitempty"`
	Lines         []LoanLine `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// LoanLine is the quantity of one device within one loan.
type LoanLine struct {
	ID       int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	LoanID   string `gorm:"type:uuid;not null;uniqueIndex:idx_dms_line_loan_device,priority:1" json:"loanId"`
	DeviceID int64  `gorm:"not null;uniqueIndex:idx_dms_line_loan_device,priority:2;index" json:"deviceId"`
	ScanCode string `gorm:"size:64;not null" json:"scanCode"`
	Quantity int    `gorm:"not null;check:quantity >= 1" json:"quantity"`

	Device *Device `gorm:"foreignKey:DeviceID;constraint:OnDelete:RESTRICT" json:"device,omitempty"`
}

func (Device) TableName() string   { return DeviceTable }
func (Loan) TableName() string     { return LoanTable }
func (LoanLine) TableName() string { return LoanLineTable }
