package models

import "time"

const WarehouseTable = "dms_warehouses"

// WarehouseMode decides who the borrower of a loan is.
type WarehouseMode string

const (
	// ModePersonal: the acting user borrows for themselves and returns by token.
	ModePersonal WarehouseMode = "personal"
	// ModeOrganization: staff lend to named borrowers and take returns by scan code.
	ModeOrganization WarehouseMode = "organization"
)

type Warehouse struct {
	ID        string        `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string        `gorm:"size:200;not null" json:"name"`
	Mode      WarehouseMode `gorm:"size:20;not null;default:'personal'" json:"mode"`
	CreatedBy string        `gorm:"size:120;not null;index" json:"createdBy"`
	Members   []User        `gorm:"many2many:dms_warehouse_members;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func (Warehouse) TableName() string { return WarehouseTable }

func (m WarehouseMode) Valid() bool {
	return m == ModePersonal || m == ModeOrganization
}
