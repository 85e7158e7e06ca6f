package models

import (
	"time"

	"gorm.io/datatypes"
)

// LabelLayout stores the label designer output as raw JSON.
type LabelLayout struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	WarehouseID string         `gorm:"type:uuid;not null;index" json:"warehouseId"`
	Name        string         `gorm:"size:200;not null" json:"name"`
	LayoutData  datatypes.JSON `gorm:"type:jsonb;not null" json:"layoutData"`
	IsDefault   bool           `gorm:"not null;default:false" json:"isDefault"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (LabelLayout) TableName() string { return "dms_label_layouts" }
