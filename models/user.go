package models

import (
	"time"
)

// User is identified by the shared id people type in at the front desk.
type User struct {
	ID          string `gorm:"primaryKey;size:120" json:"id"`
	DisplayName string `gorm:"size:255;not null" json:"displayName"`
	IsAdmin     bool   `gorm:"not null;default:false" json:"isAdmin"`

	LastLoginAt *time.Time `gorm:"index" json:"lastLoginAt,omitempty"`
	LastSeenAt  *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`
	LoginCount  int64      `gorm:"not null;default:0" json:"loginCount"`
	LastLoginIP string     `gorm:"size:45" json:"-"`
	LastLoginUA string     `gorm:"size:255" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "dms_users"
}
