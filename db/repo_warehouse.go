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

func (r *Repo) CreateWarehouse(ctx context.Context, name string, mode models.WarehouseMode, ownerID string) (*models.Warehouse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("warehouse name: %w", ledger.ErrInvalidInput)
	}
	if mode == "" {
		mode = models.ModePersonal
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("warehouse mode %q: %w", mode, ledger.ErrInvalidInput)
	}
	w := &models.Warehouse{ID: uuid.NewString(), Name: name, Mode: mode, CreatedBy: ownerID}
	if err := r.DB.WithContext(ctx).Create(w).Error; err != nil {
		return nil, err
	}
	return w, nil
}

const memberSubquery = "SELECT warehouse_id FROM dms_warehouse_members WHERE user_id = ?"

// ListWarehousesForUser returns warehouses the user owns or is a member of.
func (r *Repo) ListWarehousesForUser(ctx context.Context, userID string) ([]models.Warehouse, error) {
	var ws []models.Warehouse
	err := r.DB.WithContext(ctx).
		Where("created_by = ? OR id IN ("+memberSubquery+")", userID, userID).
		Order("name ASC").
		Find(&ws).Error
	return ws, err
}

func (r *Repo) FindWarehouse(ctx context.Context, id string) (*models.Warehouse, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("warehouse %s: %w", id, ledger.ErrNotFound)
	}
	var w models.Warehouse
	if err := r.DB.WithContext(ctx).Preload("Members").First(&w, "id = ?", id).Error; err != nil {
		return nil, notFound("warehouse "+id, err)
	}
	return &w, nil
}

func (r *Repo) AllWarehouseIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.DB.WithContext(ctx).Model(&models.Warehouse{}).Pluck("id", &ids).Error
	return ids, err
}

type WarehouseUpdate struct {
	Name      *string
	Mode      *models.WarehouseMode
	MemberIDs *[]string
}

// UpdateWarehouse changes name, mode or member list. Only the owner may call it.
func (r *Repo) UpdateWarehouse(ctx context.Context, id, actorID string, up WarehouseUpdate) (*models.Warehouse, error) {
	w, err := r.FindWarehouse(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.CreatedBy != actorID {
		return nil, ErrForbidden
	}
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if up.Name != nil {
			name := strings.TrimSpace(*up.Name)
			if name == "" {
				return fmt.Errorf("warehouse name: %w", ledger.ErrInvalidInput)
			}
			w.Name = name
		}
		if up.Mode != nil {
			if !up.Mode.Valid() {
				return fmt.Errorf("warehouse mode %q: %w", *up.Mode, ledger.ErrInvalidInput)
			}
			w.Mode = *up.Mode
		}
		if err := tx.Model(w).Select("name", "mode").Updates(w).Error; err != nil {
			return err
		}
		if up.MemberIDs != nil {
			var members []models.User
			if len(*up.MemberIDs) > 0 {
				if err := tx.Where("id IN ?", *up.MemberIDs).Find(&members).Error; err != nil {
					return err
				}
				if len(members) != len(*up.MemberIDs) {
					return fmt.Errorf("unknown member id: %w", ledger.ErrNotFound)
				}
			}
			if err := tx.Model(w).Association("Members").Replace(members); err != nil {
				return err
			}
			w.Members = members
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// DeleteWarehouse removes the warehouse with all its devices, loans and layouts.
func (r *Repo) DeleteWarehouse(ctx context.Context, id, actorID string) error {
	w, err := r.FindWarehouse(ctx, id)
	if err != nil {
		return err
	}
	if w.CreatedBy != actorID {
		return ErrForbidden
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockWarehouse(tx, id); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM "+models.LoanLineTable+" WHERE loan_id IN (SELECT id FROM "+models.LoanTable+" WHERE warehouse_id = ?)", id).Error; err != nil {
			return err
		}
		for _, m := range []any{&models.Loan{}, &models.Device{}, &models.LabelLayout{}} {
			if err := tx.Where("warehouse_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(w).Association("Members").Clear(); err != nil {
			return err
		}
		return tx.Delete(&models.Warehouse{}, "id = ?", id).Error
	})
}
