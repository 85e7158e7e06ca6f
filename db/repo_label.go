package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Matti-Krebelder/DMS/ledger"
	"github.com/Matti-Krebelder/DMS/models"

	"gorm.io/gorm"
)

func (r *Repo) ListLayouts(ctx context.Context, warehouseID string) ([]models.LabelLayout, error) {
	var ls []models.LabelLayout
	err := r.DB.WithContext(ctx).
		Where("warehouse_id = ?", warehouseID).
		Order("is_default DESC").Order("updated_at DESC").
		Find(&ls).Error
	return ls, err
}

func (r *Repo) FindLayout(ctx context.Context, warehouseID string, id uint) (*models.LabelLayout, error) {
	var l models.LabelLayout
	if err := r.DB.WithContext(ctx).First(&l, "id = ? AND warehouse_id = ?", id, warehouseID).Error; err != nil {
		return nil, notFound(fmt.Sprintf("label layout %d", id), err)
	}
	return &l, nil
}

// SaveLayout creates the layout when l.ID is zero, otherwise updates name and data.
func (r *Repo) SaveLayout(ctx context.Context, l *models.LabelLayout) error {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return fmt.Errorf("layout name: %w", ledger.ErrInvalidInput)
	}
	if len(l.LayoutData) == 0 {
		return fmt.Errorf("layout data: %w", ledger.ErrInvalidInput)
	}
	db := r.DB.WithContext(ctx)
	if l.ID == 0 {
		return db.Create(l).Error
	}
	res := db.Model(&models.LabelLayout{}).
		Where("id = ? AND warehouse_id = ?", l.ID, l.WarehouseID).
		Updates(map[string]any{"name": l.Name, "layout_data": l.LayoutData})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("label layout %d: %w", l.ID, ledger.ErrNotFound)
	}
	return nil
}

func (r *Repo) DeleteLayout(ctx context.Context, warehouseID string, id uint) error {
	res := r.DB.WithContext(ctx).Where("warehouse_id = ?", warehouseID).Delete(&models.LabelLayout{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("label layout %d: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// SetDefaultLayout makes id the only default layout of the warehouse.
func (r *Repo) SetDefaultLayout(ctx context.Context, warehouseID string, id uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.LabelLayout{}).
			Where("warehouse_id = ?", warehouseID).
			Update("is_default", false).Error; err != nil {
			return err
		}
		res := tx.Model(&models.LabelLayout{}).
			Where("id = ? AND warehouse_id = ?", id, warehouseID).
			Update("is_default", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("label layout %d: %w", id, ledger.ErrNotFound)
		}
		return nil
	})
}

// ResolveLabelLayout picks the default layout, else the newest one.
func (r *Repo) ResolveLabelLayout(ctx context.Context, warehouseID string) (*models.LabelLayout, error) {
	var l models.LabelLayout
	err := r.DB.WithContext(ctx).
		Where("warehouse_id = ?", warehouseID).
		Order("is_default DESC").Order("created_at DESC").
		First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoLayout
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}
