package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Matti-Krebelder/DMS/ledger"
	"github.com/Matti-Krebelder/DMS/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrDeviceOnLoan = errors.New("device has units out on loan")
	ErrNoLayout     = errors.New("no label layout defined")
	ErrForbidden    = errors.New("forbidden")
)

type Repo struct{ DB *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

// notFound maps gorm's missing-row error onto ledger.ErrNotFound.
func notFound(what string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ledger.ErrNotFound)
	}
	return err
}

// Users

func (r *Repo) TouchUserLogin(ctx context.Context, userID, ip, ua string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"last_login_at": gorm.Expr("NOW()"),
			"last_seen_at":  gorm.Expr("NOW()"),
			"login_count":   gorm.Expr("COALESCE(login_count, 0) + 1"),
			"last_login_ip": ip,
			"last_login_ua": ua,
		}).Error
}

func (r *Repo) TouchUserSeen(ctx context.Context, userID string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen_at", gorm.Expr("NOW()")).Error
}

func (r *Repo) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound("user "+id, err)
	}
	return &u, nil
}

type ListUsersResult struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total"`
}

func (r *Repo) ListUsers(ctx context.Context, q string, page, size int) (ListUsersResult, error) {
	page, size = clampPage(page, size, 100)

	tx := r.DB.WithContext(ctx).Model(&models.User{})
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(id) LIKE ? OR LOWER(display_name) LIKE ?", like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return ListUsersResult{}, err
	}

	var users []models.User
	if err := tx.
		Order("display_name ASC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&users).Error; err != nil {
		return ListUsersResult{}, err
	}
	return ListUsersResult{Users: users, Total: total}, nil
}

// SeedUsers inserts the configured users, keeping existing rows untouched
// except for the admin flag.
func (r *Repo) SeedUsers(ctx context.Context, users map[string]string, admins []string) error {
	isAdmin := make(map[string]bool, len(admins))
	for _, a := range admins {
		isAdmin[a] = true
	}
	for id, name := range users {
		u := models.User{ID: id, DisplayName: name, IsAdmin: isAdmin[id]}
		if err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_admin"}),
		}).Create(&u).Error; err != nil {
			return fmt.Errorf("seed user %s: %w", id, err)
		}
	}
	return nil
}

func clampPage(page, size, max int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > max {
		size = 20
	}
	return page, size
}
