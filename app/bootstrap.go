package app

import (
	"context"
	"fmt"

	"github.com/Matti-Krebelder/DMS/config"
	"github.com/Matti-Krebelder/DMS/db"

	"go.uber.org/zap"
)

// BootstrapUsers creates the users listed in SEED_USERS and marks ADMIN_IDS as
// admins. Without any seed users the instance cannot be logged into, which is
// only logged.
func BootstrapUsers(ctx context.Context, cfg *config.Config, repo *db.Repo, log *zap.Logger) error {
	if len(cfg.Session.SeedUsers) == 0 {
		log.Warn("no SEED_USERS configured, only existing users can log in")
		return nil
	}
	if err := repo.SeedUsers(ctx, cfg.Session.SeedUsers, cfg.Session.AdminIDs); err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	log.Info("seeded users", zap.Int("count", len(cfg.Session.SeedUsers)), zap.Int("admins", len(cfg.Session.AdminIDs)))
	return nil
}
