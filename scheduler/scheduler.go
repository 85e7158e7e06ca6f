package scheduler

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/Matti-Krebelder/DMS/config"
	"github.com/Matti-Krebelder/DMS/db"
	"github.com/Matti-Krebelder/DMS/export"
	"github.com/Matti-Krebelder/DMS/models"
	"github.com/Matti-Krebelder/DMS/updates"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// LoanSource is the slice of db.Repo the slip archive reads from.
type LoanSource interface {
	AllWarehouseIDs(ctx context.Context) ([]string, error)
	ListLoans(ctx context.Context, warehouseID string, f db.LoanFilter) (*db.PagedLoans, error)
}

type VersionChecker interface {
	Check(ctx context.Context) (updates.State, error)
}

// Scheduler runs the periodic slip archive and version check.
type Scheduler struct {
	cron     *cron.Cron
	loans    LoanSource
	checker  VersionChecker
	jobs     config.JobsConfig
	slipDir  string
	imageDir string
	logger   *zap.Logger
}

func NewScheduler(cfg *config.Config, loans LoanSource, checker VersionChecker, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:     cron.New(),
		loans:    loans,
		checker:  checker,
		jobs:     cfg.Jobs,
		slipDir:  cfg.Files.SlipDir,
		imageDir: cfg.Files.ImageDir,
		logger:   logger,
	}
}

// Start registers the jobs and starts the cron loop. A version check runs
// once immediately.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler")

	if _, err := s.cron.AddFunc(s.jobs.SlipArchiveCron, s.archiveAll); err != nil {
		return fmt.Errorf("schedule slip archive %q: %w", s.jobs.SlipArchiveCron, err)
	}
	if s.checker != nil {
		if _, err := s.cron.AddFunc(s.jobs.VersionCheckCron, s.checkVersion); err != nil {
			return fmt.Errorf("schedule version check %q: %w", s.jobs.VersionCheckCron, err)
		}
		go s.checkVersion()
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// SlipDir is the archive directory of one warehouse.
func (s *Scheduler) SlipDir(warehouseID string) string {
	return filepath.Join(s.slipDir, warehouseID)
}

// ArchiveWarehouse writes the missing slips of every active loan in the
// warehouse and returns how many were created.
func (s *Scheduler) ArchiveWarehouse(ctx context.Context, warehouseID string) (int, error) {
	res, err := s.loans.ListLoans(ctx, warehouseID, db.LoanFilter{Status: string(models.LoanActive)})
	if err != nil {
		return 0, fmt.Errorf("list loans of %s: %w", warehouseID, err)
	}
	dir := s.SlipDir(warehouseID)
	created := 0
	for i := range res.Items {
		ok, err := export.ArchiveSlip(dir, export.SlipFromLoan(&res.Items[i], s.imageDir))
		if err != nil {
			s.logger.Error("archive slip failed",
				zap.String("warehouse", warehouseID),
				zap.String("loan", res.Items[i].ID),
				zap.Error(err))
			continue
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// ZipWarehouse brings the archive up to date and writes every slip of the
// warehouse to w as one zip. Nothing is written when the archive step fails.
func (s *Scheduler) ZipWarehouse(ctx context.Context, warehouseID string, w io.Writer) (int, error) {
	if _, err := s.ArchiveWarehouse(ctx, warehouseID); err != nil {
		return 0, err
	}
	n, err := export.ZipSlips(w, s.SlipDir(warehouseID))
	if err != nil {
		return n, fmt.Errorf("zip slips of %s: %w", warehouseID, err)
	}
	return n, nil
}

func (s *Scheduler) archiveAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	ids, err := s.loans.AllWarehouseIDs(ctx)
	if err != nil {
		s.logger.Error("slip archive: list warehouses", zap.Error(err))
		return
	}
	total := 0
	for _, id := range ids {
		n, err := s.ArchiveWarehouse(ctx, id)
		if err != nil {
			s.logger.Error("slip archive failed", zap.String("warehouse", id), zap.Error(err))
			continue
		}
		total += n
	}
	s.logger.Info("slip archive finished", zap.Int("warehouses", len(ids)), zap.Int("created", total))
}

func (s *Scheduler) checkVersion() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, _ = s.checker.Check(ctx)
}
