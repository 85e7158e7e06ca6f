package scheduler

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Matti-Krebelder/DMS/config"
	"github.com/Matti-Krebelder/DMS/db"
	"github.com/Matti-Krebelder/DMS/export"
	"github.com/Matti-Krebelder/DMS/models"
	"github.com/Matti-Krebelder/DMS/updates"
)

type fakeLoans struct {
	mu     sync.Mutex
	loans  map[string][]models.Loan
	listed int
}

func (f *fakeLoans) AllWarehouseIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.loans {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeLoans) ListLoans(ctx context.Context, warehouseID string, flt db.LoanFilter) (*db.PagedLoans, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed++
	if flt.Status != string(models.LoanActive) {
		return nil, errors.New("archive must only read active loans")
	}
	items := f.loans[warehouseID]
	return &db.PagedLoans{Total: int64(len(items)), Items: items}, nil
}

type fakeChecker struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeChecker) Check(ctx context.Context) (updates.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return updates.State{}, nil
}

func (f *fakeChecker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Files: config.FilesConfig{SlipDir: dir},
		Jobs:  config.JobsConfig{SlipArchiveCron: "30 2 * * *", VersionCheckCron: "0 */6 * * *"},
	}
}

func loan(id string) models.Loan {
	return models.Loan{
		ID: id, BorrowerName: "Alice", ReturnToken: "123456", Status: models.LoanActive, BorrowedAt: time.Now(),
		Lines: []models.LoanLine{{DeviceID: 1, ScanCode: "100001", Quantity: 1, Device: &models.Device{Name: "Cam 1"}}},
	}
}

func TestArchiveWarehouseWritesMissingSlips(t *testing.T) {
	dir := t.TempDir()
	src := &fakeLoans{loans: map[string][]models.Loan{"w1": {loan("a"), loan("b")}}}
	s := NewScheduler(testConfig(dir), src, nil, nil)

	n, err := s.ArchiveWarehouse(context.Background(), "w1")
	if err != nil || n != 2 {
		t.Fatalf("first run = %d, %v", n, err)
	}
	if _, err := os.Stat(export.SlipPath(s.SlipDir("w1"), "a")); err != nil {
		t.Fatal(err)
	}
	n, err = s.ArchiveWarehouse(context.Background(), "w1")
	if err != nil || n != 0 {
		t.Fatalf("second run = %d, %v", n, err)
	}
}

func TestZipWarehouseBundlesSlips(t *testing.T) {
	dir := t.TempDir()
	src := &fakeLoans{loans: map[string][]models.Loan{"w1": {loan("b"), loan("a")}}}
	s := NewScheduler(testConfig(dir), src, nil, nil)

	if err := os.MkdirAll(s.SlipDir("w1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.SlipDir("w1"), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	n, err := s.ZipWarehouse(context.Background(), "w1", &buf)
	if err != nil || n != 2 {
		t.Fatalf("zip = %d, %v", n, err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "loan_a.pdf" || zr.File[1].Name != "loan_b.pdf" {
		t.Fatalf("unexpected entries %v", zr.File)
	}
	rc, err := zr.File[0].Open()
	if err != nil {
		t.Fatal(err)
	}
	head := make([]byte, 4)
	_, err = io.ReadFull(rc, head)
	rc.Close()
	if err != nil || string(head) != "%PDF" {
		t.Fatalf("entry is not a pdf: %q, %v", head, err)
	}

	buf.Reset()
	if n, err := s.ZipWarehouse(context.Background(), "empty", &buf); err != nil || n != 0 {
		t.Fatalf("empty warehouse = %d, %v", n, err)
	}
	if _, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		t.Fatalf("empty archive unreadable: %v", err)
	}
}

func TestArchiveAllCoversEveryWarehouse(t *testing.T) {
	dir := t.TempDir()
	src := &fakeLoans{loans: map[string][]models.Loan{"w1": {loan("a")}, "w2": {loan("c")}}}
	s := NewScheduler(testConfig(dir), src, nil, nil)

	s.archiveAll()

	for wid, id := range map[string]string{"w1": "a", "w2": "c"} {
		if _, err := os.Stat(export.SlipPath(s.SlipDir(wid), id)); err != nil {
			t.Fatalf("missing slip for %s: %v", wid, err)
		}
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Jobs.SlipArchiveCron = "not a cron"
	s := NewScheduler(cfg, &fakeLoans{}, nil, nil)
	if err := s.Start(); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}

func TestStartRunsVersionCheck(t *testing.T) {
	checker := &fakeChecker{}
	s := NewScheduler(testConfig(t.TempDir()), &fakeLoans{}, checker, nil)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for checker.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if checker.count() == 0 {
		t.Fatal("expected an initial version check")
	}
}
