package db

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/Matti-Krebelder/DMS/ledger"
	"github.com/Matti-Krebelder/DMS/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func getRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = "host=localhost user=postgres password=postgres dbname=dms_test port=5432 sslmode=disable"
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepo(gdb)
}

func newWarehouse(t *testing.T, r *Repo, mode models.WarehouseMode) (*models.Warehouse, string) {
	t.Helper()
	ctx := context.Background()
	owner := "u-" + uuid.NewString()[:8]
	if err := r.SeedUsers(ctx, map[string]string{owner: "Owner"}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}
	w, err := r.CreateWarehouse(ctx, "Test store", mode, owner)
	if err != nil {
		t.Fatalf("create warehouse: %v", err)
	}
	t.Cleanup(func() { _ = r.DeleteWarehouse(context.Background(), w.ID, owner) })
	return w, owner
}

func TestLedgerOnPostgres(t *testing.T) {
	r := getRepo(t)
	ctx := context.Background()
	w, _ := newWarehouse(t, r, models.ModeOrganization)

	d := &models.Device{WarehouseID: w.ID, Name: "Tripod 3", StockQuantity: 5, Category: "Stands"}
	if err := r.CreateDevice(ctx, d); err != nil {
		t.Fatalf("create device: %v", err)
	}
	if len(d.ScanCode) != 6 || d.Status != ledger.AvailableText {
		t.Fatalf("unexpected device %+v", d)
	}

	l := ledger.New(r.LedgerStore(), nil)
	var loans []*models.Loan
	for _, name := range []string{"Bob", "Alice"} {
		cart := ledger.NewCart(w.ID)
		for i := 0; i < 2; i++ {
			if _, err := l.AddToCart(ctx, w.ID, cart, d.ScanCode); err != nil {
				t.Fatalf("add: %v", err)
			}
		}
		loan, err := l.CommitBorrow(ctx, w.ID, cart, ledger.Borrower{Name: name, Group: "7a"})
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
		loans = append(loans, loan)
	}

	if n, err := l.AvailableQuantity(ctx, w.ID, d.ID); err != nil || n != 1 {
		t.Fatalf("available = %d, %v", n, err)
	}
	got, err := r.FindDevice(ctx, w.ID, d.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "Alice (2), Bob (2)" {
		t.Fatalf("status = %q", got.Status)
	}

	rows, err := r.SearchDevices(ctx, w.ID, DeviceQuery{Search: "alice", Status: "borrowed", Groups: []string{"7a"}})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(rows) != 1 || rows[0].Borrowers != "Alice, Bob" || rows[0].BorrowerGroups != "7a" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	if err := r.DeleteDevice(ctx, w.ID, d.ID); !errors.Is(err, ErrDeviceOnLoan) {
		t.Fatalf("expected ErrDeviceOnLoan, got %v", err)
	}

	byCode, err := r.FindActiveLoansByScanCode(ctx, w.ID, d.ScanCode)
	if err != nil || len(byCode) != 2 {
		t.Fatalf("loans by scan code = %d, %v", len(byCode), err)
	}
	byToken, err := r.FindActiveLoanByToken(ctx, w.ID, loans[0].ReturnToken)
	if err != nil || byToken.ID != loans[0].ID || len(byToken.Lines) != 1 || byToken.Lines[0].Device == nil {
		t.Fatalf("loan by token = %+v, %v", byToken, err)
	}

	for _, loan := range loans {
		res, err := l.ReturnLines(ctx, w.ID, loan.ID, []int64{d.ID}, "staff")
		if err != nil || res.LoanStatus != models.LoanReturned {
			t.Fatalf("return = %+v, %v", res, err)
		}
	}
	if err := r.DeleteDevice(ctx, w.ID, d.ID); err != nil {
		t.Fatalf("delete after return: %v", err)
	}
	if _, err := r.FindDevice(ctx, w.ID, d.ID); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScanCodeUniquePerWarehouse(t *testing.T) {
	r := getRepo(t)
	ctx := context.Background()
	w1, _ := newWarehouse(t, r, models.ModePersonal)
	w2, _ := newWarehouse(t, r, models.ModePersonal)

	if err := r.CreateDevice(ctx, &models.Device{WarehouseID: w1.ID, Name: "Mic", ScanCode: "777777"}); err != nil {
		t.Fatal(err)
	}
	err := r.CreateDevice(ctx, &models.Device{WarehouseID: w1.ID, Name: "Mic 2", ScanCode: "777777"})
	if !errors.Is(err, ledger.ErrScanCodeTaken) {
		t.Fatalf("expected ErrScanCodeTaken, got %v", err)
	}
	if err := r.CreateDevice(ctx, &models.Device{WarehouseID: w2.ID, Name: "Mic", ScanCode: "777777"}); err != nil {
		t.Fatalf("same code in another warehouse: %v", err)
	}
}

func TestLabelLayoutDefaults(t *testing.T) {
	r := getRepo(t)
	ctx := context.Background()
	w, _ := newWarehouse(t, r, models.ModePersonal)

	if _, err := r.ResolveLabelLayout(ctx, w.ID); !errors.Is(err, ErrNoLayout) {
		t.Fatalf("expected ErrNoLayout, got %v", err)
	}
	a := &models.LabelLayout{WarehouseID: w.ID, Name: "small", LayoutData: datatypes.JSON(`{"labelWidth":40}`)}
	b := &models.LabelLayout{WarehouseID: w.ID, Name: "large", LayoutData: datatypes.JSON(`{"labelWidth":80}`)}
	for _, l := range []*models.LabelLayout{a, b} {
		if err := r.SaveLayout(ctx, l); err != nil {
			t.Fatal(err)
		}
	}
	if got, _ := r.ResolveLabelLayout(ctx, w.ID); got == nil || got.ID != b.ID {
		t.Fatalf("expected newest layout, got %+v", got)
	}
	if err := r.SetDefaultLayout(ctx, w.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := r.ResolveLabelLayout(ctx, w.ID); got == nil || got.ID != a.ID {
		t.Fatalf("expected default layout, got %+v", got)
	}
	if err := r.SetDefaultLayout(ctx, w.ID, 999999); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWarehouseMembership(t *testing.T) {
	r := getRepo(t)
	ctx := context.Background()
	w, owner := newWarehouse(t, r, models.ModePersonal)

	member := "m-" + uuid.NewString()[:8]
	if err := r.SeedUsers(ctx, map[string]string{member: "Member " + member}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ids := []string{member}
	if _, err := r.UpdateWarehouse(ctx, w.ID, member, WarehouseUpdate{MemberIDs: &ids}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner update: %v", err)
	}
	bad := models.WarehouseMode("shared")
	if _, err := r.UpdateWarehouse(ctx, w.ID, owner, WarehouseUpdate{Mode: &bad}); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("invalid mode: %v", err)
	}
	got, err := r.UpdateWarehouse(ctx, w.ID, owner, WarehouseUpdate{MemberIDs: &ids})
	if err != nil {
		t.Fatalf("update members: %v", err)
	}
	if len(got.Members) != 1 || got.Members[0].ID != member {
		t.Fatalf("members = %+v", got.Members)
	}

	ws, err := r.ListWarehousesForUser(ctx, member)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, x := range ws {
		found = found || x.ID == w.ID
	}
	if !found {
		t.Fatal("member should see the warehouse")
	}

	if _, err := r.FindWarehouse(ctx, "not-a-uuid"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("malformed id: %v", err)
	}

	res, err := r.ListUsers(ctx, member, 1, 20)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if res.Total != 1 || res.Users[0].ID != member {
		t.Fatalf("user search = %+v", res)
	}
}
